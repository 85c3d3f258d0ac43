// Package health runs component checks for the admin listener: the run
// store, the analysis engine, and the SERP provider endpoint each report
// their own status, and the package rolls them up into one system verdict.
package health

import (
	"context"
	"sync"
	"time"

	"serp-similarity/pkg/logging"
)

// Status is a component's health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult is one component's answer to a health check.
type CheckResult struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Report is the rolled-up system health served on /health.
type Report struct {
	Status     Status                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Version    string                 `json:"version,omitempty"`
	Uptime     time.Duration          `json:"uptime"`
	Components map[string]CheckResult `json:"components"`
	Summary    Summary                `json:"summary"`
}

// Summary counts components by status.
type Summary struct {
	TotalComponents int `json:"total_components"`
	HealthyCount    int `json:"healthy_count"`
	DegradedCount   int `json:"degraded_count"`
	UnhealthyCount  int `json:"unhealthy_count"`
	UnknownCount    int `json:"unknown_count"`
}

// Checker is one component's health probe.
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// Manager runs registered checkers and keeps their last results.
type Manager struct {
	checkers  map[string]Checker
	latest    map[string]CheckResult
	startTime time.Time
	version   string
	timeout   time.Duration
	logger    *logging.ComponentLogger
	mu        sync.RWMutex
}

// Config holds manager settings.
type Config struct {
	Timeout time.Duration `json:"timeout"`
	Version string        `json:"version"`
}

func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Version: "1.0.0",
	}
}

func NewManager(config Config, logger *logging.Logger) *Manager {
	return &Manager{
		checkers:  make(map[string]Checker),
		latest:    make(map[string]CheckResult),
		startTime: time.Now(),
		version:   config.Version,
		timeout:   config.Timeout,
		logger:    logger.WithComponent("health"),
	}
}

// Register adds a checker. Until its first check runs the component reads
// as unknown.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := checker.Name()
	m.checkers[name] = checker
	m.latest[name] = CheckResult{Name: name, Status: StatusUnknown}

	m.logger.Info("Registered health checker",
		logging.String("checker", name))
}

// CheckAll runs every checker concurrently, each under its own timeout,
// and remembers the results for cached reads.
func (m *Manager) CheckAll(ctx context.Context) Report {
	start := time.Now()

	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	results := make(chan CheckResult, len(checkers))
	var wg sync.WaitGroup
	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			results <- c.Check(checkCtx)
		}(checker)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	components := make(map[string]CheckResult)
	for res := range results {
		components[res.Name] = res
	}

	m.mu.Lock()
	for name, res := range components {
		m.latest[name] = res
	}
	m.mu.Unlock()

	report := m.report(components)

	m.logger.Debug("Completed health check",
		logging.String("status", string(report.Status)),
		logging.Duration("duration", time.Since(start)),
		logging.Int("components", len(components)))

	return report
}

// Cached returns the last known results without running any checks.
func (m *Manager) Cached() Report {
	m.mu.RLock()
	components := make(map[string]CheckResult, len(m.latest))
	for name, res := range m.latest {
		components[name] = res
	}
	m.mu.RUnlock()

	return m.report(components)
}

// report rolls component results into a system verdict: any unhealthy
// component makes the system unhealthy, then any degraded one degrades it.
func (m *Manager) report(components map[string]CheckResult) Report {
	summary := Summary{TotalComponents: len(components)}
	for _, c := range components {
		switch c.Status {
		case StatusHealthy:
			summary.HealthyCount++
		case StatusDegraded:
			summary.DegradedCount++
		case StatusUnhealthy:
			summary.UnhealthyCount++
		default:
			summary.UnknownCount++
		}
	}

	status := StatusUnknown
	switch {
	case summary.UnhealthyCount > 0:
		status = StatusUnhealthy
	case summary.DegradedCount > 0:
		status = StatusDegraded
	case summary.HealthyCount > 0 && summary.HealthyCount == len(components):
		status = StatusHealthy
	}

	return Report{
		Status:     status,
		Timestamp:  time.Now(),
		Version:    m.version,
		Uptime:     time.Since(m.startTime),
		Components: components,
		Summary:    summary,
	}
}
