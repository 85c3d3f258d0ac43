package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"serp-similarity/pkg/circuit"
)

// DatabaseChecker checks run store connectivity.
type DatabaseChecker struct {
	db   *sql.DB
	name string
}

func NewDatabaseChecker(db *sql.DB, name string) *DatabaseChecker {
	return &DatabaseChecker{db: db, name: name}
}

func (dc *DatabaseChecker) Name() string {
	return dc.name
}

func (dc *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	result := CheckResult{
		Name:        dc.name,
		LastChecked: time.Now(),
		Metadata:    make(map[string]interface{}),
	}

	if err := dc.db.PingContext(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Database connection failed"
		result.Duration = time.Since(start)
		return result
	}

	var count int
	err := dc.db.QueryRowContext(ctx, "SELECT 1").Scan(&count)
	if err != nil {
		result.Status = StatusDegraded
		result.Error = err.Error()
		result.Message = "Database query failed"
	} else {
		result.Status = StatusHealthy
		result.Message = "Database connection successful"
	}

	stats := dc.db.Stats()
	result.Metadata["open_connections"] = stats.OpenConnections
	result.Metadata["in_use"] = stats.InUse
	result.Metadata["idle"] = stats.Idle
	result.Metadata["wait_count"] = stats.WaitCount
	result.Metadata["wait_duration"] = stats.WaitDuration.String()

	result.Duration = time.Since(start)
	return result
}

// HTTPChecker checks external HTTP services, such as the SERP provider's
// public endpoint.
type HTTPChecker struct {
	client *http.Client
	url    string
	name   string
}

func NewHTTPChecker(url, name string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{Timeout: timeout},
		url:    url,
		name:   name,
	}
}

func (hc *HTTPChecker) Name() string {
	return hc.name
}

func (hc *HTTPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	result := CheckResult{
		Name:        hc.name,
		LastChecked: time.Now(),
		Metadata:    make(map[string]interface{}),
	}

	req, err := http.NewRequestWithContext(ctx, "GET", hc.url, nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Failed to create HTTP request"
		result.Duration = time.Since(start)
		return result
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "HTTP request failed"
		result.Duration = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Metadata["status_code"] = resp.StatusCode
	result.Metadata["url"] = hc.url

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("HTTP service responding (status: %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("HTTP service error (status: %d)", resp.StatusCode)
	default:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("HTTP service degraded (status: %d)", resp.StatusCode)
	}

	result.Duration = time.Since(start)
	return result
}

// EngineChecker checks the analysis engine by asking for its stats.
type EngineChecker struct {
	getStats func() interface{}
	name     string
}

// NewEngineChecker creates an engine checker. getStats should return the
// engine's current stats snapshot.
func NewEngineChecker(name string, getStats func() interface{}) *EngineChecker {
	return &EngineChecker{
		getStats: getStats,
		name:     name,
	}
}

func (ec *EngineChecker) Name() string {
	return ec.name
}

func (ec *EngineChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	result := CheckResult{
		Name:        ec.name,
		LastChecked: time.Now(),
		Metadata:    make(map[string]interface{}),
	}

	if ec.getStats != nil {
		result.Metadata["stats"] = ec.getStats()
		result.Status = StatusHealthy
		result.Message = "Analysis engine is running"
	} else {
		result.Status = StatusUnknown
		result.Message = "Unable to get engine statistics"
	}

	result.Duration = time.Since(start)
	return result
}

// BreakerChecker reports the state of a circuit breaker guarding an
// external dependency. Open maps to unhealthy, half-open to degraded.
type BreakerChecker struct {
	breaker *circuit.Breaker
	name    string
}

func NewBreakerChecker(breaker *circuit.Breaker, name string) *BreakerChecker {
	return &BreakerChecker{breaker: breaker, name: name}
}

func (bc *BreakerChecker) Name() string {
	return bc.name
}

func (bc *BreakerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	result := CheckResult{
		Name:        bc.name,
		LastChecked: time.Now(),
		Metadata:    make(map[string]interface{}),
	}

	state := bc.breaker.State()
	result.Metadata["state"] = state.String()
	result.Metadata["breaker"] = bc.breaker.Name()

	switch state {
	case circuit.Open:
		result.Status = StatusUnhealthy
		result.Message = "Circuit breaker is open, calls are being rejected"
	case circuit.HalfOpen:
		result.Status = StatusDegraded
		result.Message = "Circuit breaker is half-open, testing recovery"
	default:
		result.Status = StatusHealthy
		result.Message = "Circuit breaker is closed"
	}

	result.Duration = time.Since(start)
	return result
}
