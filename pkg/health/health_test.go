package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"serp-similarity/pkg/circuit"
	"serp-similarity/pkg/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  logging.LevelFatal,
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

// staticChecker always reports the same status.
type staticChecker struct {
	name   string
	status Status
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Name: c.name, Status: c.status, LastChecked: time.Now()}
}

func TestManager_CheckAll(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]Status
		want     Status
	}{
		{
			name:     "all healthy",
			statuses: map[string]Status{"store": StatusHealthy, "engine": StatusHealthy},
			want:     StatusHealthy,
		},
		{
			name:     "one degraded",
			statuses: map[string]Status{"store": StatusHealthy, "provider": StatusDegraded},
			want:     StatusDegraded,
		},
		{
			name:     "one unhealthy wins over degraded",
			statuses: map[string]Status{"store": StatusUnhealthy, "provider": StatusDegraded},
			want:     StatusUnhealthy,
		},
		{
			name:     "no checkers",
			statuses: map[string]Status{},
			want:     StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(DefaultConfig(), testLogger(t))
			for name, status := range tt.statuses {
				m.Register(staticChecker{name: name, status: status})
			}

			report := m.CheckAll(context.Background())

			if report.Status != tt.want {
				t.Errorf("system status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.statuses) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.statuses))
			}
			if report.Summary.TotalComponents != len(tt.statuses) {
				t.Errorf("summary total = %d, want %d", report.Summary.TotalComponents, len(tt.statuses))
			}
		})
	}
}

func TestManager_Cached(t *testing.T) {
	m := NewManager(DefaultConfig(), testLogger(t))
	m.Register(staticChecker{name: "store", status: StatusHealthy})

	// Before any check runs the cached result is unknown.
	cached := m.Cached()
	if cached.Components["store"].Status != StatusUnknown {
		t.Errorf("pre-check cached status = %s, want unknown", cached.Components["store"].Status)
	}

	m.CheckAll(context.Background())

	cached = m.Cached()
	if cached.Components["store"].Status != StatusHealthy {
		t.Errorf("post-check cached status = %s, want healthy", cached.Components["store"].Status)
	}
}

func TestServer_Endpoints(t *testing.T) {
	logger := testLogger(t)

	tests := []struct {
		name       string
		status     Status
		path       string
		wantCode   int
		wantReady  bool
		checkReady bool
	}{
		{name: "healthy ready", status: StatusHealthy, path: "/health/ready", wantCode: http.StatusOK, wantReady: true, checkReady: true},
		{name: "degraded still ready", status: StatusDegraded, path: "/health/ready", wantCode: http.StatusOK, wantReady: true, checkReady: true},
		{name: "unhealthy not ready", status: StatusUnhealthy, path: "/health/ready", wantCode: http.StatusServiceUnavailable, wantReady: false, checkReady: true},
		{name: "healthy overall", status: StatusHealthy, path: "/health", wantCode: http.StatusOK},
		{name: "unhealthy overall", status: StatusUnhealthy, path: "/health", wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(DefaultConfig(), logger)
			m.Register(staticChecker{name: "store", status: tt.status})

			mux := http.NewServeMux()
			NewServer(m, logger).Register(mux)

			req := httptest.NewRequest("GET", tt.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q, want application/json", ct)
			}

			if tt.checkReady {
				var body struct {
					Ready bool `json:"ready"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.Ready != tt.wantReady {
					t.Errorf("ready = %v, want %v", body.Ready, tt.wantReady)
				}
			}
		})
	}
}

func TestServer_Liveness(t *testing.T) {
	logger := testLogger(t)
	m := NewManager(DefaultConfig(), logger)

	mux := http.NewServeMux()
	NewServer(m, logger).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", rec.Code)
	}
}

func TestBreakerChecker(t *testing.T) {
	breaker := circuit.New(circuit.Config{Name: "serp_test"}, testLogger(t))
	checker := NewBreakerChecker(breaker, "serp_breaker")

	result := checker.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("closed breaker status = %s, want healthy", result.Status)
	}
	if result.Metadata["state"] != "closed" {
		t.Errorf("state metadata = %v, want closed", result.Metadata["state"])
	}
}
