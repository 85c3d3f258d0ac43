package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"serp-similarity/internal/models"
	"serp-similarity/internal/runner"
	"serp-similarity/internal/store"
	errs "serp-similarity/pkg/errors"
	"serp-similarity/pkg/events"
)

func newTestAPIRouter(st store.RunStore, eng runner.Engine, es events.EventStore) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", APICreateRunHandler(eng)).Methods("POST")
	api.HandleFunc("/runs", APIListRunsHandler(st)).Methods("GET")
	api.HandleFunc("/runs/{id}", APIGetRunHandler(st)).Methods("GET")
	api.HandleFunc("/runs/{id}/status", APIRunStatusHandler(st)).Methods("GET")
	api.HandleFunc("/runs/{id}/events", APIRunEventsHandler(es)).Methods("GET")
	api.HandleFunc("/stats", APIStatsHandler(eng)).Methods("GET")
	return r
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAPICreateRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantErrSub string
	}{
		{
			name:       "keyword list accepted",
			body:       `{"keywords": ["vegan recipes", "plant based recipes"], "provider": "duckduckgo"}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "textarea style body accepted",
			body:       `{"keywords_text": "vegan recipes\nplant based recipes"}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "malformed JSON rejected",
			body:       `{"keywords": [`,
			wantStatus: http.StatusBadRequest,
			wantErrSub: "invalid JSON",
		},
		{
			name:       "empty keywords rejected",
			body:       `{"keywords": []}`,
			wantStatus: http.StatusBadRequest,
			wantErrSub: "at least one keyword",
		},
		{
			name:       "unknown mode rejected",
			body:       `{"keywords": ["a"], "mode": "hostname"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "queue full maps to 429",
			body:       `{"keywords": ["a"]}`,
			submitErr:  errs.NewBiz("runner.Submit", "queue is full", nil),
			wantStatus: http.StatusTooManyRequests,
			wantErrSub: "queue is full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			eng := &stubEngine{submitErr: tt.submitErr}

			req := httptest.NewRequest("POST", "/api/runs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestAPIRouter(st, eng, events.NewMemoryEventStore()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusAccepted {
				var resp struct {
					ID     string            `json:"id"`
					Status models.RunStatus  `json:"status"`
					Links  map[string]string `json:"links"`
				}
				decodeJSON(t, rec, &resp)
				if resp.ID == "" {
					t.Error("response has no run ID")
				}
				if resp.Status != models.RunStatusPending {
					t.Errorf("status = %q, want pending", resp.Status)
				}
				if resp.Links["status"] != "/api/runs/"+resp.ID+"/status" {
					t.Errorf("status link = %q", resp.Links["status"])
				}
				if run, source := eng.lastSubmission(); run == nil || source != "api" {
					t.Errorf("submission = %v source %q, want run with source api", run, source)
				}
			} else if tt.wantErrSub != "" {
				var resp map[string]string
				decodeJSON(t, rec, &resp)
				if !strings.Contains(resp["error"], tt.wantErrSub) {
					t.Errorf("error = %q, want substring %q", resp["error"], tt.wantErrSub)
				}
			}
		})
	}
}

func TestAPIGetRun(t *testing.T) {
	st := store.NewMemoryStore()
	run := completedRun(t, st)

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID, nil)
	rec := httptest.NewRecorder()
	newTestAPIRouter(st, &stubEngine{}, events.NewMemoryEventStore()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		ID         string   `json:"id"`
		Status     string   `json:"status"`
		Keywords   []string `json:"keywords"`
		Assessment *struct {
			Cannibalized bool `json:"cannibalized"`
			Pairs        []struct {
				Severity string `json:"severity"`
			} `json:"pairs"`
		} `json:"assessment"`
	}
	decodeJSON(t, rec, &resp)

	if resp.ID != run.ID || resp.Status != "completed" {
		t.Errorf("run = %s/%s", resp.ID, resp.Status)
	}
	if resp.Assessment == nil {
		t.Fatal("completed run has no assessment")
	}
	if !resp.Assessment.Cannibalized {
		t.Error("identical SERPs should flag cannibalization")
	}
	if len(resp.Assessment.Pairs) != 3 {
		t.Errorf("pairs = %d, want 3", len(resp.Assessment.Pairs))
	}

	rec = httptest.NewRecorder()
	newTestAPIRouter(st, &stubEngine{}, events.NewMemoryEventStore()).
		ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
}

func TestAPIRunStatus(t *testing.T) {
	st := store.NewMemoryStore()
	run := models.NewRun([]string{"a", "b", "c"}, models.DefaultRunOptions(), "")
	run.Status = models.RunStatusFetching
	run.Progress = models.RunProgress{Fetched: 2, Total: 3}
	if err := st.Save(context.Background(), run); err != nil {
		t.Fatalf("save: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID+"/status", nil)
	rec := httptest.NewRecorder()
	newTestAPIRouter(st, &stubEngine{}, events.NewMemoryEventStore()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		Fetched  int    `json:"fetched"`
		Total    int    `json:"total"`
		Terminal bool   `json:"terminal"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Status != "fetching" || resp.Fetched != 2 || resp.Total != 3 {
		t.Errorf("progress = %+v", resp)
	}
	if resp.Terminal {
		t.Error("fetching run reported as terminal")
	}
}

func TestAPIListRuns(t *testing.T) {
	st := store.NewMemoryStore()
	completedRun(t, st)
	completedRun(t, st)

	req := httptest.NewRequest("GET", "/api/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	newTestAPIRouter(st, &stubEngine{}, events.NewMemoryEventStore()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Runs  []models.RunSummary `json:"runs"`
		Total int                 `json:"total"`
		Limit int                 `json:"limit"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Runs) != 1 {
		t.Errorf("runs = %d, want 1 (limit)", len(resp.Runs))
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if resp.Limit != 1 {
		t.Errorf("limit = %d, want 1", resp.Limit)
	}
}

func TestAPIRunEvents(t *testing.T) {
	es := events.NewMemoryEventStore()
	if err := es.Append(context.Background(), events.RunQueued{
		Base:         events.Base{Ts: time.Now().UTC(), RID: "run-1"},
		KeywordCount: 2,
		Provider:     "serpapi",
		Triggered:    "api",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/runs/run-1/events", nil)
	rec := httptest.NewRecorder()
	newTestAPIRouter(store.NewMemoryStore(), &stubEngine{}, es).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		RunID  string               `json:"run_id"`
		Events []events.StoredEvent `json:"events"`
	}
	decodeJSON(t, rec, &resp)
	if resp.RunID != "run-1" || len(resp.Events) != 1 {
		t.Fatalf("events = %+v", resp)
	}
	if resp.Events[0].Type != events.TypeRunQueued {
		t.Errorf("type = %q, want %q", resp.Events[0].Type, events.TypeRunQueued)
	}
}

func TestAPIStats(t *testing.T) {
	eng := &stubEngine{stats: runner.EngineStats{TotalRuns: 42, WorkerCount: 4}}

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rec := httptest.NewRecorder()
	newTestAPIRouter(store.NewMemoryStore(), eng, events.NewMemoryEventStore()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp runner.EngineStats
	decodeJSON(t, rec, &resp)
	if resp.TotalRuns != 42 || resp.WorkerCount != 4 {
		t.Errorf("stats = %+v", resp)
	}
}
