package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"serp-similarity/internal/auth"
	"serp-similarity/internal/extract"
	"serp-similarity/internal/models"
	"serp-similarity/internal/report"
	"serp-similarity/internal/runner"
	"serp-similarity/internal/serp"
	"serp-similarity/internal/store"
	errs "serp-similarity/pkg/errors"
	"serp-similarity/pkg/events"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// writeJSONError maps application errors onto HTTP statuses. Validation
// problems are the caller's fault, business refusals mean try later, and
// anything else is ours.
func writeJSONError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errs.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errs.Is(err, errs.ErrBiz):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		log.Printf("API error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": errs.UserMessage(err)})
}

// createRunRequest is the JSON body for POST /api/runs. Keywords may arrive
// as a list or as textarea-style newline text; the list wins when both are set.
type createRunRequest struct {
	Keywords     []string `json:"keywords,omitempty"`
	KeywordsText string   `json:"keywords_text,omitempty"`
	Location     string   `json:"location,omitempty"`
	ResultCount  int      `json:"result_count,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Provider     string   `json:"provider,omitempty"`
}

func (req *createRunRequest) options() (models.RunOptions, error) {
	const op = "web.createRunRequest"
	opts := models.DefaultRunOptions()

	if loc := strings.TrimSpace(req.Location); loc != "" {
		opts.Location = loc
	}
	if req.ResultCount != 0 {
		opts.ResultCount = req.ResultCount
	}
	if req.Mode != "" {
		mode, err := extract.ParseMode(req.Mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	switch req.Provider {
	case "":
		// Omitted: the engine substitutes its wired default at submit.
	case serp.ProviderSerpAPI, serp.ProviderDuckDuckGo:
		opts.Provider = req.Provider
	default:
		return opts, errs.NewValidation(op, "unknown provider "+strconv.Quote(req.Provider), nil)
	}
	return opts, nil
}

func (req *createRunRequest) keywordList() []string {
	if len(req.Keywords) > 0 {
		return models.ParseKeywords(strings.Join(req.Keywords, "\n"))
	}
	return models.ParseKeywords(req.KeywordsText)
}

// APICreateRunHandler queues a run and answers 202 with its ID and link.
func APICreateRunHandler(engine runner.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, errs.NewValidation("web.APICreateRun", "invalid JSON body", err))
			return
		}

		keywords := req.keywordList()
		if err := models.ValidateKeywords(keywords); err != nil {
			writeJSONError(w, err)
			return
		}
		opts, err := req.options()
		if err != nil {
			writeJSONError(w, err)
			return
		}

		analyst, _ := auth.AnalystFromContext(r.Context())
		run := models.NewRun(keywords, opts, analyst)

		if err := engine.Submit(r.Context(), run, "api"); err != nil {
			writeJSONError(w, err)
			return
		}

		mRunsSubmitted.Inc(1)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"id":       run.ID,
			"status":   run.Status,
			"keywords": len(run.Keywords),
			"links": map[string]string{
				"self":   "/api/runs/" + run.ID,
				"status": "/api/runs/" + run.ID + "/status",
				"html":   "/runs/" + run.ID,
			},
		})
	}
}

// APIGetRunHandler returns the stored run. Completed runs carry the
// recomputed assessment alongside the raw report.
func APIGetRunHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		run, err := st.Get(r.Context(), vars["id"])
		if err != nil {
			writeJSONError(w, err)
			return
		}

		resp := struct {
			*models.Run
			Assessment interface{} `json:"assessment,omitempty"`
		}{Run: run}

		if run.Status == models.RunStatusCompleted && run.Report != nil {
			view, err := assembleView(run)
			if err != nil {
				writeJSONError(w, err)
				return
			}
			resp.Assessment = struct {
				Pairs        []report.PairRow `json:"pairs"`
				WorstPair    *report.PairRow  `json:"worst_pair,omitempty"`
				Cannibalized bool             `json:"cannibalized"`
			}{
				Pairs:        view.Pairs,
				WorstPair:    view.WorstPair,
				Cannibalized: view.Cannibalized,
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// APIRunStatusHandler is the light polling endpoint the progress page uses.
func APIRunStatusHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		run, err := st.Get(r.Context(), vars["id"])
		if err != nil {
			writeJSONError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       run.ID,
			"status":   run.Status,
			"fetched":  run.Progress.Fetched,
			"total":    run.Progress.Total,
			"terminal": run.Status.IsTerminal(),
			"error":    run.Error,
		})
	}
}

// APIListRunsHandler returns run summaries with limit/offset paging.
func APIListRunsHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			limit = 20
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset < 0 {
			offset = 0
		}

		runs, total, err := st.List(r.Context(), limit, offset)
		if err != nil {
			writeJSONError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"runs":   runs,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// APIRunEventsHandler returns the raw event trail for a run.
func APIRunEventsHandler(es events.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		trail, err := es.ListByRun(r.Context(), vars["id"])
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"run_id": vars["id"],
			"events": trail,
		})
	}
}

// APIStatsHandler exposes engine counters for dashboards and smoke checks.
func APIStatsHandler(engine runner.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.GetStats())
	}
}
