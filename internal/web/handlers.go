package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"serp-similarity/internal/auth"
	"serp-similarity/internal/constants"
	"serp-similarity/internal/extract"
	"serp-similarity/internal/models"
	"serp-similarity/internal/report"
	"serp-similarity/internal/runner"
	"serp-similarity/internal/serp"
	"serp-similarity/internal/store"
	"serp-similarity/internal/verdict"
	errs "serp-similarity/pkg/errors"
	"serp-similarity/pkg/events"
	"serp-similarity/pkg/metrics"
)

// Page-level metrics (registered on the default registry)
var (
	mRunsSubmitted = metrics.Default.Counter("web_runs_submitted_total", "Runs submitted through the HTML form")
	mRunsRejected  = metrics.Default.Counter("web_runs_rejected_total", "Run submissions rejected by validation")
	mRunsDeleted   = metrics.Default.Counter("web_runs_deleted_total", "Runs deleted through the UI")
	mCSVExports    = metrics.Default.Counter("web_csv_exports_total", "CSV report downloads")
)

// homeData backs home.tmpl for both the initial GET and form re-renders
// after a rejected submission.
type homeData struct {
	Stats        runner.EngineStats
	Recent       []models.RunSummary
	Providers    []string
	ResultCounts []int
	Defaults     models.RunOptions
	MaxKeywords  int
	Error        string
	Keywords     string
	Location     string
	ResultCount  int
	Mode         string
	Provider     string
}

func newHomeData(st store.RunStore, engine runner.Engine, r *http.Request) homeData {
	recent, _, err := st.List(r.Context(), 10, 0)
	if err != nil {
		log.Printf("Error fetching recent runs: %v", err)
		recent = []models.RunSummary{}
	}

	defaults := models.DefaultRunOptions()
	return homeData{
		Stats:        engine.GetStats(),
		Recent:       recent,
		Providers:    []string{serp.ProviderSerpAPI, serp.ProviderDuckDuckGo},
		ResultCounts: constants.AllowedResultCounts,
		Defaults:     defaults,
		MaxKeywords:  constants.MaxKeywordsPerRun,
		Location:     defaults.Location,
		ResultCount:  defaults.ResultCount,
		Mode:         string(defaults.Mode),
		// Preselect whatever this deployment actually serves by default, so
		// a keyless install submits duckduckgo rather than an unwired serpapi.
		Provider: engine.DefaultProvider(),
	}
}

// HomeHandler serves the submission form plus recent runs and engine stats.
func HomeHandler(st store.RunStore, engine runner.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := newHomeData(st, engine, r)
		if err := ExecuteTemplate(w, "home.tmpl", data); err != nil {
			http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
			return
		}
	}
}

// parseRunOptions reads the form fields into normalized run options.
// Unknown values fall back to defaults rather than failing the submission;
// the only hard validation lives in the keyword list.
func parseRunOptions(r *http.Request) (models.RunOptions, error) {
	opts := models.DefaultRunOptions()

	if loc := strings.TrimSpace(r.FormValue("location")); loc != "" {
		opts.Location = loc
	}
	if rc := strings.TrimSpace(r.FormValue("result_count")); rc != "" {
		n, err := strconv.Atoi(rc)
		if err != nil || !constants.IsAllowedResultCount(n) {
			return opts, errs.NewValidation("web.parseRunOptions",
				fmt.Sprintf("result count must be one of %v", constants.AllowedResultCounts), err)
		}
		opts.ResultCount = n
	}
	if m := strings.TrimSpace(r.FormValue("mode")); m != "" {
		mode, err := extract.ParseMode(m)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	switch p := strings.TrimSpace(r.FormValue("provider")); p {
	case "":
		// Left empty: the engine substitutes its wired default at submit.
	case serp.ProviderSerpAPI, serp.ProviderDuckDuckGo:
		opts.Provider = p
	default:
		return opts, errs.NewValidation("web.parseRunOptions", fmt.Sprintf("unknown provider %q", p), nil)
	}
	return opts, nil
}

// CreateRunHandler accepts the submission form, queues a run, and redirects
// to its page. Validation failures re-render the form with the input kept.
func CreateRunHandler(st store.RunStore, engine runner.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			RenderErrorPage(w, http.StatusBadRequest, "Bad request", "The form could not be parsed.")
			return
		}

		rawKeywords := r.FormValue("keywords")
		keywords := models.ParseKeywords(rawKeywords)

		rerender := func(status int, msg string) {
			mRunsRejected.Inc(1)
			data := newHomeData(st, engine, r)
			data.Error = msg
			data.Keywords = rawKeywords
			data.Location = r.FormValue("location")
			if n, err := strconv.Atoi(r.FormValue("result_count")); err == nil {
				data.ResultCount = n
			}
			if m := r.FormValue("mode"); m != "" {
				data.Mode = m
			}
			if p := r.FormValue("provider"); p != "" {
				data.Provider = p
			}
			w.WriteHeader(status)
			if err := ExecuteTemplate(w, "home.tmpl", data); err != nil {
				http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
			}
		}

		if err := models.ValidateKeywords(keywords); err != nil {
			rerender(http.StatusBadRequest, errs.UserMessage(err))
			return
		}

		opts, err := parseRunOptions(r)
		if err != nil {
			rerender(http.StatusBadRequest, errs.UserMessage(err))
			return
		}

		analyst, _ := auth.AnalystFromContext(r.Context())
		run := models.NewRun(keywords, opts, analyst)

		if err := engine.Submit(r.Context(), run, "web"); err != nil {
			switch {
			case errs.Is(err, errs.ErrValidation):
				rerender(http.StatusBadRequest, errs.UserMessage(err))
			case errs.Is(err, errs.ErrBiz):
				log.Printf("Run submission refused: %v", err)
				RenderErrorPage(w, http.StatusServiceUnavailable, "Analyzer busy",
					"The analysis queue is full or shutting down. Try again in a moment.")
			default:
				log.Printf("Error queuing run: %v", err)
				RenderErrorPage(w, http.StatusInternalServerError, "Submission failed",
					"The run could not be queued. Check the logs for details.")
			}
			return
		}

		mRunsSubmitted.Inc(1)
		http.Redirect(w, r, "/runs/"+run.ID, http.StatusFound)
	}
}

// RunHandler renders a run in whatever state it is in: a progress page while
// fetching, the failure page, or the full report once completed. Verdicts are
// recomputed here since they are a pure function of the stored matrix.
func RunHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		run, err := st.Get(r.Context(), vars["id"])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				RenderErrorPage(w, http.StatusNotFound, "Run not found", "No run exists with that ID. It may have been deleted.")
				return
			}
			log.Printf("Error loading run %s: %v", vars["id"], err)
			RenderErrorPage(w, http.StatusInternalServerError, "Storage error", "The run could not be loaded.")
			return
		}

		switch run.Status {
		case models.RunStatusPending, models.RunStatusFetching:
			percent := 0
			if run.Progress.Total > 0 {
				percent = run.Progress.Fetched * 100 / run.Progress.Total
			}
			data := struct {
				Run     *models.Run
				Percent int
			}{
				Run:     run,
				Percent: percent,
			}
			if err := ExecuteTemplate(w, "run_progress.tmpl", data); err != nil {
				http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
			}
			return

		case models.RunStatusFailed:
			data := struct {
				Run *models.Run
			}{
				Run: run,
			}
			if err := ExecuteTemplate(w, "run_failed.tmpl", data); err != nil {
				http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
			}
			return
		}

		view, err := assembleView(run)
		if err != nil {
			log.Printf("Error assembling report for run %s: %v", run.ID, err)
			RenderErrorPage(w, http.StatusInternalServerError, "Report error", "The stored report could not be assembled.")
			return
		}

		data := struct {
			Run  *models.Run
			View *report.View
		}{
			Run:  run,
			View: view,
		}
		if err := ExecuteTemplate(w, "run.tmpl", data); err != nil {
			http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
		}
	}
}

// assembleView recomputes the verdict from the stored matrix and builds the
// report view. Shared by the run page and both CSV exports.
func assembleView(run *models.Run) (*report.View, error) {
	if run.Report == nil {
		return nil, errs.NewBiz("web.assembleView", "run has no report", nil)
	}
	assessment := verdict.NewDefault().Assess(run.Report.Matrix, run.Report.Averages)
	return report.Assemble(run, assessment)
}

// RunsListHandler shows the paginated run history.
func RunsListHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		limit := 20
		offset := (page - 1) * limit

		runs, total, err := st.List(r.Context(), limit, offset)
		if err != nil {
			log.Printf("Error listing runs: %v", err)
			RenderErrorPage(w, http.StatusInternalServerError, "Storage error", "The run history could not be loaded.")
			return
		}

		data := struct {
			Runs       []models.RunSummary
			Total      int
			Page       int
			TotalPages int
		}{
			Runs:       runs,
			Total:      total,
			Page:       page,
			TotalPages: (total + limit - 1) / limit,
		}

		if err := ExecuteTemplate(w, "runs.tmpl", data); err != nil {
			http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
		}
	}
}

// DeleteRunHandler removes a run and returns to the history page. Events are
// kept; the audit trail outlives the run row.
func DeleteRunHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		if err := st.Delete(r.Context(), vars["id"]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				RenderErrorPage(w, http.StatusNotFound, "Run not found", "No run exists with that ID.")
				return
			}
			log.Printf("Error deleting run %s: %v", vars["id"], err)
			RenderErrorPage(w, http.StatusInternalServerError, "Storage error", "The run could not be deleted.")
			return
		}
		mRunsDeleted.Inc(1)
		http.Redirect(w, r, "/runs", http.StatusFound)
	}
}

// RunEventsHandler renders the audit trail of a run alongside the state
// rebuilt from it, so the trail can be checked against the stored row.
func RunEventsHandler(st store.RunStore, es events.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		run, err := st.Get(r.Context(), vars["id"])
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("Error loading run %s: %v", vars["id"], err)
			RenderErrorPage(w, http.StatusInternalServerError, "Storage error", "The run could not be loaded.")
			return
		}

		trail, err := es.ListByRun(r.Context(), vars["id"])
		if err != nil {
			log.Printf("Error listing events for run %s: %v", vars["id"], err)
			RenderErrorPage(w, http.StatusInternalServerError, "Storage error", "The event trail could not be loaded.")
			return
		}
		if run == nil && len(trail) == 0 {
			RenderErrorPage(w, http.StatusNotFound, "Run not found", "No run or events exist with that ID.")
			return
		}

		rebuilt, err := es.ReplayRun(r.Context(), vars["id"])
		if err != nil {
			log.Printf("Error replaying run %s: %v", vars["id"], err)
			rebuilt = nil
		}

		data := struct {
			RunID   string
			Run     *models.Run
			Events  []events.StoredEvent
			Rebuilt *events.RebuiltState
		}{
			RunID:   vars["id"],
			Run:     run,
			Events:  trail,
			Rebuilt: rebuilt,
		}

		if err := ExecuteTemplate(w, "run_events.tmpl", data); err != nil {
			http.Error(w, fmt.Sprintf("template error: %v", err), http.StatusInternalServerError)
		}
	}
}

// loadCompletedView loads a run and assembles its view, writing the error
// response itself when the run is missing or unfinished.
func loadCompletedView(w http.ResponseWriter, r *http.Request, st store.RunStore) *report.View {
	vars := mux.Vars(r)
	run, err := st.Get(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return nil
		}
		log.Printf("Error loading run %s: %v", vars["id"], err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return nil
	}
	if run.Status != models.RunStatusCompleted {
		http.Error(w, "run is not completed yet", http.StatusConflict)
		return nil
	}
	view, err := assembleView(run)
	if err != nil {
		log.Printf("Error assembling report for run %s: %v", run.ID, err)
		http.Error(w, "failed to assemble report", http.StatusInternalServerError)
		return nil
	}
	return view
}

// ExportAveragesCSVHandler streams the ranked averages table as a download.
func ExportAveragesCSVHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := loadCompletedView(w, r, st)
		if view == nil {
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ResultsCSVFilename))
		if err := report.WriteResultsCSV(w, view); err != nil {
			log.Printf("Error writing results CSV: %v", err)
			return
		}
		mCSVExports.Inc(1)
	}
}

// ExportMatrixCSVHandler streams the full pairwise matrix as a download.
func ExportMatrixCSVHandler(st store.RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		run, err := st.Get(r.Context(), vars["id"])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "run not found", http.StatusNotFound)
				return
			}
			log.Printf("Error loading run %s: %v", vars["id"], err)
			http.Error(w, "failed to load run", http.StatusInternalServerError)
			return
		}
		if run.Status != models.RunStatusCompleted || run.Report == nil {
			http.Error(w, "run is not completed yet", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.MatrixCSVFilename))
		if err := report.WriteMatrixCSV(w, run.Report); err != nil {
			log.Printf("Error writing matrix CSV: %v", err)
			return
		}
		mCSVExports.Inc(1)
	}
}
