package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/constants"
	"serp-similarity/internal/extract"
	"serp-similarity/internal/serp"
	errs "serp-similarity/pkg/errors"
)

// RunStatus represents the lifecycle state of an analysis run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusFetching  RunStatus = "fetching"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run will not change state again.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunOptions are the user-tunable knobs for a run. Zero values are filled
// from DefaultRunOptions before validation.
type RunOptions struct {
	Location    string       `json:"location" db:"location"`
	ResultCount int          `json:"result_count" db:"result_count"`
	Mode        extract.Mode `json:"mode" db:"mode"`
	// Provider picks the SERP backend. Empty means the deployment default.
	Provider string `json:"provider" db:"provider"`
}

// DefaultRunOptions mirrors the search API defaults. Provider stays empty:
// which provider serves a run that names none depends on what the deployment
// has wired (SerpAPI needs a key), so the engine resolves it at submission.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Location:    constants.DefaultLocation,
		ResultCount: constants.DefaultResultCount,
		Mode:        extract.ModeDomain,
	}
}

// Normalize fills empty fields from defaults. It does not validate.
func (o RunOptions) Normalize() RunOptions {
	def := DefaultRunOptions()
	if strings.TrimSpace(o.Location) == "" {
		o.Location = def.Location
	}
	if o.ResultCount == 0 {
		o.ResultCount = def.ResultCount
	}
	if o.Mode == "" {
		o.Mode = def.Mode
	}
	return o
}

// Validate checks every option against its supported set.
func (o RunOptions) Validate() error {
	const op = "RunOptions.Validate"
	if strings.TrimSpace(o.Location) == "" {
		return errs.NewValidation(op, "location is required", nil)
	}
	if !constants.IsAllowedResultCount(o.ResultCount) {
		return errs.NewValidation(op, fmt.Sprintf("result count %d not supported (allowed: %v)", o.ResultCount, constants.AllowedResultCounts), nil)
	}
	if _, err := extract.ParseMode(string(o.Mode)); err != nil {
		return err
	}
	switch o.Provider {
	case "", serp.ProviderSerpAPI, serp.ProviderDuckDuckGo:
	default:
		return errs.NewValidation(op, fmt.Sprintf("unknown provider %q", o.Provider), nil)
	}
	return nil
}

// RunProgress counts keywords through the fetch stage. Total is fixed at
// submission; Fetched grows monotonically as SERP requests complete.
type RunProgress struct {
	Fetched int `json:"fetched"`
	Total   int `json:"total"`
}

// SimilarityReport is the computed output of a completed run. It is a plain
// value: stored as-is, rendered as-is, rebuilt fresh on every run.
type SimilarityReport struct {
	Keywords    []string                    `json:"keywords"`
	Profiles    []analysis.KeywordProfile   `json:"profiles"`
	Matrix      *analysis.Matrix            `json:"matrix"`
	Averages    map[string]analysis.Average `json:"averages"`
	Skipped     []string                    `json:"skipped,omitempty"`
	Insights    string                      `json:"insights,omitempty"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// Run is one keyword-set analysis: submitted keywords, options, lifecycle
// state and, once completed, the similarity report.
type Run struct {
	ID          string            `json:"id" db:"id"`
	Keywords    []string          `json:"keywords"`
	Options     RunOptions        `json:"options"`
	Status      RunStatus         `json:"status" db:"status"`
	Progress    RunProgress       `json:"progress"`
	Error       string            `json:"error,omitempty" db:"error"`
	RequestedBy string            `json:"requested_by,omitempty" db:"requested_by"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	Report      *SimilarityReport `json:"report,omitempty"`
}

// NewRun builds a pending run for the given keywords. Keywords must already
// be parsed and validated; options are normalized but not validated here.
func NewRun(keywords []string, opts RunOptions, requestedBy string) *Run {
	return &Run{
		ID:          uuid.NewString(),
		Keywords:    keywords,
		Options:     opts.Normalize(),
		Status:      RunStatusPending,
		Progress:    RunProgress{Total: len(keywords)},
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// Duration returns wall time from start to completion, zero when the run has
// not finished.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// Clone returns a deep copy so stores can hand out snapshots without sharing
// mutable state with the engine.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Keywords = append([]string(nil), r.Keywords...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	if r.Report != nil {
		rep := *r.Report
		rep.Keywords = append([]string(nil), r.Report.Keywords...)
		rep.Skipped = append([]string(nil), r.Report.Skipped...)
		rep.Profiles = make([]analysis.KeywordProfile, len(r.Report.Profiles))
		for i, p := range r.Report.Profiles {
			rep.Profiles[i] = analysis.KeywordProfile{
				Keyword: p.Keyword,
				Keys:    append([]string(nil), p.Keys...),
			}
		}
		if r.Report.Matrix != nil {
			m := &analysis.Matrix{
				Keywords: append([]string(nil), r.Report.Matrix.Keywords...),
				Cells:    make(map[string]map[string]float64, len(r.Report.Matrix.Cells)),
			}
			for k, row := range r.Report.Matrix.Cells {
				cpRow := make(map[string]float64, len(row))
				for k2, v := range row {
					cpRow[k2] = v
				}
				m.Cells[k] = cpRow
			}
			rep.Matrix = m
		}
		if r.Report.Averages != nil {
			avgs := make(map[string]analysis.Average, len(r.Report.Averages))
			for k, v := range r.Report.Averages {
				avgs[k] = v
			}
			rep.Averages = avgs
		}
		cp.Report = &rep
	}
	return &cp
}

// RunSummary is the list-view projection of a run.
type RunSummary struct {
	ID           string      `json:"id"`
	KeywordCount int         `json:"keyword_count"`
	Status       RunStatus   `json:"status"`
	Progress     RunProgress `json:"progress"`
	Provider     string      `json:"provider"`
	RequestedBy  string      `json:"requested_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Summary projects the run for list views.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		KeywordCount: len(r.Keywords),
		Status:       r.Status,
		Progress:     r.Progress,
		Provider:     r.Options.Provider,
		RequestedBy:  r.RequestedBy,
		CreatedAt:    r.CreatedAt,
	}
}
