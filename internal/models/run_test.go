package models

import (
	"testing"
	"time"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/extract"
	"serp-similarity/internal/serp"
	errs "serp-similarity/pkg/errors"
)

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "one per line",
			input: "buy shoes\nshoes online\nrunning shoes",
			want:  []string{"buy shoes", "shoes online", "running shoes"},
		},
		{
			name:  "trims and drops blanks",
			input: "  buy shoes  \n\n\t\nshoes online\n   ",
			want:  []string{"buy shoes", "shoes online"},
		},
		{
			name:  "duplicates collapse to first occurrence",
			input: "buy shoes\nshoes online\nbuy shoes",
			want:  []string{"buy shoes", "shoes online"},
		},
		{
			name:  "windows line endings",
			input: "buy shoes\r\nshoes online\r\n",
			want:  []string{"buy shoes", "shoes online"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKeywords(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeywords() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("ParseKeywords()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateKeywords(t *testing.T) {
	if err := ValidateKeywords([]string{"buy shoes"}); err != nil {
		t.Fatalf("single keyword should validate: %v", err)
	}
	if err := ValidateKeywords(nil); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("empty list: got %v, want validation error", err)
	}

	many := make([]string, 51)
	for i := range many {
		many[i] = "kw"
	}
	if err := ValidateKeywords(many); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("over cap: got %v, want validation error", err)
	}

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidateKeywords([]string{string(long)}); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("overlong keyword: got %v, want validation error", err)
	}
}

func TestRunOptions_Normalize(t *testing.T) {
	got := RunOptions{}.Normalize()
	want := DefaultRunOptions()
	if got != want {
		t.Fatalf("Normalize() = %+v, want defaults %+v", got, want)
	}

	// Provider has no static default: empty means whatever the deployment
	// wires, and the engine fills it at submission.
	if got.Provider != "" {
		t.Fatalf("Normalize() invented a provider: %+v", got)
	}

	partial := RunOptions{Location: "Germany"}.Normalize()
	if partial.Location != "Germany" {
		t.Fatalf("Normalize() overwrote explicit location: %+v", partial)
	}
	if partial.ResultCount != want.ResultCount || partial.Mode != want.Mode || partial.Provider != want.Provider {
		t.Fatalf("Normalize() did not fill remaining defaults: %+v", partial)
	}
}

func TestRunOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RunOptions
		wantErr bool
	}{
		{"defaults", DefaultRunOptions(), false},
		{"duckduckgo provider", RunOptions{Location: "United States", ResultCount: 10, Mode: extract.ModeFullURL, Provider: serp.ProviderDuckDuckGo}, false},
		{"missing location", RunOptions{ResultCount: 9, Mode: extract.ModeDomain, Provider: serp.ProviderSerpAPI}, true},
		{"unsupported count", RunOptions{Location: "United States", ResultCount: 7, Mode: extract.ModeDomain, Provider: serp.ProviderSerpAPI}, true},
		{"bad mode", RunOptions{Location: "United States", ResultCount: 9, Mode: "fuzzy", Provider: serp.ProviderSerpAPI}, true},
		{"bad provider", RunOptions{Location: "United States", ResultCount: 9, Mode: extract.ModeDomain, Provider: "bing"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && !errs.Is(err, errs.ErrValidation) {
				t.Fatalf("Validate(%+v) = %v, want validation error", tt.opts, err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate(%+v) = %v, want nil", tt.opts, err)
			}
		})
	}
}

func TestNewRun(t *testing.T) {
	keywords := []string{"buy shoes", "shoes online"}
	run := NewRun(keywords, RunOptions{}, "analyst-1")

	if run.ID == "" {
		t.Fatalf("NewRun() produced empty ID")
	}
	if run.Status != RunStatusPending {
		t.Fatalf("NewRun() status = %q, want %q", run.Status, RunStatusPending)
	}
	if run.Progress.Total != 2 || run.Progress.Fetched != 0 {
		t.Fatalf("NewRun() progress = %+v, want total 2 fetched 0", run.Progress)
	}
	if run.Options != DefaultRunOptions() {
		t.Fatalf("NewRun() options = %+v, want defaults", run.Options)
	}
	if run.RequestedBy != "analyst-1" {
		t.Fatalf("NewRun() requestedBy = %q", run.RequestedBy)
	}
	if run.CreatedAt.IsZero() {
		t.Fatalf("NewRun() createdAt is zero")
	}

	other := NewRun(keywords, RunOptions{}, "")
	if other.ID == run.ID {
		t.Fatalf("NewRun() reused ID %q", run.ID)
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	if RunStatusPending.IsTerminal() || RunStatusFetching.IsTerminal() {
		t.Fatalf("pending/fetching must not be terminal")
	}
	if !RunStatusCompleted.IsTerminal() || !RunStatusFailed.IsTerminal() {
		t.Fatalf("completed/failed must be terminal")
	}
}

func TestRun_CloneIsolation(t *testing.T) {
	now := time.Now().UTC()
	run := NewRun([]string{"a", "b"}, RunOptions{}, "")
	run.StartedAt = &now
	run.Report = &SimilarityReport{
		Keywords: []string{"a", "b"},
		Profiles: []analysis.KeywordProfile{
			{Keyword: "a", Keys: []string{"x.com"}},
			{Keyword: "b", Keys: []string{"x.com"}},
		},
		Matrix: &analysis.Matrix{
			Keywords: []string{"a", "b"},
			Cells: map[string]map[string]float64{
				"a": {"a": 1.0, "b": 1.0},
				"b": {"a": 1.0, "b": 1.0},
			},
		},
		Averages:    map[string]analysis.Average{"a": {Value: 1.0, Defined: true}, "b": {Value: 1.0, Defined: true}},
		GeneratedAt: now,
	}

	cp := run.Clone()
	cp.Keywords[0] = "mutated"
	cp.Report.Profiles[0].Keys[0] = "mutated.com"
	cp.Report.Matrix.Cells["a"]["b"] = 0.0
	cp.Report.Averages["a"] = analysis.Average{}
	*cp.StartedAt = now.Add(time.Hour)

	if run.Keywords[0] != "a" {
		t.Fatalf("clone shared keywords slice: %+v", run.Keywords)
	}
	if run.Report.Profiles[0].Keys[0] != "x.com" {
		t.Fatalf("clone shared profile keys: %+v", run.Report.Profiles)
	}
	if run.Report.Matrix.Cells["a"]["b"] != 1.0 {
		t.Fatalf("clone shared matrix cells: %+v", run.Report.Matrix.Cells)
	}
	if got := run.Report.Averages["a"]; !got.Defined {
		t.Fatalf("clone shared averages map: %+v", got)
	}
	if !run.StartedAt.Equal(now) {
		t.Fatalf("clone shared StartedAt pointer: %v", run.StartedAt)
	}
}

func TestRun_Summary(t *testing.T) {
	run := NewRun([]string{"a", "b", "c"}, RunOptions{Provider: serp.ProviderDuckDuckGo}, "analyst-2")
	run.Status = RunStatusFetching
	run.Progress.Fetched = 1

	s := run.Summary()
	if s.ID != run.ID || s.KeywordCount != 3 || s.Status != RunStatusFetching {
		t.Fatalf("Summary() = %+v", s)
	}
	if s.Progress.Fetched != 1 || s.Progress.Total != 3 {
		t.Fatalf("Summary() progress = %+v", s.Progress)
	}
	if s.Provider != serp.ProviderDuckDuckGo {
		t.Fatalf("Summary() provider = %q", s.Provider)
	}
	if s.RequestedBy != "analyst-2" {
		t.Fatalf("Summary() requestedBy = %q", s.RequestedBy)
	}
}

func TestRun_Duration(t *testing.T) {
	run := NewRun([]string{"a"}, RunOptions{}, "")
	if run.Duration() != 0 {
		t.Fatalf("unfinished run duration = %v, want 0", run.Duration())
	}

	start := time.Now().UTC()
	end := start.Add(3 * time.Second)
	run.StartedAt = &start
	run.CompletedAt = &end
	if run.Duration() != 3*time.Second {
		t.Fatalf("Duration() = %v, want 3s", run.Duration())
	}
}
