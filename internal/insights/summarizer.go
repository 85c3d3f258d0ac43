// Package insights turns a finished similarity analysis into a short prose
// assessment. The OpenAI-backed summarizer is the primary path; a
// deterministic heuristic covers runs where the API is disabled, broken or
// rate limited, so reports always carry some narrative.
package insights

import (
	"context"
	"sort"
	"strings"

	"serp-similarity/internal/analysis"
	"serp-similarity/internal/models"
	"serp-similarity/internal/verdict"
)

// Summarizer produces the insights paragraph for a completed run.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// Input is the pre-formatted view of a run's findings handed to a summarizer.
// Values are already rounded and ordered; summarizers only phrase them.
type Input struct {
	Provider     string
	ResultCount  int
	Mode         string
	KeywordCount int
	Pairs        []PairLine
	Averages     []AverageLine
	SkippedList  string
	Rules        string
}

// PairLine is one matrix pair, worst first.
type PairLine struct {
	KeywordA string
	KeywordB string
	Percent  int
	Severity string
}

// AverageLine is one keyword's mean overlap.
type AverageLine struct {
	Keyword string
	Percent int
	Defined bool
}

// maxPromptPairs bounds the pair list handed to the model; beyond this the
// tail is all low-overlap noise that only burns tokens.
const maxPromptPairs = 12

// BuildInput flattens a run's report and verdict into summarizer input.
func BuildInput(opts models.RunOptions, report *models.SimilarityReport, assessment *verdict.Summary) Input {
	in := Input{
		Provider:    opts.Provider,
		ResultCount: opts.ResultCount,
		Mode:        string(opts.Mode),
	}
	if report == nil || assessment == nil {
		return in
	}

	in.KeywordCount = len(report.Keywords)
	in.SkippedList = strings.Join(report.Skipped, ", ")
	in.Rules = rulesLine(assessment)

	for i, p := range assessment.Pairs {
		if i == maxPromptPairs {
			break
		}
		in.Pairs = append(in.Pairs, PairLine{
			KeywordA: p.KeywordA,
			KeywordB: p.KeywordB,
			Percent:  analysis.Percent(p.Similarity),
			Severity: string(p.Severity),
		})
	}

	for _, k := range report.Keywords {
		avg, ok := report.Averages[k]
		line := AverageLine{Keyword: k, Defined: ok && avg.Defined}
		if line.Defined {
			line.Percent = analysis.Percent(avg.Value)
		}
		in.Averages = append(in.Averages, line)
	}

	return in
}

// rulesLine renders the classifier cutoffs as a single sentence fragment.
func rulesLine(assessment *verdict.Summary) string {
	rules := assessment.Rules
	if len(rules) == 0 {
		return ""
	}
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+rules[name])
	}
	return strings.Join(parts, "; ")
}
