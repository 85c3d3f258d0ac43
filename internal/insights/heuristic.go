package insights

import (
	"context"
	"fmt"
	"strings"
)

// HeuristicSummarizer phrases the findings without any external call. It is
// the fallback when insights are disabled, the API key is missing, or the
// OpenAI circuit is open, so reports never ship without a narrative.
type HeuristicSummarizer struct{}

func NewHeuristicSummarizer() *HeuristicSummarizer { return &HeuristicSummarizer{} }

func (h *HeuristicSummarizer) Summarize(_ context.Context, in Input) (string, error) {
	if in.KeywordCount == 0 {
		return "No keywords produced usable results, so there is nothing to compare.", nil
	}
	if in.KeywordCount == 1 || len(in.Pairs) == 0 {
		msg := "Only one keyword returned results; cannibalization needs at least two keywords to compare."
		if in.SkippedList != "" {
			msg += fmt.Sprintf(" Skipped for lack of results: %s.", in.SkippedList)
		}
		return msg, nil
	}

	var sb strings.Builder

	worst := in.Pairs[0]
	fmt.Fprintf(&sb, "%q and %q share %d%% of their results (%s overlap).",
		worst.KeywordA, worst.KeywordB, worst.Percent, worst.Severity)

	flagged := 0
	for _, p := range in.Pairs {
		if p.Severity == "high" || p.Severity == "severe" {
			flagged++
		}
	}
	switch {
	case flagged > 1:
		fmt.Fprintf(&sb, " %d keyword pairs overlap at high severity or worse; consolidate the overlapping pages or differentiate their targeting, starting with the worst pair.", flagged)
	case flagged == 1:
		sb.WriteString(" Consider consolidating the two pages or differentiating their targeting.")
	default:
		sb.WriteString(" Overlap across the set is moderate at worst; no immediate action needed, but keep an eye on rankings for the closest pairs.")
	}

	if risky := topRisk(in.Averages); risky != nil {
		fmt.Fprintf(&sb, " %q has the highest average overlap across the set at %d%%.", risky.Keyword, risky.Percent)
	}

	if in.SkippedList != "" {
		fmt.Fprintf(&sb, " Skipped for lack of results: %s.", in.SkippedList)
	}

	return sb.String(), nil
}

func topRisk(avgs []AverageLine) *AverageLine {
	var top *AverageLine
	for i := range avgs {
		if !avgs[i].Defined {
			continue
		}
		if top == nil || avgs[i].Percent > top.Percent {
			top = &avgs[i]
		}
	}
	return top
}

var _ Summarizer = (*HeuristicSummarizer)(nil)
