package runner

import (
	"fmt"

	"serp-similarity/internal/constants"
	"serp-similarity/internal/extract"
	"serp-similarity/internal/models"
	"serp-similarity/internal/serp"
)

// RejectReason is a structured reason a submission never enters the queue.
// The code is stable for logs and API clients; the description is for humans.
type RejectReason struct {
	Code        string
	Description string
}

// String returns the description for logging/display
func (r RejectReason) String() string {
	return r.Description
}

// Predefined rejection reasons for type safety
var (
	NoKeywords = RejectReason{
		Code:        "no_keywords",
		Description: "No keywords submitted - at least one keyword is required",
	}

	TooManyKeywords = func(max, actual int) RejectReason {
		return RejectReason{
			Code:        "too_many_keywords",
			Description: fmt.Sprintf("Too many keywords: %d submitted, maximum is %d per run", actual, max),
		}
	}

	BlankKeyword = func(position int) RejectReason {
		return RejectReason{
			Code:        "blank_keyword",
			Description: fmt.Sprintf("Keyword at position %d is blank", position+1),
		}
	}

	KeywordTooLong = func(keyword string, max int) RejectReason {
		if len(keyword) > 32 {
			keyword = keyword[:32] + "..."
		}
		return RejectReason{
			Code:        "keyword_too_long",
			Description: fmt.Sprintf("Keyword %q exceeds %d characters", keyword, max),
		}
	}

	MissingLocation = RejectReason{
		Code:        "missing_location",
		Description: "Location is required - leave the field at its default rather than clearing it",
	}

	BadResultCount = func(n int, allowed []int) RejectReason {
		return RejectReason{
			Code:        "bad_result_count",
			Description: fmt.Sprintf("Result count %d is not supported (allowed: %v)", n, allowed),
		}
	}

	UnknownMode = func(mode string) RejectReason {
		return RejectReason{
			Code:        "unknown_mode",
			Description: fmt.Sprintf("Unknown comparison mode %q (allowed: domain, full_url)", mode),
		}
	}

	UnknownProvider = func(provider string) RejectReason {
		return RejectReason{
			Code:        "unknown_provider",
			Description: fmt.Sprintf("Unknown SERP provider %q (allowed: %s, %s)", provider, serp.ProviderSerpAPI, serp.ProviderDuckDuckGo),
		}
	}

	QueueFull = RejectReason{
		Code:        "queue_full",
		Description: "Run queue is full - wait for current analyses to finish and resubmit",
	}

	ShuttingDown = RejectReason{
		Code:        "shutting_down",
		Description: "Engine is shutting down and no longer accepts runs",
	}
)

// checkKeywords enforces count and length limits on an already-parsed list
func checkKeywords(keywords []string) (reject bool, reason RejectReason) {
	if len(keywords) == 0 {
		return true, NoKeywords
	}
	if len(keywords) > constants.MaxKeywordsPerRun {
		return true, TooManyKeywords(constants.MaxKeywordsPerRun, len(keywords))
	}
	for i, k := range keywords {
		if k == "" {
			return true, BlankKeyword(i)
		}
		if len(k) > constants.MaxKeywordLength {
			return true, KeywordTooLong(k, constants.MaxKeywordLength)
		}
	}
	return false, RejectReason{}
}

// checkOptions verifies every option against its supported set
func checkOptions(opts models.RunOptions) (reject bool, reason RejectReason) {
	if opts.Location == "" {
		return true, MissingLocation
	}
	if !constants.IsAllowedResultCount(opts.ResultCount) {
		return true, BadResultCount(opts.ResultCount, constants.AllowedResultCounts)
	}
	if _, err := extract.ParseMode(string(opts.Mode)); err != nil {
		return true, UnknownMode(string(opts.Mode))
	}
	// Empty provider means the deployment default; Submit resolves it.
	switch opts.Provider {
	case "", serp.ProviderSerpAPI, serp.ProviderDuckDuckGo:
	default:
		return true, UnknownProvider(opts.Provider)
	}
	return false, RejectReason{}
}

// Precheck gates a submission before it is stored or queued. It returns nil
// when the run may proceed, otherwise the first rejection found.
// Keywords must already be parsed (trimmed, deduplicated); options must be
// normalized. Both happen in models.NewRun.
func Precheck(keywords []string, opts models.RunOptions) *RejectReason {
	if rej, reason := checkKeywords(keywords); rej {
		return &reason
	}
	if rej, reason := checkOptions(opts); rej {
		return &reason
	}
	return nil
}
