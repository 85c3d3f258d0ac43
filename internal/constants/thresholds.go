package constants

// Centralized threshold values used across the application.
// Keep these stable; change deliberately and document why.
// These are not configuration knobs; use pkg/config for env-driven settings.

const (
	// Overlap severity cutoffs on the [0,1] similarity scale.
	// A pair at or above a cutoff is classified at that level.
	OverlapSevere   = 0.80
	OverlapHigh     = 0.60
	OverlapModerate = 0.40
	OverlapLow      = 0.10

	// Keyword-level risk cutoffs on the average similarity scale.
	KeywordRiskHigh     = 0.60
	KeywordRiskElevated = 0.30

	// Circuit breaker rate thresholds
	CircuitFailureRate        = 0.6 // default for external HTTP
	CircuitSlowCallRate       = 0.7
	OpenAICircuitFailureRate  = 0.5
	OpenAICircuitSlowCallRate = 0.5

	// Run input limits. One SERP request per keyword, so the cap bounds both
	// provider spend and run duration.
	MaxKeywordsPerRun = 50
	MaxKeywordLength  = 200
)

// AllowedResultCounts are the organic result depths the UI offers; they match
// what the search API accepts for the num parameter.
var AllowedResultCounts = []int{5, 9, 10, 20, 30, 50, 100}

// IsAllowedResultCount reports whether n is one of AllowedResultCounts.
func IsAllowedResultCount(n int) bool {
	for _, v := range AllowedResultCounts {
		if v == n {
			return true
		}
	}
	return false
}
