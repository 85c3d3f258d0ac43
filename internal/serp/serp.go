// Package serp fetches search-engine result pages from external providers.
// Providers return ordered organic results; everything downstream (key
// extraction, similarity, aggregation) treats them as plain data.
package serp

import (
	"context"
)

// Provider names as reported by Name and accepted in run options.
const (
	ProviderSerpAPI    = "serpapi"
	ProviderDuckDuckGo = "duckduckgo"
)

// Result is one organic entry from a results page, ordered by rank.
type Result struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet,omitempty"`
}

// FetchOptions tunes a single SERP request.
type FetchOptions struct {
	// Location biases the query geographically, e.g. "United States".
	Location string
	// Limit is the number of organic results requested. Providers may return
	// fewer; they should not return more.
	Limit int
	// Provider names the provider the run asked for. Concrete clients ignore
	// it; the Dispatcher routes on it. Empty means the wiring default.
	Provider string
}

// Provider fetches the results page for one query.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs, cache keys and run records.
	Name() string
	// Fetch returns organic results ordered by rank. An empty slice with a
	// nil error is a valid outcome (the query matched nothing).
	Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error)
}
