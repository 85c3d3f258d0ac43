package testutil

import (
	"context"
	"sync"
	"time"

	"serp-similarity/internal/insights"
	"serp-similarity/internal/serp"
)

// MockProvider implements serp.Provider for tests.
// Results and errors are keyed by query; FailFirst makes a query fail that
// many times before succeeding, for retry paths.
type MockProvider struct {
	Mu        sync.Mutex
	Resp      map[string][]serp.Result
	Err       map[string]error
	FailFirst map[string]int
	Calls     map[string]int
	Delay     time.Duration
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Resp:      map[string][]serp.Result{},
		Err:       map[string]error{},
		FailFirst: map[string]int{},
		Calls:     map[string]int{},
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Fetch(ctx context.Context, query string, _ serp.FetchOptions) ([]serp.Result, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls[query]++

	if n, ok := m.FailFirst[query]; ok && m.Calls[query] <= n {
		if err, ok := m.Err[query]; ok {
			return nil, err
		}
		return nil, context.DeadlineExceeded
	}
	if err, ok := m.Err[query]; ok && m.FailFirst[query] == 0 {
		return nil, err
	}
	if r, ok := m.Resp[query]; ok {
		out := make([]serp.Result, len(r))
		copy(out, r)
		return out, nil
	}
	// default: empty page
	return nil, nil
}

// CallCount returns how many times a query was fetched.
func (m *MockProvider) CallCount(query string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Calls[query]
}

// Results builds an ordered result list from bare URLs.
func Results(urls ...string) []serp.Result {
	out := make([]serp.Result, 0, len(urls))
	for i, u := range urls {
		out = append(out, serp.Result{Position: i + 1, Title: u, URL: u})
	}
	return out
}

// MockSummarizer implements insights.Summarizer for tests.
type MockSummarizer struct {
	Mu    sync.Mutex
	Text  string
	Err   error
	Calls int
	Last  insights.Input
}

func NewMockSummarizer(text string) *MockSummarizer {
	return &MockSummarizer{Text: text}
}

func (m *MockSummarizer) Summarize(_ context.Context, in insights.Input) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	m.Last = in
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}
