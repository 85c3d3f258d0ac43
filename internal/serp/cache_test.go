package serp

import (
	"context"
	"testing"
	"time"
)

// countingProvider records calls so tests can observe cache behavior.
type countingProvider struct {
	calls   int
	results []Result
	err     error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out, nil
}

func TestCachingProvider_ServesFromCache(t *testing.T) {
	inner := &countingProvider{results: []Result{{Position: 1, URL: "https://a.com"}}}
	p := NewCachingProvider(inner, time.Minute)

	opts := FetchOptions{Location: "United States", Limit: 9}
	for i := 0; i < 3; i++ {
		got, err := p.Fetch(context.Background(), "query", opts)
		if err != nil {
			t.Fatalf("Fetch %d: %+v", i, err)
		}
		if len(got) != 1 || got[0].URL != "https://a.com" {
			t.Fatalf("Fetch %d: unexpected results %+v", i, got)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", inner.calls)
	}
}

func TestCachingProvider_KeyIncludesOptions(t *testing.T) {
	inner := &countingProvider{results: []Result{{Position: 1, URL: "https://a.com"}}}
	p := NewCachingProvider(inner, time.Minute)

	ctx := context.Background()
	p.Fetch(ctx, "query", FetchOptions{Location: "United States", Limit: 9})
	p.Fetch(ctx, "query", FetchOptions{Location: "United States", Limit: 20})
	p.Fetch(ctx, "query", FetchOptions{Location: "Germany", Limit: 9})

	if inner.calls != 3 {
		t.Fatalf("distinct options must miss the cache, got %d calls", inner.calls)
	}
}

func TestCachingProvider_CopiesResults(t *testing.T) {
	inner := &countingProvider{results: []Result{{Position: 1, URL: "https://a.com"}}}
	p := NewCachingProvider(inner, time.Minute)

	ctx := context.Background()
	first, _ := p.Fetch(ctx, "query", FetchOptions{})
	first[0].URL = "mutated"

	second, _ := p.Fetch(ctx, "query", FetchOptions{})
	if second[0].URL != "https://a.com" {
		t.Fatalf("cache entry was mutated through a returned slice: %+v", second)
	}
}

func TestCachingProvider_DoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: context.DeadlineExceeded}
	p := NewCachingProvider(inner, time.Minute)

	ctx := context.Background()
	p.Fetch(ctx, "query", FetchOptions{})
	p.Fetch(ctx, "query", FetchOptions{})

	if inner.calls != 2 {
		t.Fatalf("errors must not be cached, got %d calls", inner.calls)
	}
}
