package serp

import (
	"context"
	"testing"
	"time"

	errs "serp-similarity/pkg/errors"
)

// namedProvider is a countingProvider with a configurable name.
type namedProvider struct {
	countingProvider
	name string
}

func (p *namedProvider) Name() string { return p.name }

func TestDispatcher_RoutesByName(t *testing.T) {
	def := &namedProvider{name: ProviderSerpAPI}
	alt := &namedProvider{name: ProviderDuckDuckGo}
	d := NewDispatcher(def, alt)

	ctx := context.Background()
	if _, err := d.Fetch(ctx, "q", FetchOptions{Provider: ProviderDuckDuckGo}); err != nil {
		t.Fatalf("Fetch via %s: %+v", ProviderDuckDuckGo, err)
	}
	if def.calls != 0 || alt.calls != 1 {
		t.Fatalf("expected call on alt only, got def=%d alt=%d", def.calls, alt.calls)
	}
}

func TestDispatcher_EmptyNameUsesDefault(t *testing.T) {
	def := &namedProvider{name: ProviderDuckDuckGo}
	d := NewDispatcher(def)

	if d.Name() != ProviderDuckDuckGo {
		t.Fatalf("Name() = %q, want %q", d.Name(), ProviderDuckDuckGo)
	}
	if _, err := d.Fetch(context.Background(), "q", FetchOptions{}); err != nil {
		t.Fatalf("Fetch with empty provider: %+v", err)
	}
	if def.calls != 1 {
		t.Fatalf("expected default provider call, got %d", def.calls)
	}
}

func TestDispatcher_UnknownProviderIsValidationError(t *testing.T) {
	d := NewDispatcher(&namedProvider{name: ProviderDuckDuckGo})

	if d.Has(ProviderSerpAPI) {
		t.Fatal("Has must report unwired providers as absent")
	}
	_, err := d.Fetch(context.Background(), "q", FetchOptions{Provider: ProviderSerpAPI})
	if err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
	if !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %+v", err)
	}
}

func TestDispatcher_NilExtrasSkipped(t *testing.T) {
	def := &namedProvider{name: ProviderDuckDuckGo}
	d := NewDispatcher(def, nil)

	if !d.Has(ProviderDuckDuckGo) {
		t.Fatal("default provider must be wired")
	}
}

func TestDispatcher_CachedProbesSelectedProvider(t *testing.T) {
	inner := &namedProvider{name: ProviderDuckDuckGo}
	inner.results = []Result{{Position: 1, URL: "https://a.com"}}
	cached := NewCachingProvider(inner, time.Minute)
	d := NewDispatcher(cached)

	opts := FetchOptions{Location: "United States", Limit: 9}
	if d.Cached("q", opts) {
		t.Fatal("nothing fetched yet, Cached must be false")
	}
	if _, err := d.Fetch(context.Background(), "q", opts); err != nil {
		t.Fatalf("Fetch: %+v", err)
	}
	if !d.Cached("q", opts) {
		t.Fatal("Cached must be true after a successful fetch")
	}
}
