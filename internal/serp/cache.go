package serp

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"serp-similarity/internal/constants"
	"serp-similarity/pkg/metrics"
)

var (
	mCacheHits   = metrics.Default.Counter("serp_cache_hits_total", "SERP responses served from cache")
	mCacheMisses = metrics.Default.Counter("serp_cache_misses_total", "SERP fetches forwarded to the provider")
)

// CachingProvider memoizes successful provider responses for a TTL so that
// re-running an analysis does not spend API credits on identical queries.
// Errors are never cached.
type CachingProvider struct {
	inner Provider
	cache *gocache.Cache
}

// NewCachingProvider wraps inner with a TTL cache.
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = constants.SerpCacheTTLDefault
	}
	return &CachingProvider{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (p *CachingProvider) Name() string { return p.inner.Name() }

// Fetch serves from cache when possible. Cached slices are copied on the way
// in and out so callers can't mutate shared state.
func (p *CachingProvider) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error) {
	key := cacheKey(p.inner.Name(), query, opts)
	if v, ok := p.cache.Get(key); ok {
		if cached, ok := v.([]Result); ok {
			mCacheHits.Inc(1)
			out := make([]Result, len(cached))
			copy(out, cached)
			return out, nil
		}
	}
	mCacheMisses.Inc(1)

	results, err := p.inner.Fetch(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	stored := make([]Result, len(results))
	copy(stored, results)
	p.cache.Set(key, stored, gocache.DefaultExpiration)
	return results, nil
}

// Cached reports whether a fetch for this query would currently be served
// from cache. The answer can go stale; callers use it for annotations only.
func (p *CachingProvider) Cached(query string, opts FetchOptions) bool {
	_, ok := p.cache.Get(cacheKey(p.inner.Name(), query, opts))
	return ok
}

func cacheKey(provider, query string, opts FetchOptions) string {
	return fmt.Sprintf("%s|%s|%d|%s", provider, opts.Location, opts.Limit, query)
}
