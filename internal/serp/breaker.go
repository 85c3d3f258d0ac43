package serp

import (
	"context"

	"serp-similarity/pkg/circuit"
)

// BreakerProvider guards a live provider with a circuit breaker so a dead or
// rate-limited search API sheds load fast instead of eating retry budgets.
// Place it under the cache: cached responses should not count as calls.
type BreakerProvider struct {
	inner   Provider
	breaker *circuit.Breaker
}

// NewBreakerProvider wraps inner with the given breaker. A nil breaker
// returns inner unchanged.
func NewBreakerProvider(inner Provider, breaker *circuit.Breaker) Provider {
	if breaker == nil {
		return inner
	}
	return &BreakerProvider{inner: inner, breaker: breaker}
}

func (p *BreakerProvider) Name() string { return p.inner.Name() }

// Fetch forwards through the breaker. When the breaker is open the call
// fails immediately with circuit.ErrOpen; the engine's retry loop treats
// that like any other provider error.
func (p *BreakerProvider) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error) {
	var results []Result
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		var ferr error
		results, ferr = p.inner.Fetch(ctx, query, opts)
		return ferr
	}, nil)
	if err != nil {
		return nil, err
	}
	return results, nil
}
