package serp

import (
	"context"
	"fmt"

	errs "serp-similarity/pkg/errors"
)

// Dispatcher routes each fetch to the provider the run asked for. Wiring
// decides which providers exist (SerpAPI needs a key, DuckDuckGo does not);
// runs pick between them per request via FetchOptions.Provider.
type Dispatcher struct {
	providers map[string]Provider
	def       Provider
}

// NewDispatcher builds a dispatcher with def as the fallback for requests
// that name no provider. Nil extras are skipped so callers can pass
// conditionally-constructed providers without branching.
func NewDispatcher(def Provider, extras ...Provider) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[string]Provider, 1+len(extras)),
		def:       def,
	}
	d.providers[def.Name()] = def
	for _, p := range extras {
		if p == nil {
			continue
		}
		d.providers[p.Name()] = p
	}
	return d
}

// Name reports the default provider's name.
func (d *Dispatcher) Name() string { return d.def.Name() }

// Has reports whether a provider with the given name is wired. The engine
// checks this at submission so a run asking for an unconfigured provider is
// rejected up front instead of failing keyword by keyword.
func (d *Dispatcher) Has(name string) bool {
	_, ok := d.providers[name]
	return ok
}

func (d *Dispatcher) pick(opts FetchOptions) (Provider, error) {
	if opts.Provider == "" {
		return d.def, nil
	}
	if p, ok := d.providers[opts.Provider]; ok {
		return p, nil
	}
	return nil, errs.NewValidation("serp.Dispatcher",
		fmt.Sprintf("provider %q is not configured", opts.Provider), nil)
}

// Fetch forwards to the requested provider.
func (d *Dispatcher) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error) {
	p, err := d.pick(opts)
	if err != nil {
		return nil, err
	}
	return p.Fetch(ctx, query, opts)
}

// Cached forwards the cache probe when the selected provider supports it.
func (d *Dispatcher) Cached(query string, opts FetchOptions) bool {
	p, err := d.pick(opts)
	if err != nil {
		return false
	}
	if cc, ok := p.(interface {
		Cached(query string, opts FetchOptions) bool
	}); ok {
		return cc.Cached(query, opts)
	}
	return false
}
