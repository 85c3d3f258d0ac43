// Package extract turns raw SERP results into ordered comparison keys.
// It is a pure transformation: no I/O, no ambient configuration. The
// comparison mode is always passed explicitly by the caller.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"serp-similarity/internal/serp"
	errs "serp-similarity/pkg/errors"
)

// Mode selects how a result URL becomes a comparison key.
type Mode string

const (
	// ModeDomain compares normalized hosts.
	ModeDomain Mode = "domain"
	// ModeFullURL compares whole URLs, trimmed of surrounding whitespace.
	ModeFullURL Mode = "full_url"
)

// ParseMode validates user-supplied mode strings.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDomain:
		return ModeDomain, nil
	case ModeFullURL:
		return ModeFullURL, nil
	}
	return "", errs.NewValidation("extract.ParseMode", fmt.Sprintf("unknown comparison mode %q", s), nil)
}

// KeyRule normalizes the host of a result URL into a comparison key.
// The rule is deliberately pluggable: which subdomains count as "the same
// site" is product policy, not a law of the domain.
type KeyRule func(host string) string

// StripWWW is the default rule: lowercase the host, drop any port and a
// trailing dot, and remove one leading "www." label. All other subdomains
// are preserved, so blog.example.com and example.com remain distinct keys.
func StripWWW(host string) string {
	h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	h = strings.TrimPrefix(h, "www.")
	return h
}

// RegistrableDomain reduces a host to its registrable domain (eTLD+1) via
// the public suffix list: shop.blog.example.co.uk becomes example.co.uk.
// Offered as an alternative rule for teams that want all subdomains folded
// together; falls back to StripWWW when the suffix list cannot resolve the
// host (IPs, single labels).
func RegistrableDomain(host string) string {
	h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if d, err := publicsuffix.EffectiveTLDPlusOne(h); err == nil {
		return d
	}
	return StripWWW(h)
}

// Config tunes the extractor without code changes.
type Config struct {
	// DomainRule applies in ModeDomain after scheme/path stripping.
	DomainRule KeyRule
}

// DefaultConfig uses the StripWWW rule.
func DefaultConfig() Config {
	return Config{DomainRule: StripWWW}
}

// Extractor derives comparison keys from raw results.
type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.DomainRule == nil {
		cfg.DomainRule = StripWWW
	}
	return &Extractor{cfg: cfg}
}

func NewDefault() *Extractor { return NewExtractor(DefaultConfig()) }

// Extract returns the ordered comparison keys for the first
// min(len(items), limit) results. Items without a usable URL inside that
// window are skipped, reported in skipped as extraction errors, and not
// backfilled; they never fail the call. limit <= 0 means no truncation.
//
// Any mode other than ModeFullURL is treated as ModeDomain; user input is
// validated earlier via ParseMode.
func (e *Extractor) Extract(items []serp.Result, mode Mode, limit int) (keys []string, skipped []error) {
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}

	keys = make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw := strings.TrimSpace(items[i].URL)
		if raw == "" {
			skipped = append(skipped, errs.NewExtraction("extract.Extract",
				fmt.Sprintf("result at rank %d has no URL", i+1), nil))
			continue
		}

		if mode == ModeFullURL {
			keys = append(keys, raw)
			continue
		}

		host, ok := hostOf(raw)
		if !ok {
			skipped = append(skipped, errs.NewExtraction("extract.Extract",
				fmt.Sprintf("result at rank %d has unparseable URL %q", i+1, raw), nil))
			continue
		}
		keys = append(keys, e.cfg.DomainRule(host))
	}
	return keys, skipped
}

// Extract applies the default configuration; see Extractor.Extract.
func Extract(items []serp.Result, mode Mode, limit int) ([]string, []error) {
	return NewDefault().Extract(items, mode, limit)
}

// hostOf parses the URL and returns its hostname without port. URLs missing
// a scheme ("example.com/x") are retried with https so bare domains, common
// in hand-fed fixtures, still resolve.
func hostOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil || u.Hostname() == "" {
			return "", false
		}
	}
	return u.Hostname(), true
}
