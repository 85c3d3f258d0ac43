package serp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"serp-similarity/internal/constants"
	errs "serp-similarity/pkg/errors"
)

const ddgBaseURL = "https://html.duckduckgo.com/html/"

// DuckDuckGoClient scrapes the HTML-only DuckDuckGo endpoint. It needs no API
// key, which makes it the default provider for trying the tool out, but it
// ignores FetchOptions.Location (the endpoint has no geo targeting) and its
// rankings differ from Google's. Production analyses should use SerpAPI.
type DuckDuckGoClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewDuckDuckGoClient creates a keyless provider.
func NewDuckDuckGoClient(timeout time.Duration) *DuckDuckGoClient {
	if timeout <= 0 {
		timeout = constants.SerpRequestTimeout
	}
	return &DuckDuckGoClient{
		baseURL:   ddgBaseURL,
		userAgent: "Mozilla/5.0 (compatible; serp-similarity/1.0)",
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *DuckDuckGoClient) Name() string { return ProviderDuckDuckGo }

// Fetch scrapes one results page and returns at most opts.Limit organic hits.
func (c *DuckDuckGoClient) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.NewValidation("serp.DuckDuckGoClient.Fetch", "query must not be empty", nil)
	}

	params := url.Values{}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errs.NewExternal("serp.DuckDuckGoClient.Fetch", "duckduckgo", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewExternal("serp.DuckDuckGoClient.Fetch", "duckduckgo", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, errs.NewExternal("serp.DuckDuckGoClient.Fetch", "duckduckgo", "rate limited", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, errs.NewExternal("serp.DuckDuckGoClient.Fetch", "duckduckgo",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errs.NewExternal("serp.DuckDuckGoClient.Fetch", "duckduckgo", "parse response", err)
	}

	var results []Result
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		target := decodeRedirect(href)
		if target == "" {
			return true
		}
		results = append(results, Result{
			Position: len(results) + 1,
			Title:    strings.TrimSpace(anchor.Text()),
			URL:      target,
			Snippet:  strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return opts.Limit <= 0 || len(results) < opts.Limit
	})

	return results, nil
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=<escaped target> indirection.
// Direct links pass through unchanged; unparseable hrefs yield "".
func decodeRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		return u.Query().Get("uddg")
	}
	return href
}
