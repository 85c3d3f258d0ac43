package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"serp-similarity/internal/constants"
	errs "serp-similarity/pkg/errors"
)

const serpAPIBaseURL = "https://serpapi.com/search.json"

// SerpAPIClient fetches Google results pages through the SerpAPI service.
// One client is safe for concurrent use; it holds no per-request state.
type SerpAPIClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewSerpAPIClient creates a client with the given API key.
func NewSerpAPIClient(apiKey string, timeout time.Duration) (*SerpAPIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errs.NewValidation("serp.NewSerpAPIClient", "API key is required", nil)
	}
	if timeout <= 0 {
		timeout = constants.SerpRequestTimeout
	}
	return &SerpAPIClient{
		apiKey:  apiKey,
		baseURL: serpAPIBaseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *SerpAPIClient) Name() string { return ProviderSerpAPI }

// serpAPIResponse covers the fields we consume; SerpAPI returns much more.
type serpAPIResponse struct {
	Error          string           `json:"error"`
	OrganicResults []serpAPIOrganic `json:"organic_results"`
}

type serpAPIOrganic struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// Fetch requests one results page. Query parameters mirror a desktop Google
// search: hl=en, gl=us, google_domain=google.com, device=desktop, with
// location and num taken from opts.
func (c *SerpAPIClient) Fetch(ctx context.Context, query string, opts FetchOptions) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.NewValidation("serp.SerpAPIClient.Fetch", "query must not be empty", nil)
	}

	location := opts.Location
	if location == "" {
		location = constants.DefaultLocation
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("location", location)
	params.Set("hl", constants.DefaultLanguage)
	params.Set("gl", constants.DefaultCountry)
	params.Set("google_domain", constants.DefaultGoogleDomain)
	params.Set("device", constants.DefaultDevice)
	if opts.Limit > 0 {
		params.Set("num", strconv.Itoa(opts.Limit))
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi", "build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi", "rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi",
			fmt.Sprintf("server error: status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi", "decode response", err)
	}
	// SerpAPI reports failures like bad keys or exhausted credits in-band.
	if payload.Error != "" {
		return nil, errs.NewExternal("serp.SerpAPIClient.Fetch", "serpapi", payload.Error, nil)
	}

	results := make([]Result, 0, len(payload.OrganicResults))
	for i, r := range payload.OrganicResults {
		pos := r.Position
		if pos == 0 {
			pos = i + 1
		}
		results = append(results, Result{
			Position: pos,
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
		})
	}
	// The API may return a page larger than num for some locales.
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
