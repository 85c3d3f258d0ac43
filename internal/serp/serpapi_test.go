package serp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "serp-similarity/pkg/errors"
)

func newTestSerpAPI(t *testing.T, handler http.HandlerFunc) (*SerpAPIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewSerpAPIClient("test-key", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSerpAPIClient: %+v", err)
	}
	c.baseURL = srv.URL
	return c, srv
}

func TestSerpAPIClient_RequiresKey(t *testing.T) {
	if _, err := NewSerpAPIClient("  ", 0); err == nil {
		t.Fatalf("expected error for blank API key")
	}
}

func TestSerpAPIClient_Fetch(t *testing.T) {
	c, _ := newTestSerpAPI(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "vegan recipes" {
			t.Errorf("unexpected q param: %q", q.Get("q"))
		}
		if q.Get("location") != "United States" {
			t.Errorf("expected default location, got %q", q.Get("location"))
		}
		if q.Get("num") != "9" {
			t.Errorf("expected num=9, got %q", q.Get("num"))
		}
		if q.Get("api_key") != "test-key" {
			t.Errorf("api key not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"organic_results": [
				{"position": 1, "title": "A", "link": "https://a.com/1", "snippet": "sa"},
				{"position": 2, "title": "B", "link": "https://b.com/2", "snippet": "sb"}
			]
		}`))
	})

	results, err := c.Fetch(context.Background(), "vegan recipes", FetchOptions{Limit: 9})
	if err != nil {
		t.Fatalf("Fetch: %+v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://a.com/1" || results[0].Position != 1 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Title != "B" {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
}

func TestSerpAPIClient_TruncatesOversizedPage(t *testing.T) {
	c, _ := newTestSerpAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organic_results": [
			{"link": "https://a.com"}, {"link": "https://b.com"},
			{"link": "https://c.com"}, {"link": "https://d.com"}
		]}`))
	})

	results, err := c.Fetch(context.Background(), "q", FetchOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Fetch: %+v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(results))
	}
	// Positions synthesized from order when the API omits them.
	if results[0].Position != 1 || results[1].Position != 2 {
		t.Fatalf("positions not synthesized: %+v", results)
	}
}

func TestSerpAPIClient_InBandError(t *testing.T) {
	c, _ := newTestSerpAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Invalid API key."}`))
	})

	_, err := c.Fetch(context.Background(), "q", FetchOptions{})
	if err == nil {
		t.Fatalf("expected error from in-band error payload")
	}
	if !errs.Is(err, errs.ErrExternal) {
		t.Fatalf("expected ExternalAPIError, got %+v", err)
	}
}

func TestSerpAPIClient_RateLimited(t *testing.T) {
	c, _ := newTestSerpAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Fetch(context.Background(), "q", FetchOptions{})
	if err == nil || !errs.Is(err, errs.ErrExternal) {
		t.Fatalf("expected external error for 429, got %+v", err)
	}
}

func TestSerpAPIClient_EmptyResults(t *testing.T) {
	c, _ := newTestSerpAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organic_results": []}`))
	})

	results, err := c.Fetch(context.Background(), "obscure query", FetchOptions{})
	if err != nil {
		t.Fatalf("empty results should not error: %+v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSerpAPIClient_BlankQuery(t *testing.T) {
	c, _ := newTestSerpAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := c.Fetch(context.Background(), "   ", FetchOptions{}); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %+v", err)
	}
}
