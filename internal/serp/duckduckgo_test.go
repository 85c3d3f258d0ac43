package serp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const ddgSampleHTML = `<!DOCTYPE html>
<html><body>
<div class="result result--ad">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fads.example.com%2F">Sponsored</a>
</div>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.example.com%2Fpage&amp;rut=abc">Example Page</a>
  <a class="result__snippet" href="#">First snippet.</a>
</div>
<div class="result">
  <a class="result__a" href="https://direct.example.org/post">Direct Link</a>
  <a class="result__snippet" href="#">Second snippet.</a>
</div>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fthird.example.net%2F">Third</a>
</div>
</body></html>`

func newTestDDG(t *testing.T, html string) *DuckDuckGoClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Errorf("missing q parameter")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	c := NewDuckDuckGoClient(5 * time.Second)
	c.baseURL = srv.URL
	return c
}

func TestDuckDuckGoClient_Fetch(t *testing.T) {
	c := newTestDDG(t, ddgSampleHTML)

	results, err := c.Fetch(context.Background(), "example", FetchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Fetch: %+v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 organic results (ad skipped), got %d: %+v", len(results), results)
	}
	if results[0].URL != "https://www.example.com/page" {
		t.Fatalf("redirect not decoded: %+v", results[0])
	}
	if results[0].Snippet != "First snippet." {
		t.Fatalf("snippet not extracted: %+v", results[0])
	}
	if results[1].URL != "https://direct.example.org/post" {
		t.Fatalf("direct link mangled: %+v", results[1])
	}
	for i, r := range results {
		if r.Position != i+1 {
			t.Fatalf("positions not sequential: %+v", results)
		}
	}
}

func TestDuckDuckGoClient_Limit(t *testing.T) {
	c := newTestDDG(t, ddgSampleHTML)

	results, err := c.Fetch(context.Background(), "example", FetchOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Fetch: %+v", err)
	}
	if len(results) != 2 {
		t.Fatalf("limit not honored, got %d results", len(results))
	}
}

func TestDecodeRedirect(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.example.com%2Fx&rut=z", "https://www.example.com/x"},
		{"https://plain.example.com/a", "https://plain.example.com/a"},
		{"//duckduckgo.com/l/?rut=z", ""},
	}
	for _, c := range cases {
		if got := decodeRedirect(c.in); got != c.want {
			t.Fatalf("decodeRedirect(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
