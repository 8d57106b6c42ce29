// internal/fetch/client_test.go
package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/valpere/TikTokIngester/internal/config"
)

func testConfig(baseURL string) config.FetcherConfig {
	return config.FetcherConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		RenderJS:   true,
		WaitMillis: 2000,
		Timeout:    5 * time.Second,
		RatePerSec: 100,
	}
}

func TestFetch(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"api_key":   q.Get("api_key"),
			"url":       q.Get("url"),
			"render_js": q.Get("render_js"),
			"wait":      q.Get("wait"),
		}
		w.Write([]byte("<html><body>rendered</body></html>"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	html, err := client.Fetch(context.Background(), ProfileURL("demo"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(html, "rendered") {
		t.Errorf("unexpected body %q", html)
	}

	want := map[string]string{
		"api_key":   "test-key",
		"url":       "https://www.tiktok.com/@demo",
		"render_js": "true",
		"wait":      "2000",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestFetch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "monthly quota exhausted", http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	_, err := client.Fetch(context.Background(), ProfileURL("demo"))
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "402") || !strings.Contains(err.Error(), "quota") {
		t.Errorf("error should carry status and body snippet, got %v", err)
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	if _, err := client.Fetch(context.Background(), ProfileURL("demo")); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	client := NewClient(testConfig("http://localhost:0"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Fetch(ctx, ProfileURL("demo")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestProfileURL(t *testing.T) {
	if got := ProfileURL("demo"); got != "https://www.tiktok.com/@demo" {
		t.Errorf("ProfileURL = %q", got)
	}
}
