package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/skyrank/internal/model"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Article 1</title>
      <link>http://example.com/article1</link>
      <description>First article</description>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Article 2</title>
      <link>http://example.com/article2</link>
      <description>Second article</description>
      <pubDate>Mon, 01 Jan 2024 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Article 3</title>
      <guid>urn:test:3</guid>
      <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func rssServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.Header.Get("User-Agent") != "skyrank-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testFetcher() *FeedFetcher {
	return NewFeedFetcher(Options{Timeout: 5 * time.Second, UserAgent: "skyrank-test"})
}

func TestFeedFetcherFetch(t *testing.T) {
	server := rssServer(t, testRSS, nil)
	src := model.Custom("Test", server.URL)

	page, err := testFetcher().Fetch(context.Background(), src, 10, "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	if page.Cursor != "" {
		t.Errorf("single page should have no cursor, got %q", page.Cursor)
	}

	first := page.Items[0].Post
	if first.URI != "http://example.com/article1" {
		t.Errorf("unexpected URI: %s", first.URI)
	}
	if first.Record.CreatedAt != "2024-01-01T12:00:00Z" {
		t.Errorf("unexpected createdAt: %s", first.Record.CreatedAt)
	}
	if !strings.HasPrefix(first.Record.Text, "Article 1") || !strings.Contains(first.Record.Text, "First article") {
		t.Errorf("unexpected text: %q", first.Record.Text)
	}
	if first.Author.Handle != "Test Feed" {
		t.Errorf("expected feed title as handle, got %q", first.Author.Handle)
	}

	if page.Items[2].Post.URI != "urn:test:3" {
		t.Errorf("item without link should use its GUID, got %s", page.Items[2].Post.URI)
	}
}

func TestFeedFetcherPaginates(t *testing.T) {
	server := rssServer(t, testRSS, nil)
	src := model.Custom("Test", server.URL)
	f := testFetcher()

	page, err := f.Fetch(context.Background(), src, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Cursor != "2" {
		t.Fatalf("expected 2 items and cursor 2, got %d %q", len(page.Items), page.Cursor)
	}

	page, err = f.Fetch(context.Background(), src, 2, page.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Cursor != "" {
		t.Errorf("expected last item and no cursor, got %d %q", len(page.Items), page.Cursor)
	}
}

func TestFeedFetcherErrors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()
	invalid := rssServer(t, "not valid xml", nil)

	tests := []struct {
		name   string
		uri    string
		cursor string
	}{
		{"not a url", "at://did:plc:x/app.bsky.feed.generator/cats", ""},
		{"404", notFound.URL, ""},
		{"invalid xml", invalid.URL, ""},
		{"bad cursor", invalid.URL, "abc"},
		{"unreachable", "http://localhost:99999/nonexistent", ""},
	}
	for _, tt := range tests {
		if _, err := testFetcher().Fetch(context.Background(), model.Custom("x", tt.uri), 10, tt.cursor); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestFeedFetcherRespectsCancellation(t *testing.T) {
	var hits atomic.Int32
	server := rssServer(t, testRSS, &hits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testFetcher().Fetch(ctx, model.Custom("x", server.URL), 10, ""); err == nil {
		t.Error("expected error for cancelled context")
	}
	if hits.Load() != 0 {
		t.Errorf("cancelled fetch should not reach the server, got %d hits", hits.Load())
	}
}

func TestFeedFetcherRateLimits(t *testing.T) {
	server := rssServer(t, testRSS, nil)
	f := NewFeedFetcher(Options{Timeout: 5 * time.Second, UserAgent: "skyrank-test", RatePerSecond: 20, Burst: 1})
	src := model.Custom("x", server.URL)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), src, 10, ""); err != nil {
			t.Fatal(err)
		}
	}
	// Two waits of 50ms after the initial burst token
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected rate limiting to space requests, took %v", elapsed)
	}
}

func TestItemURIFallsBackToHash(t *testing.T) {
	server := rssServer(t, `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
<item><title>No link</title></item></channel></rss>`, nil)

	page, err := testFetcher().Fetch(context.Background(), model.Custom("x", server.URL), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	uri := page.Items[0].Post.URI
	if !strings.HasPrefix(uri, "urn:sha256:") || len(uri) != len("urn:sha256:")+16 {
		t.Errorf("unexpected hashed URI %q", uri)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("unexpected truncation %q", got)
	}
	if got := truncate("  short  ", 10); got != "short" {
		t.Errorf("expected trimmed input, got %q", got)
	}
}
