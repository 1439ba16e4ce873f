// Package fetch provides source fetchers for the feed mixer.
//
// FeedFetcher reads RSS/Atom feeds over HTTP, StaticFetcher serves pages
// held in memory (fixtures, tests), and Router dispatches each source to
// the right one.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/abelbrown/skyrank/internal/model"
)

// Options configures a FeedFetcher.
type Options struct {
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
	UserAgent     string        `koanf:"user_agent"`
}

// DefaultOptions returns conservative fetch settings.
func DefaultOptions() Options {
	return Options{
		Timeout:       15 * time.Second,
		RatePerSecond: 2,
		Burst:         1,
		UserAgent:     "skyrank/0.1 (+https://github.com/abelbrown/skyrank)",
	}
}

// FeedFetcher fetches custom sources whose URI is an RSS or Atom URL.
// Pagination is an offset into the feed's item list.
type FeedFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFeedFetcher creates a FeedFetcher. A non-positive rate disables
// limiting.
func NewFeedFetcher(opts Options) *FeedFetcher {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &FeedFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(limit, max(opts.Burst, 1)),
		userAgent: opts.UserAgent,
	}
}

// Fetch retrieves one page of the feed at src.URI.
//
// The function respects context cancellation and will return early
// if the context is cancelled.
func (f *FeedFetcher) Fetch(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error) {
	if !strings.HasPrefix(src.URI, "http://") && !strings.HasPrefix(src.URI, "https://") {
		return model.Page{}, fmt.Errorf("not a feed URL: %q", src.URI)
	}
	offset, err := parseCursor(cursor)
	if err != nil {
		return model.Page{}, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return model.Page{}, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URI, nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return model.Page{}, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Page{}, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return model.Page{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now().UTC()
	items := make([]model.TimelineItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, convertFeedItem(it, feed, now))
	}

	return paginate(items, limit, offset), nil
}

// convertFeedItem turns a feed entry into a timeline item.
func convertFeedItem(it *gofeed.Item, feed *gofeed.Feed, fetched time.Time) model.TimelineItem {
	published := fetched
	if it.PublishedParsed != nil {
		published = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		published = *it.UpdatedParsed
	}

	author := model.Author{Handle: feed.Title}
	if it.Author != nil && it.Author.Name != "" {
		author.DisplayName = it.Author.Name
	}

	text := it.Title
	summary := it.Description
	if summary == "" {
		summary = it.Content
	}
	if summary != "" {
		text += "\n\n" + truncate(summary, 300)
	}

	uri := itemURI(it)
	return model.TimelineItem{
		Post: model.PostView{
			URI:    uri,
			CID:    hashString(uri),
			Author: author,
			Record: model.Record{
				Text:      text,
				CreatedAt: published.UTC().Format(time.RFC3339),
			},
			IndexedAt: fetched.Format(time.RFC3339),
		},
	}
}

// itemURI picks a stable identity for a feed entry: the link, then the
// GUID, then a hash of title and date.
func itemURI(it *gofeed.Item) string {
	if it.Link != "" {
		return it.Link
	}
	if it.GUID != "" {
		return it.GUID
	}
	key := it.Title
	if it.PublishedParsed != nil {
		key += it.PublishedParsed.String()
	}
	return "urn:sha256:" + hashString(key)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
