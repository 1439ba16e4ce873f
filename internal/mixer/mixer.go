// Package mixer blends several independently paginated feeds into one page.
//
// Each configured source contributes a share of the page proportional to its
// percent. Sources are fetched concurrently; a source that fails contributes
// nothing and the rest of the mix proceeds. The combined page is
// deduplicated by post URI and ordered newest first by post creation time.
package mixer

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/skyrank/internal/logging"
	"github.com/abelbrown/skyrank/internal/model"
)

// MinFetchLimit is the smallest page requested from any source.
const MinFetchLimit = 50

// Fetcher retrieves one page of a source. An empty cursor requests the first
// page. Timeouts and cancellation are the fetcher's business via ctx.
type Fetcher interface {
	Fetch(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error) {
	return f(ctx, src, limit, cursor)
}

// Result is one mixed page plus the cursors for the next call.
// Cursors holds only sources that reported a further page.
type Result struct {
	Feed    []model.TimelineItem `json:"feed"`
	Cursors model.Cursors        `json:"cursors"`
}

func emptyResult() Result {
	return Result{Feed: []model.TimelineItem{}, Cursors: model.Cursors{}}
}

// Mixer combines sources through an injected Fetcher. It keeps no state
// between calls; pagination state travels in the cursor map.
type Mixer struct {
	fetcher Fetcher
}

// New creates a Mixer that fetches through f.
func New(f Fetcher) *Mixer {
	return &Mixer{fetcher: f}
}

// Mix is a convenience for New(f).Mix(...).
func Mix(ctx context.Context, entries []model.FeedMixEntry, limit int, cursors model.Cursors, f Fetcher) Result {
	return New(f).Mix(ctx, entries, limit, cursors)
}

// branch is the settled outcome of one source fetch.
type branch struct {
	key   string
	items []model.TimelineItem
	next  string
}

// Mix returns up to limit items drawn from entries. Empty or zero-weight
// configurations return an empty result rather than an error.
func (m *Mixer) Mix(ctx context.Context, entries []model.FeedMixEntry, limit int, cursors model.Cursors) Result {
	quotas := Allocate(entries, limit)
	if quotas == nil {
		return emptyResult()
	}

	results := m.fetchAll(ctx, entries, max(limit, MinFetchLimit), cursors)

	size := 0
	for i, r := range results {
		size += min(quotas[i], len(r.items))
	}
	combined := make([]model.TimelineItem, 0, size)
	seen := make(map[string]bool, size)
	for i, r := range results {
		for j := 0; j < quotas[i] && j < len(r.items); j++ {
			item := r.items[j]
			uri := item.Post.URI
			if uri == "" || seen[uri] {
				continue
			}
			seen[uri] = true
			src := entries[i].Source
			item.FeedSource = &src
			combined = append(combined, item)
		}
	}

	// Post creation time, not fetch order; ties keep source order
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Post.CreatedAt().After(combined[j].Post.CreatedAt())
	})
	if len(combined) > limit {
		combined = combined[:limit]
	}

	next := model.Cursors{}
	for _, r := range results {
		if r.next != "" {
			next[r.key] = r.next
		}
	}

	logging.Debug("Mixed feed",
		"sources", len(entries),
		"items", len(combined),
		"cursors", len(next))

	return Result{Feed: combined, Cursors: next}
}

// fetchAll fetches every entry concurrently and waits for all of them to
// settle. Branches never fail the group; errors become empty pages.
func (m *Mixer) fetchAll(ctx context.Context, entries []model.FeedMixEntry, fetchLimit int, cursors model.Cursors) []branch {
	results := make([]branch, len(entries))

	var g errgroup.Group
	for i, entry := range entries {
		src := entry.Source
		g.Go(func() error {
			results[i] = m.fetchSource(ctx, src, fetchLimit, cursors[src.Key()])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetchSource fetches a single source, mapping errors and panics to an
// empty page with no cursor.
func (m *Mixer) fetchSource(ctx context.Context, src model.FeedSource, limit int, cursor string) (b branch) {
	key := src.Key()
	b.key = key
	if key == "" || m.fetcher == nil {
		return b
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Source fetch panicked", "source", key, "panic", fmt.Sprint(r))
			b = branch{key: key}
		}
	}()

	page, err := m.fetcher.Fetch(ctx, src, limit, cursor)
	if err != nil {
		logging.Warn("Source fetch failed", "source", key, "error", err)
		return b
	}

	b.items = page.Items
	b.next = page.Cursor
	return b
}
