package fetch

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/abelbrown/skyrank/internal/model"
)

// StaticFetcher serves fixed item lists keyed by source key, paginated by
// offset cursors. It is safe for concurrent use; the lists are never
// modified after construction.
type StaticFetcher struct {
	sources map[string][]model.TimelineItem
}

// NewStaticFetcher creates a fetcher over the given lists.
func NewStaticFetcher(sources map[string][]model.TimelineItem) *StaticFetcher {
	if sources == nil {
		sources = map[string][]model.TimelineItem{}
	}
	return &StaticFetcher{sources: sources}
}

// LoadStatic reads a JSON fixture: an object mapping source keys
// ("timeline" or a feed URI) to arrays of timeline items.
func LoadStatic(path string) (*StaticFetcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var sources map[string][]model.TimelineItem
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return NewStaticFetcher(sources), nil
}

// Keys returns the source keys the fetcher knows.
func (s *StaticFetcher) Keys() []string {
	keys := make([]string, 0, len(s.sources))
	for k := range s.sources {
		keys = append(keys, k)
	}
	return keys
}

func (s *StaticFetcher) Fetch(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error) {
	if err := ctx.Err(); err != nil {
		return model.Page{}, err
	}
	items, ok := s.sources[src.Key()]
	if !ok {
		return model.Page{}, fmt.Errorf("%w: %q", ErrNoFetcher, src.Key())
	}
	offset, err := parseCursor(cursor)
	if err != nil {
		return model.Page{}, err
	}
	return paginate(items, limit, offset), nil
}
