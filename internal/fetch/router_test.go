package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/abelbrown/skyrank/internal/mixer"
	"github.com/abelbrown/skyrank/internal/model"
)

func named(name string) mixer.Fetcher {
	return mixer.FetcherFunc(func(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error) {
		return model.Page{Cursor: name}, nil
	})
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter().
		Kind(model.FeedTimeline, named("timeline")).
		Kind(model.FeedCustom, named("custom")).
		Prefix("http", named("http")).
		Prefix("https://special.example/", named("special"))

	tests := []struct {
		src  model.FeedSource
		want string
	}{
		{model.Timeline("Home"), "timeline"},
		{model.Custom("Cats", "at://feeds/cats"), "custom"},
		{model.Custom("Blog", "https://blog.example/rss"), "http"},
		{model.Custom("Special", "https://special.example/feed"), "special"},
	}
	for _, tt := range tests {
		page, err := r.Fetch(context.Background(), tt.src, 10, "")
		if err != nil {
			t.Fatalf("%s: %v", tt.src.Label, err)
		}
		if page.Cursor != tt.want {
			t.Errorf("%s: routed to %q, want %q", tt.src.Label, page.Cursor, tt.want)
		}
	}
}

func TestRouterNoRoute(t *testing.T) {
	r := NewRouter().Kind(model.FeedTimeline, named("timeline"))
	_, err := r.Fetch(context.Background(), model.Custom("Cats", "at://feeds/cats"), 10, "")
	if !errors.Is(err, ErrNoFetcher) {
		t.Errorf("expected ErrNoFetcher, got %v", err)
	}
}

func TestRouterFeedsMixer(t *testing.T) {
	static := NewStaticFetcher(map[string][]model.TimelineItem{
		model.TimelineKey: staticItems("home", 4),
	})
	r := NewRouter().Kind(model.FeedTimeline, static)

	res := mixer.Mix(context.Background(), []model.FeedMixEntry{
		{Source: model.Timeline("Home"), Percent: 50},
		{Source: model.Custom("Unrouted", "at://feeds/none"), Percent: 50},
	}, 4, nil, r)

	if len(res.Feed) != 2 {
		t.Errorf("unrouted source should contribute nothing, got %d items", len(res.Feed))
	}
}
