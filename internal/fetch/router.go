package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/abelbrown/skyrank/internal/mixer"
	"github.com/abelbrown/skyrank/internal/model"
)

// ErrNoFetcher is returned when no fetcher serves a source.
var ErrNoFetcher = errors.New("no fetcher for source")

type prefixRoute struct {
	prefix  string
	fetcher mixer.Fetcher
}

// Router dispatches sources to fetchers. URI prefix routes are tried
// longest first, then routes by feed kind.
type Router struct {
	prefixes []prefixRoute
	kinds    map[model.FeedKind]mixer.Fetcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{kinds: make(map[model.FeedKind]mixer.Fetcher)}
}

// Kind routes every source of kind k to f.
func (r *Router) Kind(k model.FeedKind, f mixer.Fetcher) *Router {
	r.kinds[k] = f
	return r
}

// Prefix routes sources whose URI starts with prefix to f.
func (r *Router) Prefix(prefix string, f mixer.Fetcher) *Router {
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, fetcher: f})
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
	return r
}

func (r *Router) route(src model.FeedSource) mixer.Fetcher {
	if src.URI != "" {
		for _, p := range r.prefixes {
			if strings.HasPrefix(src.URI, p.prefix) {
				return p.fetcher
			}
		}
	}
	return r.kinds[src.Kind]
}

func (r *Router) Fetch(ctx context.Context, src model.FeedSource, limit int, cursor string) (model.Page, error) {
	f := r.route(src)
	if f == nil {
		return model.Page{}, fmt.Errorf("%w: %s %q", ErrNoFetcher, src.Kind, src.Key())
	}
	return f.Fetch(ctx, src, limit, cursor)
}
