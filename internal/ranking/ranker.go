// Package ranking orders posts for display.
//
// Rankers are stateless functions (post, context) -> score. Rank sorts by
// score, highest first, and is stable: posts with equal scores keep their
// input order, so ranking an already-ranked list is a no-op.
//
// Rankers never mutate posts and never read a clock; "now" comes from the
// Context so results are reproducible.
package ranking

import (
	"sort"
	"time"

	"github.com/abelbrown/skyrank/internal/model"
)

// DefaultWilsonZ is the z-score for a 95% confidence interval.
const DefaultWilsonZ = 1.96

// Ranker scores posts for ranking decisions.
// Implementations should be stateless and thread-safe.
type Ranker interface {
	// Name returns a unique identifier for this ranker
	Name() string

	// Score returns a score for the post (higher = earlier in the feed)
	Score(post *model.PostMetrics, ctx *Context) float64
}

// Context provides data rankers may need for scoring decisions.
type Context struct {
	// Now is the reference instant for age-based scores
	Now time.Time

	// WilsonZ is the z-score used by the Wilson ranker; <= 0 means DefaultWilsonZ
	WilsonZ float64
}

// NewContext creates a context anchored at now.
func NewContext(now time.Time) *Context {
	return &Context{Now: now, WilsonZ: DefaultWilsonZ}
}

func (c *Context) z() float64 {
	if c == nil || c.WilsonZ <= 0 {
		return DefaultWilsonZ
	}
	return c.WilsonZ
}

// Result holds a scored post
type Result struct {
	Post  model.PostMetrics
	Score float64
}

// Rank scores all posts and returns them sorted by score (highest first).
// The input slice is not modified.
func Rank(posts []model.PostMetrics, ranker Ranker, ctx *Context) []Result {
	if ctx == nil {
		ctx = NewContext(time.Time{})
	}

	results := make([]Result, len(posts))
	for i := range posts {
		results[i] = Result{
			Post:  posts[i],
			Score: ranker.Score(&posts[i], ctx),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Sort returns the posts in ranked order.
func Sort(posts []model.PostMetrics, ranker Ranker, ctx *Context) []model.PostMetrics {
	results := Rank(posts, ranker, ctx)
	sorted := make([]model.PostMetrics, len(results))
	for i, r := range results {
		sorted[i] = r.Post
	}
	return sorted
}

// TopN returns the top n posts after ranking.
func TopN(posts []model.PostMetrics, n int, ranker Ranker, ctx *Context) []model.PostMetrics {
	sorted := Sort(posts, ranker, ctx)
	if n < 0 {
		n = 0
	}
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
