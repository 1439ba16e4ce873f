package ranking

import (
	"time"

	"github.com/abelbrown/skyrank/internal/model"
)

// Entry points used by hosts. Each returns a new slice holding a permutation
// of the input; no post is added, dropped or modified.

// Newest orders posts by creation time, newest first.
func Newest(posts []model.PostMetrics) []model.PostMetrics {
	return Sort(posts, NewNewestRanker(), nil)
}

// Trending orders posts by engagement per hour of age relative to now.
func Trending(posts []model.PostMetrics, now time.Time) []model.PostMetrics {
	return Sort(posts, NewTrendingRanker(), NewContext(now))
}

// WilsonScore orders posts by the 95% Wilson lower bound of their approval rate.
func WilsonScore(posts []model.PostMetrics) []model.PostMetrics {
	return Sort(posts, NewWilsonRanker(), nil)
}

// Score orders posts by net votes.
func Score(posts []model.PostMetrics) []model.PostMetrics {
	return Sort(posts, NewScoreRanker(), nil)
}

// Controversial orders posts by vote volume weighted by how evenly split it is.
func Controversial(posts []model.PostMetrics) []model.PostMetrics {
	return Sort(posts, NewControversialRanker(), nil)
}
