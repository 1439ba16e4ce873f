package ranking

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/abelbrown/skyrank/internal/model"
)

// ErrUnknownStrategy is returned by ByName for unrecognized names.
var ErrUnknownStrategy = errors.New("unknown ranking strategy")

// NewestRanker orders posts by creation instant, newest first.
type NewestRanker struct{}

func NewNewestRanker() *NewestRanker { return &NewestRanker{} }

func (r *NewestRanker) Name() string { return "newest" }

// Score is the creation instant in Unix microseconds. float64 holds that
// exactly within about 285 years of 1970; beyond that, posts less than a
// few microseconds apart may tie.
func (r *NewestRanker) Score(post *model.PostMetrics, ctx *Context) float64 {
	return float64(post.CreatedAt.UnixMicro())
}

// TrendingRanker scores engagement velocity: (likes + reposts) per hour of age.
type TrendingRanker struct {
	// MinAge floors the age so brand-new posts don't divide by ~0
	MinAge time.Duration
}

func NewTrendingRanker() *TrendingRanker {
	return &TrendingRanker{MinAge: time.Hour}
}

func (r *TrendingRanker) Name() string { return "trending" }

func (r *TrendingRanker) Score(post *model.PostMetrics, ctx *Context) float64 {
	return TrendingScore(*post, ctx.Now, r.MinAge)
}

// TrendingScore is (likes + reposts) / max(minAge, age) with age in hours.
func TrendingScore(post model.PostMetrics, now time.Time, minAge time.Duration) float64 {
	if minAge <= 0 {
		minAge = time.Hour
	}
	ageHours := math.Max(minAge.Hours(), now.Sub(post.CreatedAt).Hours())
	return (float64(post.LikeCount) + float64(post.RepostCount)) / ageHours
}

// WilsonRanker scores the lower bound of the Wilson confidence interval on
// the approval rate likes / (likes + downvotes).
type WilsonRanker struct {
	// Degraded selects the net-vote fallback (likes - downvotes) instead of
	// the confidence bound. Only for parity with hosts that still use it.
	Degraded bool
}

func NewWilsonRanker() *WilsonRanker { return &WilsonRanker{} }

func (r *WilsonRanker) Name() string {
	if r.Degraded {
		return "wilson_score(degraded:net_votes)"
	}
	return "wilson_score"
}

func (r *WilsonRanker) Score(post *model.PostMetrics, ctx *Context) float64 {
	if r.Degraded {
		return NetScore(*post)
	}
	return WilsonLowerBound(post.LikeCount, post.DownvoteCount, ctx.z())
}

// WilsonLowerBound returns the Wilson score interval lower bound for
// positive out of positive+negative observations. Zero observations score 0.
func WilsonLowerBound(positive, negative uint, z float64) float64 {
	n := float64(positive) + float64(negative)
	if n == 0 {
		return 0
	}
	phat := float64(positive) / n
	z2 := z * z
	num := phat + z2/(2*n) - z*math.Sqrt(phat*(1-phat)/n+z2/(4*n*n))
	return math.Max(0, num/(1+z2/n))
}

// ScoreRanker orders by net votes.
type ScoreRanker struct{}

func NewScoreRanker() *ScoreRanker { return &ScoreRanker{} }

func (r *ScoreRanker) Name() string { return "score" }

func (r *ScoreRanker) Score(post *model.PostMetrics, ctx *Context) float64 {
	return NetScore(*post)
}

// NetScore is likes minus downvotes.
func NetScore(post model.PostMetrics) float64 {
	return float64(post.LikeCount) - float64(post.DownvoteCount)
}

// ControversialRanker rewards many, evenly split votes.
type ControversialRanker struct{}

func NewControversialRanker() *ControversialRanker { return &ControversialRanker{} }

func (r *ControversialRanker) Name() string { return "controversial" }

func (r *ControversialRanker) Score(post *model.PostMetrics, ctx *Context) float64 {
	total := float64(post.LikeCount) + float64(post.DownvoteCount)
	return total * Balance(post.LikeCount, post.DownvoteCount)
}

// Balance is 1 when positive and negative are evenly split and 0 when
// unanimous. No votes at all balance to 0.
func Balance(positive, negative uint) float64 {
	total := float64(positive) + float64(negative)
	if total == 0 {
		return 0
	}
	return 1 - math.Abs(float64(positive)/total-0.5)*2
}

// ByName resolves a ranker by its name.
func ByName(name string) (Ranker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "newest", "new", "":
		return NewNewestRanker(), nil
	case "trending", "hot":
		return NewTrendingRanker(), nil
	case "wilson", "wilson_score", "wilsonscore", "best":
		return NewWilsonRanker(), nil
	case "wilson_degraded":
		return &WilsonRanker{Degraded: true}, nil
	case "score", "top":
		return NewScoreRanker(), nil
	case "controversial":
		return NewControversialRanker(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Names lists the canonical strategy names.
func Names() []string {
	return []string{"newest", "trending", "wilson_score", "score", "controversial"}
}
