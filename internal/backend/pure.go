package backend

import (
	"time"

	"github.com/abelbrown/skyrank/internal/consensus"
	"github.com/abelbrown/skyrank/internal/model"
	"github.com/abelbrown/skyrank/internal/ranking"
)

// Pure is the Go implementation of every entry point.
type Pure struct {
	analyzer *consensus.Analyzer
}

// NewPure creates a Pure backend with the given clustering options.
func NewPure(opts consensus.Options) *Pure {
	return &Pure{analyzer: consensus.New(opts)}
}

func (p *Pure) Name() string { return "pure" }

func (p *Pure) Newest(posts []model.PostMetrics) []model.PostMetrics {
	return ranking.Newest(posts)
}

func (p *Pure) Trending(posts []model.PostMetrics, now time.Time) []model.PostMetrics {
	return ranking.Trending(posts, now)
}

func (p *Pure) WilsonScore(posts []model.PostMetrics) []model.PostMetrics {
	return ranking.WilsonScore(posts)
}

func (p *Pure) Score(posts []model.PostMetrics) []model.PostMetrics {
	return ranking.Score(posts)
}

func (p *Pure) Controversial(posts []model.PostMetrics) []model.PostMetrics {
	return ranking.Controversial(posts)
}

func (p *Pure) Analyze(votes []model.Vote) model.ConsensusResult {
	return p.analyzer.Analyze(votes)
}

// Sort dispatches to a ranking entry point by strategy name.
func Sort(b Backend, strategy string, posts []model.PostMetrics, now time.Time) ([]model.PostMetrics, error) {
	r, err := ranking.ByName(strategy)
	if err != nil {
		return nil, err
	}
	switch r.(type) {
	case *ranking.TrendingRanker:
		return b.Trending(posts, now), nil
	case *ranking.WilsonRanker:
		if r.Name() != ranking.NewWilsonRanker().Name() {
			// Net-vote fallback has no backend export
			return ranking.Sort(posts, r, ranking.NewContext(now)), nil
		}
		return b.WilsonScore(posts), nil
	case *ranking.ScoreRanker:
		return b.Score(posts), nil
	case *ranking.ControversialRanker:
		return b.Controversial(posts), nil
	default:
		return b.Newest(posts), nil
	}
}
