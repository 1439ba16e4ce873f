// Package consensus aggregates statement votes and groups voters into
// opinion clusters.
package consensus

import (
	"math"

	"github.com/abelbrown/skyrank/internal/logging"
	"github.com/abelbrown/skyrank/internal/model"
)

// Options tunes voter clustering.
type Options struct {
	// MaxClusters caps the number of opinion groups considered
	MaxClusters int `koanf:"max_clusters"`

	// MinSilhouette is the mean silhouette a split must reach; below it all
	// voters form a single group
	MinSilhouette float64 `koanf:"min_silhouette"`

	// MaxIterations bounds each k-means run
	MaxIterations int `koanf:"max_iterations"`
}

// DefaultOptions returns the standard clustering settings.
func DefaultOptions() Options {
	return Options{
		MaxClusters:   5,
		MinSilhouette: 0.25,
		MaxIterations: 50,
	}
}

// Analyzer computes consensus results. It is stateless and safe for
// concurrent use.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer. Non-positive MaxClusters or MaxIterations fall
// back to their defaults.
func New(opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.MaxClusters <= 0 {
		opts.MaxClusters = def.MaxClusters
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	return &Analyzer{opts: opts}
}

// Options returns the effective options.
func (a *Analyzer) Options() Options { return a.opts }

// Analyze runs the default analyzer over votes.
func Analyze(votes []model.Vote) model.ConsensusResult {
	return New(DefaultOptions()).Analyze(votes)
}

// voter is one participant's final position.
type voter struct {
	id    string
	votes map[int]model.VoteValue // statement index -> value
}

// agreement is the share of the voter's cast votes that agree.
func (v *voter) agreement() float64 {
	if len(v.votes) == 0 {
		return 0
	}
	agree := 0
	for _, val := range v.votes {
		if val == model.Agree {
			agree++
		}
	}
	return float64(agree) / float64(len(v.votes))
}

// Analyze tallies every vote per statement and clusters the voters.
//
// Statements and cluster members are reported in order of first appearance.
// Values outside -1..1 are clamped by sign before tallying and clustering.
// Tallies count every vote received; for clustering, a repeated
// (user, statement) pair keeps its last value.
func (a *Analyzer) Analyze(votes []model.Vote) model.ConsensusResult {
	if len(votes) == 0 {
		return model.EmptyConsensus()
	}

	stmtIndex := make(map[string]int)
	voterIndex := make(map[string]int)
	var stats []model.StatementStats
	var voters []*voter

	for _, v := range votes {
		si, ok := stmtIndex[v.StatementID]
		if !ok {
			si = len(stats)
			stmtIndex[v.StatementID] = si
			stats = append(stats, model.StatementStats{StatementID: v.StatementID})
		}
		val := v.Value.Clamp()
		switch val {
		case model.Agree:
			stats[si].AgreeCount++
		case model.Disagree:
			stats[si].DisagreeCount++
		default:
			stats[si].PassCount++
		}

		ui, ok := voterIndex[v.UserID]
		if !ok {
			ui = len(voters)
			voterIndex[v.UserID] = ui
			voters = append(voters, &voter{id: v.UserID, votes: make(map[int]model.VoteValue)})
		}
		voters[ui].votes[si] = val
	}

	for i := range stats {
		s := &stats[i]
		s.TotalVoters = s.AgreeCount + s.DisagreeCount + s.PassCount
		if s.TotalVoters > 0 {
			s.AgreementRatio = float64(s.AgreeCount) / float64(s.TotalVoters)
		}
		s.Divisiveness = Divisiveness(s.AgreeCount, s.DisagreeCount)
	}

	points := make([][]float64, len(voters))
	for i, vt := range voters {
		p := make([]float64, len(stats))
		for si, val := range vt.votes {
			p[si] = float64(val)
		}
		points[i] = p
	}

	assign, silhouette := partition(points, a.opts)
	clusters := buildClusters(voters, assign)

	logging.Debug("Consensus analyzed",
		"votes", len(votes),
		"statements", len(stats),
		"participants", len(voters),
		"clusters", len(clusters),
		"silhouette", silhouette)

	return model.ConsensusResult{
		Statements:        stats,
		TotalParticipants: len(voters),
		ClusterCount:      len(clusters),
		Clusters:          clusters,
	}
}

// Divisiveness is 1 for an even agree/disagree split and 0 when one side is
// unanimous. Passes are ignored; no agree or disagree votes score 0.
func Divisiveness(agree, disagree int) float64 {
	total := agree + disagree
	if total == 0 {
		return 0
	}
	return 1 - math.Abs(float64(agree)/float64(total)-0.5)*2
}
