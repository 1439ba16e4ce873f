package model

// VoteValue is a ternary opinion on a statement.
type VoteValue int

const (
	Disagree VoteValue = -1
	Pass     VoteValue = 0
	Agree    VoteValue = 1
)

// String returns the vote name.
func (v VoteValue) String() string {
	switch v {
	case Disagree:
		return "disagree"
	case Agree:
		return "agree"
	default:
		return "pass"
	}
}

// Clamp maps any value onto Disagree, Pass or Agree by sign.
func (v VoteValue) Clamp() VoteValue {
	switch {
	case v > 0:
		return Agree
	case v < 0:
		return Disagree
	default:
		return Pass
	}
}

// Vote is one user's opinion on one statement.
type Vote struct {
	UserID      string    `json:"user_id"`
	StatementID string    `json:"statement_id"`
	Value       VoteValue `json:"value"`
}

// StatementStats aggregates the votes cast on a single statement.
type StatementStats struct {
	StatementID    string  `json:"statement_id"`
	AgreeCount     int     `json:"agree_count"`
	DisagreeCount  int     `json:"disagree_count"`
	PassCount      int     `json:"pass_count"`
	TotalVoters    int     `json:"total_voters"`
	AgreementRatio float64 `json:"agreement_ratio"`
	Divisiveness   float64 `json:"divisiveness"`
}

// Cluster is an opinion group of voters with similar vote vectors.
type Cluster struct {
	ID           int      `json:"id"`
	MemberCount  int      `json:"member_count"`
	MemberIDs    []string `json:"member_ids"`
	AvgAgreement float64  `json:"avg_agreement"`
}

// ConsensusResult is the output of the consensus analyzer.
type ConsensusResult struct {
	Statements        []StatementStats `json:"statements"`
	TotalParticipants int              `json:"total_participants"`
	ClusterCount      int              `json:"cluster_count"`
	Clusters          []Cluster        `json:"clusters"`
}

// EmptyConsensus returns the result for an empty vote set.
func EmptyConsensus() ConsensusResult {
	return ConsensusResult{
		Statements: []StatementStats{},
		Clusters:   []Cluster{},
	}
}
