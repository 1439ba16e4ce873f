package backend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/abelbrown/skyrank/internal/model"
)

// wirePost is the JSON shape exchanged with the accelerated module.
type wirePost struct {
	URI           string `json:"uri"`
	CreatedAt     string `json:"created_at"`
	LikeCount     uint   `json:"like_count"`
	DownvoteCount uint   `json:"downvote_count"`
	ReplyCount    uint   `json:"reply_count"`
	RepostCount   uint   `json:"repost_count"`
}

func encodePosts(posts []model.PostMetrics) ([]byte, error) {
	wire := make([]wirePost, len(posts))
	for i, p := range posts {
		wire[i] = wirePost{
			URI:           p.ID,
			CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339Nano),
			LikeCount:     p.LikeCount,
			DownvoteCount: p.DownvoteCount,
			ReplyCount:    p.ReplyCount,
			RepostCount:   p.RepostCount,
		}
	}
	return json.Marshal(wire)
}

// decodeOrder maps the module's sorted output back onto the input posts.
// The output must be a permutation of the input, matched by URI.
func decodeOrder(data []byte, posts []model.PostMetrics) ([]model.PostMetrics, error) {
	var wire []wirePost
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode sorted posts: %w", err)
	}
	if len(wire) != len(posts) {
		return nil, fmt.Errorf("sorted %d posts, expected %d", len(wire), len(posts))
	}

	// Queue per ID so duplicate IDs keep their relative order
	byID := make(map[string][]int, len(posts))
	for i, p := range posts {
		byID[p.ID] = append(byID[p.ID], i)
	}

	out := make([]model.PostMetrics, len(wire))
	for i, w := range wire {
		q := byID[w.URI]
		if len(q) == 0 {
			return nil, fmt.Errorf("unexpected post %q in sorted output", w.URI)
		}
		out[i] = posts[q[0]]
		byID[w.URI] = q[1:]
	}
	return out, nil
}

func encodeVotes(votes []model.Vote) ([]byte, error) {
	return json.Marshal(votes)
}

func decodeConsensus(data []byte) (model.ConsensusResult, error) {
	var res model.ConsensusResult
	if err := json.Unmarshal(data, &res); err != nil {
		return model.ConsensusResult{}, fmt.Errorf("decode consensus: %w", err)
	}
	if res.Statements == nil {
		res.Statements = []model.StatementStats{}
	}
	if res.Clusters == nil {
		res.Clusters = []model.Cluster{}
	}
	for i := range res.Clusters {
		if res.Clusters[i].MemberIDs == nil {
			res.Clusters[i].MemberIDs = []string{}
		}
	}
	return res, nil
}
