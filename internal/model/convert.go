package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Conversions at the host boundary. Hosts hand over loosely-typed JSON
// records (snake_case or camelCase keys, numbers or numeric strings); these
// functions normalize them into the strict types or drop them.

// record is a loosely-typed host object.
type record map[string]any

// DecodeVotes parses a JSON array of vote records. Records missing a user or
// statement ID, or carrying a non-numeric value, are dropped. Values are
// clamped to Disagree/Pass/Agree by sign.
func DecodeVotes(data []byte) ([]Vote, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode votes: %w", err)
	}
	return VotesFromRecords(raw), nil
}

// VotesFromRecords normalizes already-decoded vote records.
func VotesFromRecords(raw []map[string]any) []Vote {
	votes := make([]Vote, 0, len(raw))
	for _, r := range raw {
		rec := record(r)
		user := rec.str("user_id", "userId", "userID", "user")
		stmt := rec.str("statement_id", "statementId", "statementID", "statement")
		if user == "" || stmt == "" {
			continue
		}
		v, ok := rec.num("value", "vote")
		if !ok {
			continue
		}
		votes = append(votes, Vote{UserID: user, StatementID: stmt, Value: clampVote(v)})
	}
	return votes
}

// DecodePosts parses a JSON array of post-metrics records. Records without an
// ID are dropped; missing or negative counts become 0; unparsable timestamps
// become the epoch.
func DecodePosts(data []byte) ([]PostMetrics, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return PostsFromRecords(raw), nil
}

// PostsFromRecords normalizes already-decoded post records.
func PostsFromRecords(raw []map[string]any) []PostMetrics {
	posts := make([]PostMetrics, 0, len(raw))
	for _, r := range raw {
		rec := record(r)
		id := rec.str("id", "uri")
		if id == "" {
			continue
		}
		posts = append(posts, PostMetrics{
			ID:            id,
			CreatedAt:     rec.timestamp("created_at", "createdAt"),
			LikeCount:     rec.count("like_count", "likeCount"),
			DownvoteCount: rec.count("downvote_count", "downvoteCount"),
			ReplyCount:    rec.count("reply_count", "replyCount"),
			RepostCount:   rec.count("repost_count", "repostCount"),
		})
	}
	return posts
}

func clampVote(v float64) VoteValue {
	switch {
	case v > 0:
		return Agree
	case v < 0:
		return Disagree
	default:
		return Pass
	}
}

// lookup returns the first present key.
func (r record) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r record) str(keys ...string) string {
	v, ok := r.lookup(keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func (r record) num(keys ...string) (float64, bool) {
	v, ok := r.lookup(keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (r record) count(keys ...string) uint {
	n, ok := r.num(keys...)
	if !ok || n <= 0 || math.IsInf(n, 0) {
		return 0
	}
	return uint(n)
}

func (r record) timestamp(keys ...string) time.Time {
	v, ok := r.lookup(keys...)
	if !ok {
		return epoch
	}
	switch t := v.(type) {
	case string:
		return ParseTimestamp(t)
	case float64:
		// Millisecond epoch, as produced by JavaScript hosts
		return time.UnixMilli(int64(t)).UTC()
	default:
		return epoch
	}
}
