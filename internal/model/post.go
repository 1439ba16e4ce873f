// Package model holds the value types shared by the mixer, the ranking
// strategies and the consensus analyzer, plus the boundary conversions that
// turn loosely-typed host records into them.
package model

import (
	"time"
)

// epoch is the fallback instant for missing or unparsable timestamps.
var epoch = time.Unix(0, 0).UTC()

// Epoch returns the instant used for unparsable timestamps (oldest possible).
func Epoch() time.Time { return epoch }

// ParseTimestamp parses an ISO-8601 timestamp. Unparsable input yields the
// Unix epoch so ordering degrades instead of failing.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return epoch
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return epoch
}

// Author is the posting account.
type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// Record is the subset of the post record the engine reads.
type Record struct {
	Text      string `json:"text,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// PostView is a post as returned by a feed.
type PostView struct {
	URI         string `json:"uri"`
	CID         string `json:"cid,omitempty"`
	Author      Author `json:"author"`
	Record      Record `json:"record"`
	LikeCount   uint   `json:"likeCount,omitempty"`
	RepostCount uint   `json:"repostCount,omitempty"`
	ReplyCount  uint   `json:"replyCount,omitempty"`
	IndexedAt   string `json:"indexedAt,omitempty"`
}

// CreatedAt returns the post's own creation time, or the epoch.
func (p PostView) CreatedAt() time.Time {
	return ParseTimestamp(p.Record.CreatedAt)
}

// Reason annotates why an item is in a feed (e.g. a repost).
type Reason struct {
	Type string  `json:"$type"`
	By   *Author `json:"by,omitempty"`
}

// TimelineItem is a post plus provenance.
type TimelineItem struct {
	Post       PostView    `json:"post"`
	Reason     *Reason     `json:"reason,omitempty"`
	FeedSource *FeedSource `json:"feedSource,omitempty"` // set by the mixer
}

// PostMetrics is the uniform ranking input. Never mutated by the engine.
type PostMetrics struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LikeCount     uint      `json:"like_count"`
	DownvoteCount uint      `json:"downvote_count"`
	ReplyCount    uint      `json:"reply_count"`
	RepostCount   uint      `json:"repost_count"`
}

// MetricsFromTimeline converts feed items to ranking input. downvotes maps
// post URIs to downvote counts kept by the host; it may be nil.
func MetricsFromTimeline(items []TimelineItem, downvotes map[string]uint) []PostMetrics {
	result := make([]PostMetrics, len(items))
	for i, item := range items {
		result[i] = PostMetrics{
			ID:            item.Post.URI,
			CreatedAt:     item.Post.CreatedAt(),
			LikeCount:     item.Post.LikeCount,
			DownvoteCount: downvotes[item.Post.URI],
			ReplyCount:    item.Post.ReplyCount,
			RepostCount:   item.Post.RepostCount,
		}
	}
	return result
}
