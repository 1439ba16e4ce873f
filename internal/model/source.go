package model

// FeedKind distinguishes the home timeline from custom feed generators.
type FeedKind string

const (
	FeedTimeline FeedKind = "timeline"
	FeedCustom   FeedKind = "custom"
)

// TimelineKey is the cursor-map key used for the timeline source.
const TimelineKey = "timeline"

// FeedSource identifies one content stream.
type FeedSource struct {
	Kind  FeedKind `json:"kind"`
	Label string   `json:"label"`
	URI   string   `json:"uri,omitempty"` // custom feeds only
}

// Timeline returns the home timeline source.
func Timeline(label string) FeedSource {
	return FeedSource{Kind: FeedTimeline, Label: label}
}

// Custom returns a custom feed source addressed by uri.
func Custom(label, uri string) FeedSource {
	return FeedSource{Kind: FeedCustom, Label: label, URI: uri}
}

// Key returns the cursor-map key for the source. Custom sources sharing a
// URI share a key. An empty key means the source cannot be fetched.
func (s FeedSource) Key() string {
	if s.Kind == FeedTimeline {
		return TimelineKey
	}
	return s.URI
}

// FeedMixEntry is a configured source plus its share of the combined feed.
// Percents are normalized by their own sum, so they need not add up to 100.
type FeedMixEntry struct {
	Source  FeedSource `json:"source"`
	Percent float64    `json:"percent"`
}

// TotalPercent sums the percents of all entries.
func TotalPercent(entries []FeedMixEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Percent
	}
	return total
}

// Cursors maps source keys to opaque pagination cursors.
type Cursors map[string]string

// Page is one fetched page of a source.
// An empty Cursor means the source has no further pages.
type Page struct {
	Items  []TimelineItem
	Cursor string
}
