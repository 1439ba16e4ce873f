package render

import (
	"fmt"
	"time"

	"github.com/abelbrown/skyrank/internal/model"
)

// TimeBand returns a display string for grouping items by age. Posts whose
// timestamp could not be parsed sit at the epoch and band as "Undated".
func TimeBand(published, now time.Time) string {
	age := now.Sub(published)
	switch {
	case published.Equal(model.Epoch()):
		return "Undated"
	case age < 15*time.Minute:
		return "Just Now"
	case age < time.Hour:
		return "Past Hour"
	case age < 24*time.Hour:
		return "Today"
	case age < 48*time.Hour:
		return "Yesterday"
	default:
		return "Older"
	}
}

// Ago formats the age of t compactly: 45s, 12m, 3h, 2d.
// Future times read as 0s; the epoch reads as "?".
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case t.Equal(model.Epoch()):
		return "?"
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
