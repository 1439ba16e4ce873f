package mixer

import (
	"math"

	"github.com/abelbrown/skyrank/internal/model"
)

// Allocate returns how many items each entry may contribute to a page of
// limit items: round(limit * percent / total). Rounding is half away from
// zero. The remainder is not redistributed, so quotas may sum to slightly
// more or less than limit; Mix truncates the final page to limit.
//
// Returns nil when there is nothing to mix.
func Allocate(entries []model.FeedMixEntry, limit int) []int {
	total := model.TotalPercent(entries)
	if len(entries) == 0 || total <= 0 || limit <= 0 {
		return nil
	}

	quotas := make([]int, len(entries))
	for i, e := range entries {
		take := math.Round(float64(limit) * e.Percent / total)
		switch {
		case take >= math.MaxInt:
			quotas[i] = math.MaxInt
		case take > 0:
			quotas[i] = int(take)
		}
	}
	return quotas
}
