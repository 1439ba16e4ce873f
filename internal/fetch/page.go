package fetch

import (
	"fmt"
	"strconv"

	"github.com/abelbrown/skyrank/internal/model"
)

// parseCursor reads an offset cursor. An empty cursor is offset 0.
func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return n, nil
}

// paginate slices items[offset:offset+limit]. The next cursor is empty once
// the items are exhausted.
func paginate(items []model.TimelineItem, limit, offset int) model.Page {
	if offset >= len(items) || limit <= 0 {
		return model.Page{Items: []model.TimelineItem{}}
	}
	end := min(offset+limit, len(items))

	page := model.Page{Items: make([]model.TimelineItem, end-offset)}
	copy(page.Items, items[offset:end])
	if end < len(items) {
		page.Cursor = strconv.Itoa(end)
	}
	return page
}
