package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abelbrown/skyrank/internal/model"
)

// Feed renders a mixed page grouped into time bands. Each line shows the
// source badge, author, age and the first line of the post text.
func Feed(items []model.TimelineItem, now time.Time, width int) string {
	if len(items) == 0 {
		return Empty.Render("No posts in this mix.")
	}

	var b strings.Builder
	band := ""
	for _, it := range items {
		created := it.Post.CreatedAt()
		if tb := TimeBand(created, now); tb != band {
			band = tb
			b.WriteString(TimeBandHeader.Render(band))
			b.WriteString("\n")
		}
		b.WriteString(feedLine(it, created, now, width))
		b.WriteString("\n")
	}
	return b.String()
}

func feedLine(it model.TimelineItem, created, now time.Time, width int) string {
	label := "?"
	if it.FeedSource != nil && it.FeedSource.Label != "" {
		label = it.FeedSource.Label
	}

	author := it.Post.Author.Handle
	if author == "" {
		author = it.Post.Author.DID
	}
	if it.Reason != nil && it.Reason.By != nil {
		author = fmt.Sprintf("%s (reposted by %s)", author, it.Reason.By.Handle)
	}

	prefix := SourceBadge.Render(label) +
		secondary.Render(author) + " " +
		mutedStyle.Render(Ago(created, now)) + " "

	text := firstLine(it.Post.Record.Text)
	if width > 0 {
		text = truncate(text, width-lipglossWidth(prefix))
	}
	return prefix + textStyle.Render(text)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// truncate shortens s to at most maxLen runes, ending with "…" when cut.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen == 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
