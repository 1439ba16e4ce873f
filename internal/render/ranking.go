package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/skyrank/internal/model"
	"github.com/abelbrown/skyrank/internal/ranking"
)

// Ranking renders ranked posts with the score r assigns each of them.
// Posts are shown in the order given.
func Ranking(posts []model.PostMetrics, r ranking.Ranker, ctx *ranking.Context, width int) string {
	if len(posts) == 0 {
		return Empty.Render("No posts to rank.")
	}

	var b strings.Builder
	b.WriteString(Title.Render("Ranked by " + r.Name()))
	b.WriteString("\n")

	for i, p := range posts {
		score := scoreStyle.Render(fmt.Sprintf("%10.4f", r.Score(&p, ctx)))
		counts := mutedStyle.Render(fmt.Sprintf("▲%d ▼%d ↻%d 💬%d",
			p.LikeCount, p.DownvoteCount, p.RepostCount, p.ReplyCount))

		prefix := fmt.Sprintf("%3d. %s  ", i+1, score)
		id := p.ID
		if width > 0 {
			id = truncate(id, width-lipglossWidth(prefix)-lipglossWidth(counts)-2)
		}
		b.WriteString(prefix + textStyle.Render(id) + "  " + counts)
		b.WriteString("\n")
	}
	return b.String()
}

func lipglossWidth(s string) int {
	return lipgloss.Width(s)
}
