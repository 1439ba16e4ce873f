package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/skyrank/internal/model"
)

const barWidth = 20

// Consensus renders per-statement agreement bars and the opinion groups.
func Consensus(res model.ConsensusResult, width int) string {
	if len(res.Statements) == 0 {
		return Empty.Render("No votes yet.")
	}

	var b strings.Builder
	b.WriteString(Title.Render(fmt.Sprintf("%d participants, %d statements", res.TotalParticipants, len(res.Statements))))
	b.WriteString("\n")

	idWidth := 0
	for _, s := range res.Statements {
		idWidth = max(idWidth, lipgloss.Width(s.StatementID))
	}
	if width > 0 {
		idWidth = min(idWidth, max(8, width-barWidth-40))
	}

	for _, s := range res.Statements {
		id := lipgloss.NewStyle().Width(idWidth).Render(truncate(s.StatementID, idWidth))
		stats := fmt.Sprintf("%s %s %s  divisive %.2f",
			agreeStyle.Render(fmt.Sprintf("+%d", s.AgreeCount)),
			rejectStyle.Render(fmt.Sprintf("-%d", s.DisagreeCount)),
			mutedStyle.Render(fmt.Sprintf("=%d", s.PassCount)),
			s.Divisiveness)
		fmt.Fprintf(&b, " %s %s %s\n", id, Bar(s), stats)
	}

	b.WriteString(Title.Render(fmt.Sprintf("%d opinion groups", res.ClusterCount)))
	b.WriteString("\n")
	for _, c := range res.Clusters {
		members := strings.Join(c.MemberIDs, ", ")
		line := fmt.Sprintf(" #%d  %d members  agrees %3.0f%%  ", c.ID, c.MemberCount, c.AvgAgreement*100)
		if width > 0 {
			members = truncate(members, width-lipgloss.Width(line))
		}
		b.WriteString(line + secondary.Render(members) + "\n")
	}
	return b.String()
}

// Bar draws a statement's agree / disagree / pass split.
func Bar(s model.StatementStats) string {
	if s.TotalVoters == 0 {
		return mutedStyle.Render(strings.Repeat("·", barWidth))
	}
	agree := s.AgreeCount * barWidth / s.TotalVoters
	disagree := s.DisagreeCount * barWidth / s.TotalVoters
	pass := barWidth - agree - disagree
	return agreeStyle.Render(strings.Repeat("█", agree)) +
		rejectStyle.Render(strings.Repeat("█", disagree)) +
		mutedStyle.Render(strings.Repeat("░", pass))
}
