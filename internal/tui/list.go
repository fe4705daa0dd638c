package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

// outcomeMarker is the one-cell icon in front of a finished record.
func outcomeMarker(o migrate.Outcome) string {
	switch o {
	case migrate.OutcomePublished:
		return stylePublished.Render("✓")
	case migrate.OutcomeSkippedDuplicate:
		return styleDuplicate.Render("=")
	case migrate.OutcomeSkippedFiltered:
		return styleSkipped.Render("·")
	case migrate.OutcomeFailed:
		return styleFailed.Render("✗")
	default:
		return " "
	}
}

// formatRecordLine formats one record as
//
//	[icon] #idx date text
//
// truncated to width visible columns.
func formatRecordLine(marker string, idx, total int, rec migrate.Record, width int) string {
	num := fmt.Sprintf("%*d/%d", len(fmt.Sprint(total)), idx+1, total)
	date := rec.CreatedAt.UTC().Format("2006-01-02")

	text := strings.Join(strings.Fields(rec.Text), " ")
	textMax := width - 2 - runewidth.StringWidth(num) - 1 - len(date) - 1
	if textMax < 0 {
		textMax = 0
	}
	if runewidth.StringWidth(text) > textMax {
		text = runewidth.Truncate(text, textMax, "…")
	}
	return fmt.Sprintf("%s %s %s %s", marker, styleSkipped.Render(num), date, text)
}

func (m model) renderLog() string {
	lines := make([]string, 0, len(m.log))
	for _, l := range m.log {
		lines = append(lines, formatRecordLine(outcomeMarker(l.outcome), l.index, l.total, l.record, m.logWidth()))
	}
	return strings.Join(lines, "\n")
}
