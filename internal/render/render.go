package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/t2c/internal/migrate"
	"github.com/Zuo-Peng/t2c/internal/store"
)

const (
	colorReset   = "\033[0m"
	colorNew     = "\033[1;32m" // bold green
	colorDone    = "\033[2;34m" // dim blue
	colorSkip    = "\033[2m"
	colorWarn    = "\033[1;33m"
	colorBoldRed = "\033[1;31m"
	colorHeader  = "\033[1m"
)

const dateLayout = "2006-01-02 15:04"

type Options struct {
	Width int  // wrap width (0 = no wrap)
	Color bool // emit ANSI colors
	Now   func() time.Time
}

func (o Options) paint(color, s string) string {
	if !o.Color || s == "" {
		return s
	}
	return color + s + colorReset
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// recordLabel is the fixed-width status column of a record line.
func recordLabel(c migrate.ClassifiedRecord) (string, string) {
	switch {
	case c.IsMigrated:
		return "DONE", colorDone
	case c.IsSelected:
		return "NEW ", colorNew
	case c.IsRetweet:
		return "RT  ", colorSkip
	case c.IsReply:
		return "RE  ", colorSkip
	default:
		return "OFF ", colorSkip
	}
}

// Records renders a classified group, one line per record in publish order.
func Records(ref migrate.GroupRef, records []migrate.ClassifiedRecord, opts Options) string {
	var b strings.Builder
	counts := migrate.CountClassified(records)

	header := fmt.Sprintf("--- %s: %s records, %s selected, %s migrated ---",
		ref.ID, humanize.Comma(int64(counts.Total)), humanize.Comma(int64(counts.Selected)),
		humanize.Comma(int64(counts.Migrated)))
	writeLines(&b, opts.paint(colorHeader, header), opts.Width)

	if len(records) == 0 {
		writeLines(&b, "(empty group)", opts.Width)
		return b.String()
	}

	for i, c := range records {
		label, color := recordLabel(c)
		prefix := fmt.Sprintf("%4d %s %s ", i+1, opts.paint(color, label), c.Record.CreatedAt.UTC().Format(dateLayout))

		suffix := ""
		if n := len(c.Record.Media); n > 0 {
			suffix = " " + opts.paint(colorSkip, fmt.Sprintf("[%d media]", n))
		}

		text := oneLine(c.Record.Text)
		if opts.Width > 0 {
			// 4+1+4+1+16+1 visible columns of prefix
			room := opts.Width - 27 - runewidth.StringWidth(stripANSI(suffix))
			if room < 8 {
				room = 8
			}
			text = runewidth.Truncate(text, room, "…")
		}
		writeLines(&b, prefix+text+suffix, 0)
	}
	return b.String()
}

// Status renders overall progress across the manifest's groups.
func Status(groups []migrate.GroupRef, progress migrate.Progress, receipts []store.Receipt, opts Options) string {
	var b strings.Builder

	done := 0
	for _, g := range groups {
		if progress.FinishedGroups.Has(g.ID) {
			done++
		}
	}
	writeLines(&b, opts.paint(colorHeader, fmt.Sprintf("%d/%d groups migrated", done, len(groups))), opts.Width)

	for _, g := range groups {
		var mark string
		switch {
		case progress.FinishedGroups.Has(g.ID):
			mark = opts.paint(colorDone, "done      ")
		case progress.ProcessingGroup == g.ID:
			mark = opts.paint(colorWarn, "processing")
		default:
			mark = opts.paint(colorSkip, "pending   ")
		}
		line := fmt.Sprintf("  %s  %-24s %8s records", mark, g.ID, humanize.Comma(int64(g.ExpectedCount)))
		if progress.ProcessingGroup == g.ID {
			line += fmt.Sprintf(" (%s checkpointed)", humanize.Comma(int64(progress.FinishedRecordIDs.Len())))
		}
		writeLines(&b, line, opts.Width)
	}

	if len(receipts) > 0 {
		writeLines(&b, "", 0)
		writeLines(&b, opts.paint(colorHeader, "recent notes"), 0)
		now := opts.now()
		for _, r := range receipts {
			line := fmt.Sprintf("  %s  %-20s %s", humanize.RelTime(r.PublishedAt, now, "ago", "from now"), r.RecordID, r.URI)
			writeLines(&b, line, opts.Width)
		}
	}
	return b.String()
}

// Report renders the outcome of a single group run.
func Report(r *migrate.Report, opts Options) string {
	var b strings.Builder

	var phase string
	switch r.Phase {
	case migrate.PhaseGroupComplete:
		phase = opts.paint(colorNew, "complete")
	case migrate.PhaseAborted:
		phase = opts.paint(colorBoldRed, "aborted")
	default:
		phase = string(r.Phase)
	}

	line := fmt.Sprintf("%s %s: %d published, %d filtered, %d duplicates",
		r.Group.ID, phase,
		r.Count(migrate.OutcomePublished),
		r.Count(migrate.OutcomeSkippedFiltered),
		r.Count(migrate.OutcomeSkippedDuplicate))
	if r.Resumed {
		line += " (resumed)"
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		line += fmt.Sprintf(" in %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	writeLines(&b, line, opts.Width)

	if r.Err != nil {
		msg := r.Err.Error()
		if r.FailedIndex >= 0 {
			msg = fmt.Sprintf("record #%d of %d: %s", r.FailedIndex+1, r.Total, msg)
		}
		writeLines(&b, indentLines(opts.paint(colorBoldRed, msg), "  "), opts.Width)
	}
	return b.String()
}

func writeLines(b *strings.Builder, text string, width int) {
	for _, l := range strings.Split(text, "\n") {
		for _, wl := range wrapLine(l, width) {
			b.WriteString(wl)
			b.WriteString("\n")
		}
	}
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if j := ansiEnd(s, i); j > i {
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ansiEnd returns the index after an ESC[...m sequence starting at i, or i.
func ansiEnd(s string, i int) int {
	if i+1 >= len(s) || s[i] != '\033' || s[i+1] != '[' {
		return i
	}
	j := i + 2
	for j < len(s) && s[j] != 'm' {
		j++
	}
	if j < len(s) {
		j++
	}
	return j
}

// wrapLine breaks a line into pieces of at most maxWidth visible columns,
// skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	for i := 0; i < len(line); {
		if j := ansiEnd(line, i); j > i {
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)
		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}
		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	if len(result) == 0 {
		return []string{""}
	}
	return result
}
