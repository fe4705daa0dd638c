package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Zuo-Peng/t2c/internal/migrate"
	"github.com/Zuo-Peng/t2c/internal/render"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	if !isTerminal() {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func renderOptions() render.Options {
	return render.Options{Width: terminalWidth(), Color: !color.NoColor}
}

// plainObserver prints one line per finished record.
type plainObserver struct {
	w io.Writer
}

func (p plainObserver) Observe(e migrate.Event) {
	switch e.Kind {
	case migrate.EventGroupStarted:
		counts := migrate.CountClassified(e.Records)
		fmt.Fprintf(p.w, "%s %s: %d records, %d selected, %d already migrated\n",
			bold("==>"), e.Group.ID, counts.Total, counts.Selected, counts.Migrated)

	case migrate.EventRecordDone:
		var mark string
		switch e.Outcome {
		case migrate.OutcomePublished:
			mark = green("published")
		case migrate.OutcomeSkippedDuplicate:
			mark = yellow("duplicate")
		case migrate.OutcomeSkippedFiltered:
			// filtered records are only noise in a log
			return
		case migrate.OutcomeFailed:
			mark = red("failed   ")
		}
		line := fmt.Sprintf("  [%d/%d] %s %s", e.Index+1, e.Total, mark, e.Record.Record.ID)
		if e.Receipt.URI != "" {
			line += " " + faint(e.Receipt.URI)
		}
		fmt.Fprintln(p.w, line)

	case migrate.EventGroupDone:
		if e.Report != nil {
			fmt.Fprint(p.w, render.Report(e.Report, render.Options{Color: !color.NoColor}))
		}
	}
}

// explain turns a command error into something a user can act on.
func explain(err error) string {
	var cfgErr *migrate.ConfigError
	var loadErr *migrate.LoadError
	var pubErr *migrate.PublishError
	switch {
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("%s %s\n  set it in the config file or with `t2c settings`", red("config:"), cfgErr.Error())
	case errors.As(err, &loadErr):
		return fmt.Sprintf("%s %s\n  check archive_root or T2C_ARCHIVE", red("archive:"), loadErr.Error())
	case errors.As(err, &pubErr):
		return fmt.Sprintf("%s record %s failed: %s\n  run `t2c migrate` again to resume from this record",
			red("publish:"), pubErr.RecordID, pubErr.Reason())
	case errors.Is(err, migrate.ErrGroupFinished):
		return fmt.Sprintf("%s %s (use `t2c reset --group` to migrate it again)", yellow("note:"), err)
	default:
		return red("error: ") + err.Error()
	}
}

// idList splits repeated or comma separated id flags.
func idList(values []string) migrate.IDSet {
	set := migrate.IDSet{}
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				set.Add(id)
			}
		}
	}
	return set
}
