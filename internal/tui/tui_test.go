package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out
}

func sampleRecord(id string) migrate.ClassifiedRecord {
	return migrate.ClassifiedRecord{
		Record:     migrate.Record{ID: id, Text: "post " + id, CreatedAt: time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)},
		IsSelected: true,
	}
}

func TestModelFollowsEvents(t *testing.T) {
	m := newModel("t2c", nil)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	group := migrate.GroupRef{ID: "data/tweets.js"}
	recs := []migrate.ClassifiedRecord{sampleRecord("1"), sampleRecord("2")}

	m = update(t, m, eventMsg{migrate.Event{Kind: migrate.EventGroupStarted, Group: group, Records: recs, Total: 2}})
	assert.Equal(t, 2, m.counts.Selected)

	m = update(t, m, eventMsg{migrate.Event{Kind: migrate.EventRecordStarted, Group: group, Index: 0, Total: 2, Record: recs[0]}})
	require.NotNil(t, m.current)
	assert.Contains(t, m.View(), "post 1")

	m = update(t, m, eventMsg{migrate.Event{Kind: migrate.EventRecordDone, Group: group, Index: 0, Total: 2, Record: recs[0], Outcome: migrate.OutcomePublished}})
	assert.Nil(t, m.current)
	require.Len(t, m.log, 1)
	assert.Equal(t, migrate.OutcomePublished, m.log[0].outcome)

	pubErr := &migrate.PublishError{GroupID: group.ID, RecordID: "2", Index: 1, Err: errors.New("status 502")}
	m = update(t, m, eventMsg{migrate.Event{Kind: migrate.EventRecordDone, Group: group, Index: 1, Total: 2, Record: recs[1], Outcome: migrate.OutcomeFailed, Err: pubErr}})
	m = update(t, m, workDoneMsg{err: pubErr})

	assert.True(t, m.done)
	assert.Equal(t, pubErr, m.err)
	view := m.View()
	assert.Contains(t, view, "record 2 (#2) failed")
	assert.Contains(t, view, "y copy error")
}

func TestQuitStopsBeforeExiting(t *testing.T) {
	stopped := 0
	m := newModel("t2c", func() { stopped++ })
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	esc := tea.KeyMsg{Type: tea.KeyEsc}
	next, cmd := m.Update(esc)
	m = next.(model)
	assert.Nil(t, cmd, "first esc only requests a stop")
	assert.True(t, m.stopping)

	m = update(t, m, esc)
	assert.Equal(t, 1, stopped)

	m = update(t, m, workDoneMsg{err: context.Canceled})
	assert.NoError(t, m.err, "cancellation is not shown as a failure")
	assert.True(t, strings.HasPrefix(m.notice, "stopped"))

	_, cmd = m.Update(esc)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestFormatRecordLineFitsWidth(t *testing.T) {
	rec := migrate.Record{ID: "9", Text: strings.Repeat("word ", 50), CreatedAt: time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)}

	line := formatRecordLine(" ", 8, 120, rec, 50)
	assert.Contains(t, line, "2021-01-02")
	assert.Contains(t, line, "…")
}
