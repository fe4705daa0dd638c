package migrate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/t2c/internal/store"
)

type fakePublisher struct {
	mu        sync.Mutex
	calls     []string
	targets   []string
	failOn    map[string]error
	onPublish func(id string)
}

func (f *fakePublisher) Publish(ctx context.Context, target string, rec Record) (Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rec.ID)
	f.targets = append(f.targets, target)
	hook := f.onPublish
	err := f.failOn[rec.ID]
	f.mu.Unlock()

	if hook != nil {
		hook(rec.ID)
	}
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{NoteID: "note-" + rec.ID, TxHash: "0x" + rec.ID}, nil
}

func (f *fakePublisher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// checkedPublisher rejects targets before any publish.
type checkedPublisher struct {
	*fakePublisher
	reject  error
	checked []string
}

func (c *checkedPublisher) CheckTarget(ctx context.Context, target string) error {
	c.checked = append(c.checked, target)
	return c.reject
}

type fakeIndex struct {
	existing map[string]bool
	err      error
	checked  []string
}

func (f *fakeIndex) Exists(ctx context.Context, target, recordID string) (bool, error) {
	f.checked = append(f.checked, recordID)
	if f.err != nil {
		return false, f.err
	}
	return f.existing[recordID], nil
}

type harness struct {
	db        *store.DB
	state     *State
	publisher *fakePublisher
	index     *fakeIndex
	events    []Event
	orch      *Orchestrator
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "t2c.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:        db,
		state:     NewState(db),
		publisher: &fakePublisher{failOn: map[string]error{}},
		index:     &fakeIndex{existing: map[string]bool{}},
	}
	require.NoError(t, h.state.SetSettings(context.Background(), settings))

	h.orch = NewOrchestrator(OrchestratorDeps{
		State:     h.state,
		Publisher: h.publisher,
		Guard:     NewDuplicateGuard(h.index, nil),
		Journal:   db,
		Observer:  ObserverFunc(func(e Event) { h.events = append(h.events, e) }),
	})
	return h
}

// persisted reads Progress straight from the database, bypassing the
// in-memory copy held by State.
func (h *harness) persisted(t *testing.T) Progress {
	t.Helper()
	p, found, err := store.Load(context.Background(), h.db, ProgressKey, DefaultProgress())
	require.NoError(t, err)
	require.True(t, found, "progress document must exist")
	return p
}

var defaultTestSettings = Settings{PreventDuplicates: true, TargetIdentity: "42"}

func fiveRecords() []Record {
	return []Record{record("r0", 0), record("r1", 1), record("r2", 2), record("r3", 3), record("r4", 4)}
}

func TestRunScenarioPublishesOnlySelected(t *testing.T) {
	h := newHarness(t, Settings{IncludeReplies: false, IncludeRetweets: false, PreventDuplicates: true, TargetIdentity: "42"})
	ref := GroupRef{ID: "data/tweets.js"}
	records := []Record{reply("A", 0, "X"), record("B", 1), retweet("C", 2)}

	report, err := h.orch.Run(context.Background(), ref, records, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, h.publisher.Calls())
	assert.Equal(t, []string{"B"}, h.index.checked, "only selected records are checked")
	assert.Equal(t, []string{"42"}, h.publisher.targets)

	p := h.persisted(t)
	assert.Equal(t, []string{"B"}, p.FinishedRecordIDs.Sorted())
	assert.True(t, p.FinishedGroups.Has(ref.ID))
	assert.Empty(t, p.ProcessingGroup)

	assert.Equal(t, PhaseGroupComplete, report.Phase)
	assert.Equal(t, 1, report.Count(OutcomePublished))
	assert.Equal(t, 2, report.Count(OutcomeSkippedFiltered))
	assert.Equal(t, -1, report.FailedIndex)

	receipts, err := h.db.RecentReceipts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "B", receipts[0].RecordID)
	assert.Equal(t, "note-B", receipts[0].NoteID)
	assert.Equal(t, report.RunID, receipts[0].RunID)
}

func TestRunResumesAfterPublishFailure(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	ctx := context.Background()
	ref := GroupRef{ID: "g"}
	boom := errors.New("rpc unavailable")
	h.publisher.failOn["r2"] = boom

	report, err := h.orch.Run(ctx, ref, fiveRecords(), Options{})
	require.Error(t, err)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "r2", pubErr.RecordID)
	assert.Equal(t, 2, pubErr.Index)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, PhaseAborted, report.Phase)
	assert.Equal(t, 2, report.FailedIndex)
	assert.Equal(t, []string{"r0", "r1", "r2"}, h.publisher.Calls(), "loop stops at the failing record")

	p := h.persisted(t)
	assert.Equal(t, []string{"r0", "r1"}, p.FinishedRecordIDs.Sorted())
	assert.Equal(t, "g", p.ProcessingGroup)
	assert.False(t, p.FinishedGroups.Has("g"))

	delete(h.publisher.failOn, "r2")
	h.publisher.calls = nil

	report, err = h.orch.Run(ctx, ref, fiveRecords(), Options{})
	require.NoError(t, err)
	assert.True(t, report.Resumed)
	assert.Equal(t, []string{"r2", "r3", "r4"}, h.publisher.Calls())
	assert.Equal(t, []string{"r2", "r3", "r4"}, report.Published)

	p = h.persisted(t)
	assert.True(t, p.FinishedGroups.Has("g"))
	assert.Equal(t, []string{"r0", "r1", "r2", "r3", "r4"}, p.FinishedRecordIDs.Sorted())
}

func TestRunCheckpointsBeforeNextRecord(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	h.publisher.failOn["r1"] = errors.New("insufficient balance")

	var seenAtSecondPublish Progress
	h.publisher.onPublish = func(id string) {
		if id == "r1" {
			seenAtSecondPublish = h.persisted(t)
		}
	}

	_, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, fiveRecords()[:3], Options{})
	require.Error(t, err)

	assert.True(t, seenAtSecondPublish.FinishedRecordIDs.Has("r0"), "r0 must be on disk before r1 is attempted")
	assert.True(t, h.persisted(t).FinishedRecordIDs.Has("r0"))
	assert.False(t, h.persisted(t).FinishedRecordIDs.Has("r1"))
}

func TestRunPublishesInChronologicalOrder(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	records := []Record{record("c", 30), record("a", 0), record("d", 45), record("b", 15)}

	_, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, records, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, h.publisher.Calls())
}

func TestRunDuplicateGuardFailsOpen(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	h.index.err = errors.New("indexer timeout")

	report, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, fiveRecords()[:2], Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1"}, h.publisher.Calls())
	assert.Equal(t, 2, report.Count(OutcomePublished))
}

func TestRunSkipsDuplicatesWithoutMarkingThem(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	h.index.existing["r1"] = true

	report, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, fiveRecords()[:3], Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"r0", "r2"}, h.publisher.Calls())
	assert.Equal(t, 1, report.Count(OutcomeSkippedDuplicate))
	assert.False(t, h.persisted(t).FinishedRecordIDs.Has("r1"))
}

func TestRunIgnoresGuardWhenDuplicatesAllowed(t *testing.T) {
	h := newHarness(t, Settings{TargetIdentity: "42"})
	h.index.existing["r0"] = true

	_, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, fiveRecords()[:1], Options{})
	require.NoError(t, err)
	assert.Empty(t, h.index.checked)
	assert.Equal(t, []string{"r0"}, h.publisher.Calls())
}

func TestRunWithoutTargetIdentityChangesNothing(t *testing.T) {
	h := newHarness(t, Settings{PreventDuplicates: true})

	report, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, fiveRecords(), Options{})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "targetIdentity", cfgErr.Field)
	assert.Equal(t, PhaseIdle, report.Phase)
	assert.Empty(t, h.publisher.Calls())
	assert.Empty(t, h.events)

	_, found, err := h.db.Get(context.Background(), ProgressKey)
	require.NoError(t, err)
	assert.False(t, found, "progress must not be written")
}

func TestRunRejectedTargetKeepsOtherGroupCheckpoint(t *testing.T) {
	h := newHarness(t, Settings{PreventDuplicates: true, TargetIdentity: "alice"})
	ctx := context.Background()
	_, err := h.state.UpdateProgress(ctx, func(p *Progress) {
		p.ProcessingGroup = "B"
		p.FinishedRecordIDs.Add("b0")
	})
	require.NoError(t, err)

	pub := &checkedPublisher{
		fakePublisher: h.publisher,
		reject:        &ConfigError{Field: "targetIdentity", Reason: "not a character id: alice"},
	}
	h.orch = NewOrchestrator(OrchestratorDeps{
		State:     h.state,
		Publisher: pub,
		Guard:     NewDuplicateGuard(h.index, nil),
		Observer:  ObserverFunc(func(e Event) { h.events = append(h.events, e) }),
	})

	report, err := h.orch.Run(ctx, GroupRef{ID: "C"}, fiveRecords(), Options{})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "targetIdentity", cfgErr.Field)
	assert.Equal(t, PhaseIdle, report.Phase)
	assert.Equal(t, []string{"alice"}, pub.checked)
	assert.Empty(t, h.publisher.Calls())
	assert.Empty(t, h.events)

	p := h.persisted(t)
	assert.Equal(t, "B", p.ProcessingGroup)
	assert.Equal(t, []string{"b0"}, p.FinishedRecordIDs.Sorted())
}

func TestRunRefusesFinishedGroup(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	ctx := context.Background()
	_, err := h.state.UpdateProgress(ctx, func(p *Progress) { p.FinishedGroups.Add("g") })
	require.NoError(t, err)

	_, err = h.orch.Run(ctx, GroupRef{ID: "g"}, fiveRecords(), Options{})
	assert.ErrorIs(t, err, ErrGroupFinished)
	assert.Empty(t, h.publisher.Calls())
}

func TestRunNewGroupResetsFinishedRecords(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	ctx := context.Background()
	h.publisher.failOn["r1"] = errors.New("down")

	_, err := h.orch.Run(ctx, GroupRef{ID: "first"}, fiveRecords()[:2], Options{})
	require.Error(t, err)
	require.True(t, h.persisted(t).FinishedRecordIDs.Has("r0"))

	_, err = h.orch.Run(ctx, GroupRef{ID: "second"}, []Record{record("s0", 0)}, Options{})
	require.NoError(t, err)

	p := h.persisted(t)
	assert.Equal(t, []string{"s0"}, p.FinishedRecordIDs.Sorted())
	assert.True(t, p.FinishedGroups.Has("second"))
	assert.False(t, p.FinishedGroups.Has("first"))
}

func TestRunCancelStopsBetweenRecords(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	ctx, cancel := context.WithCancel(context.Background())
	h.publisher.onPublish = func(id string) {
		if id == "r1" {
			cancel()
		}
	}

	report, err := h.orch.Run(ctx, GroupRef{ID: "g"}, fiveRecords(), Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseAborted, report.Phase)

	assert.Equal(t, []string{"r0", "r1"}, h.publisher.Calls(), "in-flight publish completes, nothing after it starts")
	assert.Equal(t, []string{"r0", "r1"}, h.persisted(t).FinishedRecordIDs.Sorted())
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	records := []Record{record("a", 0), reply("b", 1, "a")}

	_, err := h.orch.Run(context.Background(), GroupRef{ID: "g"}, records, Options{})
	require.NoError(t, err)

	var kinds []EventKind
	var outcomes []Outcome
	for _, e := range h.events {
		kinds = append(kinds, e.Kind)
		if e.Kind == EventRecordDone {
			outcomes = append(outcomes, e.Outcome)
		}
	}
	assert.Equal(t, []EventKind{
		EventGroupStarted,
		EventRecordStarted, EventRecordDone,
		EventRecordStarted, EventRecordDone,
		EventGroupDone,
	}, kinds)
	assert.Equal(t, []Outcome{OutcomePublished, OutcomeSkippedFiltered}, outcomes)
	require.Len(t, h.events[0].Records, 2)
	require.NotNil(t, h.events[len(h.events)-1].Report)
	assert.Equal(t, PhaseGroupComplete, h.events[len(h.events)-1].Report.Phase)
}
