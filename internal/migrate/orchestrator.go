package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/t2c/internal/store"
)

// Publisher commits one record to the ledger. It is called at most once per
// attempt; any error aborts the group run.
type Publisher interface {
	Publish(ctx context.Context, targetIdentity string, rec Record) (Receipt, error)
}

// TargetChecker is implemented by publishers that can vet a target identity
// before a group is claimed. A rejection leaves Progress untouched.
type TargetChecker interface {
	CheckTarget(ctx context.Context, targetIdentity string) error
}

// Journal keeps an audit trail of committed notes.
type Journal interface {
	AppendReceipt(ctx context.Context, r store.Receipt) error
}

// Phase is the orchestrator's position in a group run.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseSelecting     Phase = "selecting"
	PhasePublishing    Phase = "publishing"
	PhaseGroupComplete Phase = "group-complete"
	PhaseAborted       Phase = "aborted"
)

// Options tune a single group run.
type Options struct {
	Overrides Overrides
}

// Report summarises one group run.
type Report struct {
	RunID       string
	Group       GroupRef
	Phase       Phase
	Resumed     bool // the group was already being processed before this run
	Total       int
	Counts      map[Outcome]int
	Published   []string
	FailedIndex int // -1 unless the run aborted on a record
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (r *Report) Count(o Outcome) int {
	if r == nil {
		return 0
	}
	return r.Counts[o]
}

type OrchestratorDeps struct {
	State     *State
	Publisher Publisher
	Guard     *DuplicateGuard
	Journal   Journal
	Observer  Observer
	Logger    *slog.Logger
	NewRunID  func() string
	Now       func() time.Time
}

// Orchestrator walks one group's records strictly in order, publishing the
// selected ones and checkpointing Progress after every success.
type Orchestrator struct {
	state     *State
	publisher Publisher
	guard     *DuplicateGuard
	journal   Journal
	observer  Observer
	logger    *slog.Logger
	newRunID  func() string
	now       func() time.Time
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		state:     deps.State,
		publisher: deps.Publisher,
		guard:     deps.Guard,
		journal:   deps.Journal,
		observer:  deps.Observer,
		logger:    deps.Logger,
		newRunID:  deps.NewRunID,
		now:       deps.Now,
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// SetObserver replaces the event subscriber. Not safe during a run.
func (o *Orchestrator) SetObserver(obs Observer) {
	o.observer = obs
}

// Run migrates one group. records must be the group's full load; they are
// classified and sorted here. A failed publish stops the loop at that record
// and is returned as *PublishError. Cancelling ctx stops the loop before the
// next record, but a publish already in flight is allowed to finish and be
// checkpointed.
func (o *Orchestrator) Run(ctx context.Context, ref GroupRef, records []Record, opts Options) (*Report, error) {
	report := &Report{
		RunID:       o.newRunID(),
		Group:       ref,
		Phase:       PhaseIdle,
		Counts:      map[Outcome]int{},
		FailedIndex: -1,
		StartedAt:   o.now(),
	}
	logger := o.logger.With("run_id", report.RunID, "group", ref.ID)

	settings, err := o.state.Settings(ctx)
	if err != nil {
		return o.fail(report, err)
	}
	if settings.TargetIdentity == "" {
		return o.fail(report, &ConfigError{Field: "targetIdentity", Reason: "no target identity configured"})
	}
	if o.publisher == nil {
		return o.fail(report, &ConfigError{Field: "publisher", Reason: "no publisher configured"})
	}
	if tc, ok := o.publisher.(TargetChecker); ok {
		if err := tc.CheckTarget(ctx, settings.TargetIdentity); err != nil {
			return o.fail(report, fmt.Errorf("check target %s: %w", settings.TargetIdentity, err))
		}
	}

	progress, err := o.state.Progress(ctx)
	if err != nil {
		return o.fail(report, err)
	}
	if progress.FinishedGroups.Has(ref.ID) {
		return o.fail(report, fmt.Errorf("%s: %w", ref.ID, ErrGroupFinished))
	}

	report.Phase = PhaseSelecting
	report.Resumed = progress.ProcessingGroup == ref.ID
	progress, err = o.state.UpdateProgress(ctx, func(p *Progress) {
		if p.ProcessingGroup != ref.ID {
			p.FinishedRecordIDs = IDSet{}
		}
		p.ProcessingGroup = ref.ID
	})
	if err != nil {
		return o.fail(report, fmt.Errorf("claim group: %w", err))
	}

	classified := ClassifyGroup(records, settings, progress, opts.Overrides)
	report.Total = len(classified)
	counts := CountClassified(classified)
	logger.Info("group run started",
		"records", counts.Total, "selected", counts.Selected, "migrated", counts.Migrated, "resumed", report.Resumed)
	o.emit(Event{Kind: EventGroupStarted, RunID: report.RunID, Group: ref, Records: classified, Total: len(classified)})

	// Calls to the collaborators are not cut short by cancellation; their
	// outcome must still be reconciled with the checkpoint.
	callCtx := context.WithoutCancel(ctx)

	report.Phase = PhasePublishing
	for i, rec := range classified {
		if err := ctx.Err(); err != nil {
			logger.Info("group run interrupted", "index", i)
			report.Phase = PhaseAborted
			return o.finish(report, fmt.Errorf("interrupted before record #%d: %w", i, err))
		}

		o.emit(Event{Kind: EventRecordStarted, RunID: report.RunID, Group: ref, Index: i, Total: len(classified), Record: rec})

		outcome, receipt, err := o.step(callCtx, logger, report, settings, ref, i, rec)
		report.Counts[outcome]++

		o.emit(Event{
			Kind:    EventRecordDone,
			RunID:   report.RunID,
			Group:   ref,
			Index:   i,
			Total:   len(classified),
			Record:  rec,
			Outcome: outcome,
			Receipt: receipt,
			Err:     err,
		})

		if err != nil {
			report.Phase = PhaseAborted
			report.FailedIndex = i
			logger.Error("group run aborted", "index", i, "record", rec.Record.ID, "error", err)
			return o.finish(report, err)
		}
	}

	_, err = o.state.UpdateProgress(callCtx, func(p *Progress) {
		p.FinishedGroups.Add(ref.ID)
		p.ProcessingGroup = ""
	})
	if err != nil {
		report.Phase = PhaseAborted
		return o.finish(report, fmt.Errorf("commit group: %w", err))
	}

	report.Phase = PhaseGroupComplete
	logger.Info("group run complete",
		"published", report.Count(OutcomePublished),
		"duplicates", report.Count(OutcomeSkippedDuplicate),
		"filtered", report.Count(OutcomeSkippedFiltered))
	return o.finish(report, nil)
}

func (o *Orchestrator) step(ctx context.Context, logger *slog.Logger, report *Report, settings Settings, ref GroupRef, i int, rec ClassifiedRecord) (Outcome, Receipt, error) {
	id := rec.Record.ID

	if !rec.IsSelected {
		return OutcomeSkippedFiltered, Receipt{}, nil
	}

	// Duplicate skips are not added to the finished set, so a resumed run
	// asks the index again.
	if settings.PreventDuplicates && o.guard.Exists(ctx, settings.TargetIdentity, id) {
		logger.Info("record already on ledger, skipping", "record", id)
		return OutcomeSkippedDuplicate, Receipt{}, nil
	}

	receipt, err := o.publisher.Publish(ctx, settings.TargetIdentity, rec.Record)
	if err != nil {
		return OutcomeFailed, Receipt{}, &PublishError{GroupID: ref.ID, RecordID: id, Index: i, Err: err}
	}

	if _, err := o.state.UpdateProgress(ctx, func(p *Progress) {
		p.FinishedRecordIDs.Add(id)
	}); err != nil {
		// published but not checkpointed: the next run retries this record,
		// which is the one unit of uncertainty the duplicate guard covers
		return OutcomePublished, receipt, fmt.Errorf("checkpoint record %s: %w", id, err)
	}
	report.Published = append(report.Published, id)
	logger.Debug("record published", "record", id, "note", receipt.NoteID, "tx", receipt.TxHash)

	if o.journal != nil {
		err := o.journal.AppendReceipt(ctx, store.Receipt{
			RecordID:    id,
			GroupID:     ref.ID,
			NoteID:      receipt.NoteID,
			TxHash:      receipt.TxHash,
			URI:         receipt.URI,
			RunID:       report.RunID,
			PublishedAt: o.now(),
		})
		if err != nil {
			logger.Warn("receipt journal write failed", "record", id, "error", err)
		}
	}

	return OutcomePublished, receipt, nil
}

// fail ends a run that never got past entry; no events are emitted.
func (o *Orchestrator) fail(report *Report, err error) (*Report, error) {
	report.Err = err
	report.FinishedAt = o.now()
	return report, err
}

func (o *Orchestrator) finish(report *Report, err error) (*Report, error) {
	report.Err = err
	report.FinishedAt = o.now()
	o.emit(Event{Kind: EventGroupDone, RunID: report.RunID, Group: report.Group, Total: report.Total, Err: err, Report: report})
	return report, err
}

func (o *Orchestrator) emit(e Event) {
	if o.observer != nil {
		o.observer.Observe(e)
	}
}
