package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Loader exposes an export as ordered record groups.
type Loader interface {
	Groups(ctx context.Context) ([]GroupRef, error)
	Load(ctx context.Context, ref GroupRef) ([]Record, error)
}

// Migrator drives the whole migration: it selects the next unfinished
// group, loads it and hands it to the orchestrator.
type Migrator struct {
	loader Loader
	orch   *Orchestrator
	state  *State
	logger *slog.Logger
}

func NewMigrator(loader Loader, orch *Orchestrator, state *State, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{loader: loader, orch: orch, state: state, logger: logger}
}

func (m *Migrator) Groups(ctx context.Context) ([]GroupRef, error) {
	groups, err := m.loader.Groups(ctx)
	if err != nil {
		return nil, asLoadError("manifest", err)
	}
	return groups, nil
}

// Next returns the group the migration would run next. false means the
// migration is complete.
func (m *Migrator) Next(ctx context.Context) (GroupRef, bool, error) {
	groups, err := m.Groups(ctx)
	if err != nil {
		return GroupRef{}, false, err
	}
	progress, err := m.state.Progress(ctx)
	if err != nil {
		return GroupRef{}, false, err
	}
	ref, ok := NextGroup(groups, progress)
	return ref, ok, nil
}

// Complete reports whether every manifest group is finished.
func (m *Migrator) Complete(ctx context.Context) (bool, error) {
	_, ok, err := m.Next(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// RunGroup loads and migrates the named group.
func (m *Migrator) RunGroup(ctx context.Context, id string, opts Options) (*Report, error) {
	ref, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, ref, opts)
}

// RunNext migrates the next unfinished group. It returns false without
// error when nothing is left.
func (m *Migrator) RunNext(ctx context.Context, opts Options) (*Report, bool, error) {
	ref, ok, err := m.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	report, err := m.run(ctx, ref, opts)
	return report, true, err
}

// RunAll keeps migrating groups until the migration is complete or a run
// fails. Reports of every attempted group are returned.
func (m *Migrator) RunAll(ctx context.Context, opts Options) ([]*Report, error) {
	var reports []*Report
	for {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, ok, err := m.RunNext(ctx, opts)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
		if !ok {
			m.logger.Info("migration complete", "groups", len(reports))
			return reports, nil
		}
	}
}

// Preview loads and classifies a group without claiming it.
func (m *Migrator) Preview(ctx context.Context, id string, opts Options) ([]ClassifiedRecord, error) {
	ref, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := m.loader.Load(ctx, ref)
	if err != nil {
		return nil, asLoadError(ref.ID, err)
	}
	settings, err := m.state.Settings(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := m.state.Progress(ctx)
	if err != nil {
		return nil, err
	}
	// finished ids only describe the group being processed
	if progress.ProcessingGroup != ref.ID {
		progress.FinishedRecordIDs = IDSet{}
	}
	return ClassifyGroup(records, settings, progress, opts.Overrides), nil
}

// ResetGroup makes a finished or half-processed group selectable again from
// scratch.
func (m *Migrator) ResetGroup(ctx context.Context, id string) error {
	if _, err := m.lookup(ctx, id); err != nil {
		return err
	}
	_, err := m.state.UpdateProgress(ctx, func(p *Progress) {
		delete(p.FinishedGroups, id)
		if p.ProcessingGroup == id {
			p.ProcessingGroup = ""
			p.FinishedRecordIDs = IDSet{}
		}
	})
	return err
}

func (m *Migrator) Reset(ctx context.Context) error {
	return m.state.ResetProgress(ctx)
}

func (m *Migrator) run(ctx context.Context, ref GroupRef, opts Options) (*Report, error) {
	progress, err := m.state.Progress(ctx)
	if err != nil {
		return nil, err
	}
	if progress.FinishedGroups.Has(ref.ID) {
		return nil, fmt.Errorf("%s: %w", ref.ID, ErrGroupFinished)
	}

	// loading happens before the group is claimed, so a broken file leaves
	// Progress untouched
	records, err := m.loader.Load(ctx, ref)
	if err != nil {
		return nil, asLoadError(ref.ID, err)
	}
	if ref.ExpectedCount > 0 && len(records) != ref.ExpectedCount {
		m.logger.Warn("group size differs from manifest", "group", ref.ID, "expected", ref.ExpectedCount, "loaded", len(records))
	}

	return m.orch.Run(ctx, ref, records, opts)
}

func (m *Migrator) lookup(ctx context.Context, id string) (GroupRef, error) {
	groups, err := m.Groups(ctx)
	if err != nil {
		return GroupRef{}, err
	}
	ref, ok := FindGroup(groups, id)
	if !ok {
		return GroupRef{}, fmt.Errorf("%s: %w", id, ErrUnknownGroup)
	}
	return ref, nil
}

func asLoadError(groupID string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{GroupID: groupID, Err: err}
}
