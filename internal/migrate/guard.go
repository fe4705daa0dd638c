package migrate

import (
	"context"
	"log/slog"
)

// ExistenceIndex answers whether a record was already published for a
// target identity. Implementations usually make a network call.
type ExistenceIndex interface {
	Exists(ctx context.Context, targetIdentity, recordID string) (bool, error)
}

// DuplicateGuard is an advisory pre-publish check. It fails open: a broken
// lookup reports "not a duplicate" rather than blocking the run.
type DuplicateGuard struct {
	index  ExistenceIndex
	logger *slog.Logger
}

func NewDuplicateGuard(index ExistenceIndex, logger *slog.Logger) *DuplicateGuard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuplicateGuard{index: index, logger: logger}
}

func (g *DuplicateGuard) Exists(ctx context.Context, targetIdentity, recordID string) bool {
	if g == nil || g.index == nil {
		return false
	}

	exists, err := g.index.Exists(ctx, targetIdentity, recordID)
	if err != nil {
		checkErr := &DuplicateCheckError{RecordID: recordID, Err: err}
		g.logger.Warn("duplicate check failed, treating record as new", "record", recordID, "error", checkErr)
		return false
	}
	return exists
}
