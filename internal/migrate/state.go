package migrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zuo-Peng/t2c/internal/store"
)

// Document keys of the two persisted singletons.
const (
	SettingsKey = "setting"
	ProgressKey = "progress"
)

// State owns the Settings and Progress documents of one session. Both are
// loaded on first access and written through on every mutation. All
// Progress mutations go through State, so it is the single writer.
type State struct {
	docs store.Documents

	mu       sync.Mutex
	settings *Settings
	progress *Progress
}

func NewState(docs store.Documents) *State {
	return &State{docs: docs}
}

// Settings returns the current settings, initialising and persisting the
// defaults when none were saved yet.
func (s *State) Settings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		v, found, err := store.Load(ctx, s.docs, SettingsKey, DefaultSettings())
		if err != nil {
			return Settings{}, fmt.Errorf("load settings: %w", err)
		}
		if !found {
			if err := store.Save(ctx, s.docs, SettingsKey, v); err != nil {
				return Settings{}, fmt.Errorf("init settings: %w", err)
			}
		}
		s.settings = &v
	}
	return *s.settings, nil
}

func (s *State) SetSettings(ctx context.Context, v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.Save(ctx, s.docs, SettingsKey, v); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.settings = &v
	return nil
}

// Progress returns a copy of the current checkpoint.
func (s *State) Progress(ctx context.Context) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.loadProgress(ctx)
	if err != nil {
		return Progress{}, err
	}
	return p.Clone(), nil
}

// UpdateProgress applies fn to a copy of the checkpoint and persists the
// result. The in-memory copy only changes once the save succeeded, so a
// failed save leaves memory and disk agreeing on the previous checkpoint.
func (s *State) UpdateProgress(ctx context.Context, fn func(*Progress)) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadProgress(ctx)
	if err != nil {
		return Progress{}, err
	}

	next := cur.Clone()
	fn(&next)
	next.normalize()

	if err := store.Save(ctx, s.docs, ProgressKey, next); err != nil {
		return Progress{}, fmt.Errorf("save progress: %w", err)
	}
	s.progress = &next
	return next.Clone(), nil
}

// ResetProgress drops the whole checkpoint back to its defaults.
func (s *State) ResetProgress(ctx context.Context) error {
	_, err := s.UpdateProgress(ctx, func(p *Progress) {
		*p = DefaultProgress()
	})
	return err
}

// caller holds s.mu
func (s *State) loadProgress(ctx context.Context) (*Progress, error) {
	if s.progress != nil {
		return s.progress, nil
	}

	v, found, err := store.Load(ctx, s.docs, ProgressKey, DefaultProgress())
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	v.normalize()
	if !found {
		if err := store.Save(ctx, s.docs, ProgressKey, v); err != nil {
			return nil, fmt.Errorf("init progress: %w", err)
		}
	}
	s.progress = &v
	return s.progress, nil
}

func (p *Progress) normalize() {
	if p.FinishedGroups == nil {
		p.FinishedGroups = IDSet{}
	}
	if p.FinishedRecordIDs == nil {
		p.FinishedRecordIDs = IDSet{}
	}
}
