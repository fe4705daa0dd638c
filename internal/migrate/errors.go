package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrGroupFinished is returned when a run is requested for a group that
	// was already committed as finished.
	ErrGroupFinished = errors.New("group already migrated")

	// ErrUnknownGroup is returned when a group id is not in the manifest.
	ErrUnknownGroup = errors.New("group not in manifest")
)

// ConfigError means a required setting or credential is missing. It is
// raised before any state is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// LoadError means a group's records could not be loaded. Progress is left
// untouched: the group is never claimed.
type LoadError struct {
	GroupID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load group %s: %v", e.GroupID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// DuplicateCheckError wraps an existence lookup failure. It never aborts a
// run; the guard logs it and treats the record as new.
type DuplicateCheckError struct {
	RecordID string
	Err      error
}

func (e *DuplicateCheckError) Error() string {
	return fmt.Sprintf("duplicate check %s: %v", e.RecordID, e.Err)
}

func (e *DuplicateCheckError) Unwrap() error {
	return e.Err
}

// PublishError aborts the current group run at Index. Every checkpoint
// before it stays valid.
type PublishError struct {
	GroupID  string
	RecordID string
	Index    int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish record %s (#%d in %s): %v", e.RecordID, e.Index, e.GroupID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Reason is the underlying cause, suitable for showing to a user.
func (e *PublishError) Reason() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}
