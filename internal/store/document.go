package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Documents is the key/value contract the migration state is persisted through.
// Put must replace the whole value atomically.
type Documents interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

var _ Documents = (*DB)(nil)

// Load decodes the JSON document under key over a copy of def, so fields
// missing from the stored document keep their defaults. When the document
// is absent it returns def and false.
func Load[T any](ctx context.Context, docs Documents, key string, def T) (T, bool, error) {
	raw, ok, err := docs.Get(ctx, key)
	if err != nil {
		return def, false, err
	}
	if !ok {
		return def, false, nil
	}

	v := def
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, false, fmt.Errorf("decode document %s: %w", key, err)
	}
	return v, true, nil
}

// Save encodes v as JSON and overwrites the document under key.
func Save[T any](ctx context.Context, docs Documents, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", key, err)
	}
	return docs.Put(ctx, key, raw)
}
