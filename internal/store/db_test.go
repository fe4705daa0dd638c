package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "t2c.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadReturnsDefaultWhenAbsent(t *testing.T) {
	db := openTestDB(t)

	got, found, err := Load(context.Background(), db, "missing", sample{Name: "default"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "default", got.Name)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Put(ctx, "doc", []byte(`{"name":"stored"}`)))

	got, found, err := Load(ctx, db, "doc", sample{Name: "default", Items: []string{"kept"}})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "stored", got.Name)
	assert.Equal(t, []string{"kept"}, got.Items)
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, Save(ctx, db, "doc", sample{Name: "first", Items: []string{"a", "b"}}))
	require.NoError(t, Save(ctx, db, "doc", sample{Name: "second"}))

	got, found, err := Load(ctx, db, "doc", sample{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", got.Name)
	assert.Empty(t, got.Items)
}

func TestDocumentsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2c.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, Save(ctx, db, "progress", sample{Name: "kept"}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, found, err := Load(ctx, db, "progress", sample{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "kept", got.Name)
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Put(ctx, "doc", []byte("{not json")))

	_, _, err := Load(ctx, db, "doc", sample{})
	assert.Error(t, err)
}

func TestDeleteAndUpdatedAt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }

	ts, err := db.UpdatedAt(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	require.NoError(t, Save(ctx, db, "doc", sample{Name: "x"}))
	ts, err = db.UpdatedAt(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(ts))

	require.NoError(t, db.Delete(ctx, "doc"))
	_, found, err := db.Get(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReceiptJournal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"1", "2", "3"} {
		require.NoError(t, db.AppendReceipt(ctx, Receipt{
			RecordID:    id,
			GroupID:     "data/tweets.js",
			NoteID:      "n" + id,
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	n, err := db.ReceiptCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := db.RecentReceipts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].RecordID)
	assert.Equal(t, "2", recent[1].RecordID)
	assert.Equal(t, "n3", recent[0].NoteID)
}
