package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	groups  []GroupRef
	records map[string][]Record
	fail    map[string]error
	loads   []string
}

func (f *fakeLoader) Groups(ctx context.Context) ([]GroupRef, error) {
	return f.groups, nil
}

func (f *fakeLoader) Load(ctx context.Context, ref GroupRef) ([]Record, error) {
	f.loads = append(f.loads, ref.ID)
	if err := f.fail[ref.ID]; err != nil {
		return nil, err
	}
	return f.records[ref.ID], nil
}

func twoGroupLoader() *fakeLoader {
	return &fakeLoader{
		groups: []GroupRef{{ID: "data/tweets.js", ExpectedCount: 2}, {ID: "data/tweets-part1.js", ExpectedCount: 1}},
		records: map[string][]Record{
			"data/tweets.js":       {record("a", 0), record("b", 1)},
			"data/tweets-part1.js": {record("c", 2)},
		},
		fail: map[string]error{},
	}
}

func TestMigratorRunAllCompletesEveryGroup(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	loader := twoGroupLoader()
	m := NewMigrator(loader, h.orch, h.state, nil)
	ctx := context.Background()

	reports, err := m.RunAll(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "data/tweets.js", reports[0].Group.ID)
	assert.Equal(t, "data/tweets-part1.js", reports[1].Group.ID)
	assert.Equal(t, []string{"a", "b", "c"}, h.publisher.Calls())

	done, err := m.Complete(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	_, ok, err := m.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	report, ok, err := m.RunNext(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, report)
}

func TestMigratorLoadErrorDoesNotClaimGroup(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	loader := twoGroupLoader()
	loader.fail["data/tweets.js"] = errors.New("unexpected end of JSON input")
	m := NewMigrator(loader, h.orch, h.state, nil)
	ctx := context.Background()

	_, _, err := m.RunNext(ctx, Options{})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "data/tweets.js", loadErr.GroupID)
	assert.Empty(t, h.publisher.Calls())

	p, err := h.state.Progress(ctx)
	require.NoError(t, err)
	assert.Empty(t, p.ProcessingGroup)
	assert.Zero(t, p.FinishedGroups.Len())
}

func TestMigratorRunGroupRejectsUnknownAndFinished(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	loader := twoGroupLoader()
	m := NewMigrator(loader, h.orch, h.state, nil)
	ctx := context.Background()

	_, err := m.RunGroup(ctx, "data/nope.js", Options{})
	assert.ErrorIs(t, err, ErrUnknownGroup)

	_, err = m.RunGroup(ctx, "data/tweets-part1.js", Options{})
	require.NoError(t, err)

	loads := len(loader.loads)
	_, err = m.RunGroup(ctx, "data/tweets-part1.js", Options{})
	assert.ErrorIs(t, err, ErrGroupFinished)
	assert.Len(t, loader.loads, loads, "finished groups are never reloaded")
}

func TestMigratorPreviewDoesNotClaim(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	m := NewMigrator(twoGroupLoader(), h.orch, h.state, nil)
	ctx := context.Background()

	classified, err := m.Preview(ctx, "data/tweets.js", Options{Overrides: Overrides{Exclude: NewIDSet("b")}})
	require.NoError(t, err)
	require.Len(t, classified, 2)
	assert.True(t, classified[0].IsSelected)
	assert.False(t, classified[1].IsSelected)

	p, err := h.state.Progress(ctx)
	require.NoError(t, err)
	assert.Empty(t, p.ProcessingGroup)
}

func TestMigratorResetGroup(t *testing.T) {
	h := newHarness(t, defaultTestSettings)
	m := NewMigrator(twoGroupLoader(), h.orch, h.state, nil)
	ctx := context.Background()

	_, err := m.RunAll(ctx, Options{})
	require.NoError(t, err)

	require.NoError(t, m.ResetGroup(ctx, "data/tweets.js"))
	next, ok, err := m.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "data/tweets.js", next.ID)

	require.NoError(t, m.Reset(ctx))
	p := h.persisted(t)
	assert.Zero(t, p.FinishedGroups.Len())
	assert.Zero(t, p.FinishedRecordIDs.Len())
}
