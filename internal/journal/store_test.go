package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, Entry{
		RecordedAt:    at,
		Action:        ActionCommitAdvance,
		SourceURI:     "img1",
		BoundingBox:   "0,0,10,10",
		LabelerName:   "Alex",
		IncomingDirty: true,
		Outcome:       OutcomeOK,
	}))
	require.NoError(t, store.Record(ctx, Entry{
		Action:      ActionAdd,
		SourceURI:   "img2",
		BoundingBox: "1,1,5,5",
		EmbeddingID: "emb-1",
		Outcome:     OutcomeError,
		Error:       "record store unavailable",
	}))

	entries, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ActionAdd, entries[0].Action, "newest first")
	assert.Equal(t, "record store unavailable", entries[0].Error)
	assert.False(t, entries[0].RecordedAt.IsZero())

	first := entries[1]
	assert.Equal(t, ActionCommitAdvance, first.Action)
	assert.True(t, first.IncomingDirty)
	assert.False(t, first.MatchedDirty)
	assert.Equal(t, "Alex", first.LabelerName)
	assert.True(t, at.Equal(first.RecordedAt))
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, e := range []Entry{
		{Action: ActionCommitAdvance, SourceURI: "img1", BoundingBox: "0,0,1,1", Outcome: OutcomeOK},
		{Action: ActionCommitFinish, SourceURI: "img1", BoundingBox: "0,0,1,1", Outcome: OutcomeOK},
		{Action: ActionRemove, SourceURI: "img2", BoundingBox: "0,0,1,1", Outcome: OutcomeOK},
	} {
		require.NoError(t, store.Record(ctx, e))
	}

	byCrop, err := store.List(ctx, Filter{SourceURI: "img1"})
	require.NoError(t, err)
	assert.Len(t, byCrop, 2)

	byAction, err := store.List(ctx, Filter{Action: ActionRemove})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "img2", byAction[0].SourceURI)

	limited, err := store.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ActionRemove, limited[0].Action)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, Entry{Action: ActionAdd, SourceURI: "img1", BoundingBox: "0,0,1,1", Outcome: OutcomeOK}))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
