package loamstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aunorthrop/nora/pkg/core/types"
	"github.com/aunorthrop/nora/pkg/notebook"
)

var _ notebook.Persister = (*Store)(nil)

func TestAppendAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	notes := []types.Note{
		{Timestamp: base, Input: "buy milk", Response: "Noted: buy milk."},
		{Timestamp: base.Add(time.Minute), Input: "call sam", Response: "Noted: call sam."},
		{Timestamp: base.Add(2 * time.Minute), Input: "water plants", Response: "Noted."},
	}
	for _, note := range notes {
		require.NoError(t, store.Append(ctx, note))
	}

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, note := range notes {
		require.True(t, note.Timestamp.Equal(loaded[i].Timestamp))
		require.Equal(t, note.Input, loaded[i].Input)
		require.Equal(t, note.Response, loaded[i].Response)
	}
}

func TestLoadKeepsSubmissionOrderOnEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for _, input := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(ctx, types.Note{Timestamp: ts, Input: input}))
	}

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	require.Equal(t, "first", loaded[0].Input)
	require.Equal(t, "second", loaded[1].Input)
	require.Equal(t, "third", loaded[2].Input)
}

func TestLoadEmptyVault(t *testing.T) {
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestClearRemovesOnlyNotes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(dir, nil)
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, types.Note{Timestamp: time.Now(), Input: "a"}))
	require.NoError(t, store.Append(ctx, types.Note{Timestamp: time.Now(), Input: "b"}))

	// An unrelated document in the same vault must survive Clear.
	require.NoError(t, store.vault.SaveDocument(ctx, "settings", "keep me", nil))

	require.NoError(t, store.Clear(ctx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)

	doc, err := store.vault.GetDocument(ctx, "settings")
	require.NoError(t, err)
	require.Equal(t, "keep me", doc.Content)
}

func TestReopenSeesPersistedNotes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, types.Note{
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Input:     "persisted",
		Response:  "still here",
	}))

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "persisted", loaded[0].Input)
}
