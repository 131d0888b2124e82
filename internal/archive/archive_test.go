package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeforge/flowengine/internal/state"
)

func sampleSnapshot(id string) state.Snapshot {
	return state.Snapshot{
		ExecutionID: id,
		NodeStates: map[string]state.NodeState{
			"a": {NodeID: "a", Status: state.StatusCompleted},
			"b": {NodeID: "b", Status: state.StatusFailed},
		},
		GlobalData: map[string]map[string]any{},
		IsRunning:  false,
	}
}

func TestMemoryArchiveSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	a := NewMemoryArchive()
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, sampleSnapshot("run-1")))

	got, err := a.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "run-1", got.ExecutionID)
}

func TestMemoryArchiveLoadMissingReturnsError(t *testing.T) {
	t.Parallel()
	a := NewMemoryArchive()
	_, err := a.Load(context.Background(), "missing")
	require.Error(t, err)
}

func TestMemoryArchiveListSummarizesCounts(t *testing.T) {
	t.Parallel()
	a := NewMemoryArchive()
	ctx := context.Background()
	require.NoError(t, a.Save(ctx, sampleSnapshot("run-1")))

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].Completed)
	require.Equal(t, 1, list[0].Failed)
}

func TestSQLArchiveSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Save(ctx, sampleSnapshot("run-1")))

	got, err := a.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "run-1", got.ExecutionID)
	require.Len(t, got.NodeStates, 2)
}

func TestSQLArchiveSaveUpsertsExistingRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer a.Close()

	snap := sampleSnapshot("run-1")
	require.NoError(t, a.Save(ctx, snap))

	snap.IsRunning = true
	require.NoError(t, a.Save(ctx, snap))

	got, err := a.Load(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, got.IsRunning)
}

func TestSQLArchiveListReturnsAllRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Save(ctx, sampleSnapshot("run-1")))
	require.NoError(t, a.Save(ctx, sampleSnapshot("run-2")))

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestDialectSchemaAndUpsertDifferForMySQL(t *testing.T) {
	t.Parallel()

	require.Contains(t, schemaFor(dialectSQLite), "TEXT PRIMARY KEY")
	require.Contains(t, schemaFor(dialectMySQL), "VARCHAR(191) PRIMARY KEY")
	require.NotContains(t, schemaFor(dialectMySQL), "TEXT PRIMARY KEY")

	require.Contains(t, upsertFor(dialectSQLite), "ON CONFLICT")
	require.Contains(t, upsertFor(dialectMySQL), "ON DUPLICATE KEY UPDATE")
	require.NotContains(t, upsertFor(dialectMySQL), "ON CONFLICT")
}
