package workingcopy

import (
	"context"
	"testing"

	"github.com/martinvonz/jjrepo/object"
	"github.com/stretchr/testify/require"
)

func TestRecoverMergesNonConflictingSideChanges(t *testing.T) {
	_, backend := newTestWorkingCopy(t)
	ctx := context.Background()

	baseTree := writeTree(t, ctx, backend, map[string]string{"a.txt": "base"})
	// The working copy has an uncommitted edit to b.txt since the stale
	// operation_id was recorded.
	currentTree := writeTree(t, ctx, backend, map[string]string{"a.txt": "base", "b.txt": "local edit"})
	// Concurrently, the op-head advanced and changed a.txt.
	headTree := writeTree(t, ctx, backend, map[string]string{"a.txt": "remote edit"})

	result, err := Recover(ctx, backend, currentTree, headTree, baseTree)
	require.NoError(t, err)
	require.False(t, result.TreeId.IsZero())

	merged, err := backend.ReadTree(ctx, result.TreeId)
	require.NoError(t, err)

	aEntry, ok := merged.Lookup("a.txt")
	require.True(t, ok)
	aContent, err := backend.ReadFile(ctx, aEntry.Id)
	require.NoError(t, err)
	require.Equal(t, "remote edit", string(aContent))

	bEntry, ok := merged.Lookup("b.txt")
	require.True(t, ok)
	bContent, err := backend.ReadFile(ctx, bEntry.Id)
	require.NoError(t, err)
	require.Equal(t, "local edit", string(bContent))
}

func TestRecoverProducesConflictOnBothSidesEditingSamePath(t *testing.T) {
	_, backend := newTestWorkingCopy(t)
	ctx := context.Background()

	baseTree := writeTree(t, ctx, backend, map[string]string{"a.txt": "base"})
	currentTree := writeTree(t, ctx, backend, map[string]string{"a.txt": "local"})
	headTree := writeTree(t, ctx, backend, map[string]string{"a.txt": "remote"})

	result, err := Recover(ctx, backend, currentTree, headTree, baseTree)
	require.NoError(t, err)

	merged, err := backend.ReadTree(ctx, result.TreeId)
	require.NoError(t, err)
	entry, ok := merged.Lookup("a.txt")
	require.True(t, ok)
	require.Equal(t, object.ConflictEntry, entry.Kind)

	_, err = backend.ReadConflict(ctx, entry.Id)
	require.NoError(t, err)
}
