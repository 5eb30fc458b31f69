package workingcopy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, ctx context.Context, backend store.Backend, files map[string]string) objecthash.Hash {
	t.Helper()
	var entries []object.TreeEntry
	for name, content := range files {
		id, err := backend.WriteFile(ctx, []byte(content))
		require.NoError(t, err)
		entries = append(entries, object.TreeEntry{Name: name, Kind: object.FileEntry, Id: id})
	}
	id, err := backend.WriteTree(ctx, object.NewTree(entries))
	require.NoError(t, err)
	return id
}

func TestCheckOutCreatesAndUpdatesFiles(t *testing.T) {
	wc, backend := newTestWorkingCopy(t)
	ctx := context.Background()

	treeId := writeTree(t, ctx, backend, map[string]string{"a.txt": "one", "b.txt": "two"})

	err := wc.CheckOut(ctx, objecthash.Zero, objecthash.Of([]byte("op1")), treeId)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(wc.Root, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "one", string(got))
	require.Equal(t, treeId, wc.State.TreeId)
}

func TestCheckOutRemovesDeletedFilesAndEmptyDirs(t *testing.T) {
	wc, backend := newTestWorkingCopy(t)
	ctx := context.Background()

	firstTree := writeTree(t, ctx, backend, map[string]string{"dir/a.txt": "one"})
	op1 := objecthash.Of([]byte("op1"))
	require.NoError(t, wc.CheckOut(ctx, objecthash.Zero, op1, firstTree))
	require.FileExists(t, filepath.Join(wc.Root, "dir", "a.txt"))

	secondTree := writeTree(t, ctx, backend, map[string]string{})
	op2 := objecthash.Of([]byte("op2"))
	require.NoError(t, wc.CheckOut(ctx, op1, op2, secondTree))

	_, err := os.Stat(filepath.Join(wc.Root, "dir", "a.txt"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(wc.Root, "dir"))
	require.True(t, os.IsNotExist(err))
}

func TestCheckOutRejectsStaleOperation(t *testing.T) {
	wc, backend := newTestWorkingCopy(t)
	ctx := context.Background()

	treeId := writeTree(t, ctx, backend, map[string]string{"a.txt": "one"})
	op1 := objecthash.Of([]byte("op1"))
	require.NoError(t, wc.CheckOut(ctx, objecthash.Zero, op1, treeId))

	wrongOp := objecthash.Of([]byte("not-current"))
	err := wc.CheckOut(ctx, wrongOp, objecthash.Of([]byte("op2")), treeId)
	require.Error(t, err)
	require.True(t, IsStale(err))
}

func TestCheckOutMaterializesConflict(t *testing.T) {
	wc, backend := newTestWorkingCopy(t)
	ctx := context.Background()

	leftId, err := backend.WriteFile(ctx, []byte("left\n"))
	require.NoError(t, err)
	rightId, err := backend.WriteFile(ctx, []byte("right\n"))
	require.NoError(t, err)
	baseId, err := backend.WriteFile(ctx, []byte("base\n"))
	require.NoError(t, err)

	conflict := &object.Conflict{
		Adds: []object.TreeValue{
			{Present: true, Kind: object.FileEntry, Id: leftId},
			{Present: true, Kind: object.FileEntry, Id: rightId},
		},
		Removes: []object.TreeValue{
			{Present: true, Kind: object.FileEntry, Id: baseId},
		},
	}
	conflictId, err := backend.WriteConflict(ctx, conflict)
	require.NoError(t, err)

	tree := object.NewTree([]object.TreeEntry{{Name: "c.txt", Kind: object.ConflictEntry, Id: conflictId}})
	treeId, err := backend.WriteTree(ctx, tree)
	require.NoError(t, err)

	require.NoError(t, wc.CheckOut(ctx, objecthash.Zero, objecthash.Of([]byte("op1")), treeId))

	state, ok := wc.State.FileStates[fileset.RepoPath("c.txt")]
	require.True(t, ok)
	require.Equal(t, ConflictFile, state.Type)
	require.NotEmpty(t, state.MaterializedConflict)
}
