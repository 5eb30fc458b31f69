package store

import (
	"context"
	"testing"
	"time"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Native {
	t.Helper()
	n, err := NewNative(t.TempDir(), Options{EnableCache: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNativeRootCommitIsRetrievable(t *testing.T) {
	n := newTestStore(t)
	ctx := context.Background()

	require.False(t, n.RootCommitId().IsZero())
	require.Equal(t, n.EmptyTreeId(), n.RootTreeId())

	c, err := n.ReadCommit(ctx, n.RootCommitId())
	require.NoError(t, err)
	require.True(t, c.IsRoot())
	require.Equal(t, n.EmptyTreeId(), c.RootTree)

	tr, err := n.ReadTree(ctx, n.RootTreeId())
	require.NoError(t, err)
	require.Empty(t, tr.Entries)
}

func TestNativeFileRoundTrip(t *testing.T) {
	n := newTestStore(t)
	ctx := context.Background()

	id, err := n.WriteFile(ctx, []byte("hello world"))
	require.NoError(t, err)

	got, err := n.ReadFile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	// Writing identical content twice must not error and must yield the
	// same id (content addressing, spec §4.1).
	id2, err := n.WriteFile(ctx, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, id, id2)
}

func TestNativeReadMissingObject(t *testing.T) {
	n := newTestStore(t)
	_, err := n.ReadFile(context.Background(), objecthash.Of([]byte("nope")))
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestNativeTreeAndCommitRoundTrip(t *testing.T) {
	n := newTestStore(t)
	ctx := context.Background()

	fileId, err := n.WriteFile(ctx, []byte("package main"))
	require.NoError(t, err)

	tree := object.NewTree([]object.TreeEntry{
		{Name: "main.go", Kind: object.FileEntry, Id: fileId},
	})
	treeId, err := n.WriteTree(ctx, tree)
	require.NoError(t, err)

	commit := &object.Commit{
		ChangeId:    objecthash.Of([]byte("change-1")),
		Parents:     []objecthash.Hash{n.RootCommitId()},
		RootTree:    treeId,
		Description: "initial",
		Author:      object.Signature{Name: "A", Email: "a@example.com"},
		Committer:   object.Signature{Name: "A", Email: "a@example.com"},
	}
	commitId, err := n.WriteCommit(ctx, commit)
	require.NoError(t, err)

	got, err := n.ReadCommit(ctx, commitId)
	require.NoError(t, err)
	require.Equal(t, commit.Description, got.Description)

	gotTree, err := got.Root(ctx)
	require.NoError(t, err)
	require.Len(t, gotTree.Entries, 1)
	require.Equal(t, "main.go", gotTree.Entries[0].Name)
}

func TestNativeWriteConflictRejectsResolvedMerge(t *testing.T) {
	n := newTestStore(t)
	ctx := context.Background()

	resolved := &object.Conflict{
		Adds: []object.TreeValue{{Present: true, Kind: object.FileEntry, Id: objecthash.Of([]byte("x"))}},
	}
	_, err := n.WriteConflict(ctx, resolved)
	require.Error(t, err)
}

func TestNativeGCRemovesUnreachableOldObjects(t *testing.T) {
	n := newTestStore(t)
	ctx := context.Background()

	keepId, err := n.WriteFile(ctx, []byte("kept"))
	require.NoError(t, err)
	keepTree := object.NewTree([]object.TreeEntry{{Name: "f", Kind: object.FileEntry, Id: keepId}})
	keepTreeId, err := n.WriteTree(ctx, keepTree)
	require.NoError(t, err)
	keepCommit := &object.Commit{
		Parents:     []objecthash.Hash{n.RootCommitId()},
		RootTree:    keepTreeId,
		Description: "keep",
		Author:      object.Signature{Name: "A", Email: "a@example.com"},
		Committer:   object.Signature{Name: "A", Email: "a@example.com"},
	}
	keepCommitId, err := n.WriteCommit(ctx, keepCommit)
	require.NoError(t, err)

	orphanId, err := n.WriteFile(ctx, []byte("orphaned"))
	require.NoError(t, err)

	removed, err := n.GC(ctx, []objecthash.Hash{keepCommitId}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, 1)

	_, err = n.ReadFile(ctx, orphanId)
	require.True(t, IsNotFound(err))

	// Reachable objects must survive.
	_, err = n.ReadFile(ctx, keepId)
	require.NoError(t, err)
	_, err = n.ReadCommit(ctx, keepCommitId)
	require.NoError(t, err)
}

func TestNativeGCKeepsYoungUnreachableObjects(t *testing.T) {
	n := newTestStore(t)
	ctx := context.Background()

	orphanId, err := n.WriteFile(ctx, []byte("fresh orphan"))
	require.NoError(t, err)

	removed, err := n.GC(ctx, nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	_, err = n.ReadFile(ctx, orphanId)
	require.NoError(t, err)
}
