package object

import (
	"bytes"
	"context"
	"testing"

	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/stretchr/testify/require"
)

// fakeBackend resolves objects from an in-memory map, for tests that need
// Root()/Subtree() without a real store.
type fakeBackend struct {
	trees     map[objecthash.Hash]*Tree
	commits   map[objecthash.Hash]*Commit
	conflicts map[objecthash.Hash]*Conflict
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		trees:     map[objecthash.Hash]*Tree{},
		commits:   map[objecthash.Hash]*Commit{},
		conflicts: map[objecthash.Hash]*Conflict{},
	}
}

func (f *fakeBackend) ReadTree(ctx context.Context, id objecthash.Hash) (*Tree, error) {
	t, ok := f.trees[id]
	if !ok {
		return nil, &ErrEntryNotFound{Name: id.String()}
	}
	return t, nil
}
func (f *fakeBackend) ReadCommit(ctx context.Context, id objecthash.Hash) (*Commit, error) {
	return f.commits[id], nil
}
func (f *fakeBackend) ReadConflict(ctx context.Context, id objecthash.Hash) (*Conflict, error) {
	return f.conflicts[id], nil
}

func (f *fakeBackend) put(t *Tree) *Tree {
	t.Hash = Hash(t)
	f.trees[t.Hash] = t
	return t
}

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	tree := NewTree([]TreeEntry{
		{Name: "b.txt", Kind: FileEntry, Id: objecthash.Of([]byte("b"))},
		{Name: "a.txt", Kind: FileEntry, Id: objecthash.Of([]byte("a")), Executable: true},
	})
	var buf bytes.Buffer
	require.NoError(t, tree.Encode(&buf))

	decoded, err := Decode(&buf, Hash(tree), nil)
	require.NoError(t, err)
	dt := decoded.(*Tree)
	require.Equal(t, tree.Entries, dt.Entries)
	// Entries must come back sorted.
	require.Equal(t, "a.txt", dt.Entries[0].Name)
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	c := &Commit{
		ChangeId:    objecthash.Of([]byte("change-1")),
		Parents:     []objecthash.Hash{objecthash.Of([]byte("parent"))},
		RootTree:    objecthash.Of([]byte("tree")),
		Description: "a commit\n\nwith a body",
		Author:      Signature{Name: "A", Email: "a@example.com", MsSinceEpoch: 1000, TzOffsetMinutes: -420},
		Committer:   Signature{Name: "A", Email: "a@example.com", MsSinceEpoch: 1000, TzOffsetMinutes: -420},
	}
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	decoded, err := Decode(&buf, Hash(c), nil)
	require.NoError(t, err)
	dc := decoded.(*Commit)
	require.Equal(t, c.ChangeId, dc.ChangeId)
	require.Equal(t, c.Parents, dc.Parents)
	require.Equal(t, c.Description, dc.Description)
	require.Equal(t, c.Author, dc.Author)
}

func TestWriteCommitIdempotentHash(t *testing.T) {
	c1 := &Commit{Description: "x", Author: Signature{Name: "n", Email: "e@x.com"}, Committer: Signature{Name: "n", Email: "e@x.com"}}
	c2 := &Commit{Description: "x", Author: Signature{Name: "n", Email: "e@x.com"}, Committer: Signature{Name: "n", Email: "e@x.com"}}
	require.Equal(t, Hash(c1), Hash(c2))
}

func TestMergeTreesNoConflict(t *testing.T) {
	fb := newFakeBackend()
	base := fb.put(NewTree([]TreeEntry{{Name: "f", Kind: FileEntry, Id: objecthash.Of([]byte("base"))}}))
	a := fb.put(NewTree([]TreeEntry{{Name: "f", Kind: FileEntry, Id: objecthash.Of([]byte("a-changed"))}}))
	b := base

	res, err := MergeTrees(context.Background(), fb, a, b, base)
	require.NoError(t, err)
	require.Len(t, res.Root, 1)
	require.Equal(t, objecthash.Of([]byte("a-changed")), res.Root[0].Id)
}

func TestMergeTreesConflict(t *testing.T) {
	fb := newFakeBackend()
	base := fb.put(NewTree([]TreeEntry{{Name: "f", Kind: FileEntry, Id: objecthash.Of([]byte("base"))}}))
	a := fb.put(NewTree([]TreeEntry{{Name: "f", Kind: FileEntry, Id: objecthash.Of([]byte("a-changed"))}}))
	b := fb.put(NewTree([]TreeEntry{{Name: "f", Kind: FileEntry, Id: objecthash.Of([]byte("b-changed"))}}))

	res, err := MergeTrees(context.Background(), fb, a, b, base)
	require.NoError(t, err)
	require.Len(t, res.Root, 1)
	require.Equal(t, ConflictEntry, res.Root[0].Kind)
	require.Len(t, res.NewConflicts, 1)
	require.Len(t, res.NewConflicts[0].Adds, 2)
	require.Len(t, res.NewConflicts[0].Removes, 1)
}
