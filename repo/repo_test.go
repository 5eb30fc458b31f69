package repo

import (
	"context"
	"testing"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/oplog"
	"github.com/martinvonz/jjrepo/sign"
	"github.com/martinvonz/jjrepo/store"
	"github.com/martinvonz/jjrepo/view"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) store.Backend {
	t.Helper()
	n, err := store.NewNative(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func newTestOpStoreAndBackend(t *testing.T) (*oplog.Store, store.Backend) {
	t.Helper()
	backend := newTestBackend(t)
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)
	return s, backend
}

func emptyRootRepo(t *testing.T, backend store.Backend) *MutableRepo {
	t.Helper()
	ctx := context.Background()
	v := view.Empty()
	v.HeadIds = []objecthash.Hash{backend.RootCommitId()}
	idx, err := BuildIndex(ctx, backend, v)
	require.NoError(t, err)
	return NewMutableRepo(backend, idx, v)
}

func TestWriteCommitAssignsFreshChangeId(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	c1, err := r.WriteCommit(ctx, CommitData{Parents: []objecthash.Hash{backend.RootCommitId()}, RootTree: backend.EmptyTreeId(), Description: "one"})
	require.NoError(t, err)
	c2, err := r.WriteCommit(ctx, CommitData{Parents: []objecthash.Hash{backend.RootCommitId()}, RootTree: backend.EmptyTreeId(), Description: "two"})
	require.NoError(t, err)

	require.False(t, c1.ChangeId.IsZero())
	require.False(t, c2.ChangeId.IsZero())
	require.NotEqual(t, c1.ChangeId, c2.ChangeId)
	require.NotEqual(t, c1.Hash, c2.Hash)
}

func TestWriteCommitMintsDistinctCommitsForIdenticalData(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	data := CommitData{Parents: []objecthash.Hash{backend.RootCommitId()}, RootTree: backend.EmptyTreeId(), Description: "same"}
	// Both writes go through WriteCommit, which mints a fresh ChangeId each
	// time, so re-submitting identical CommitData still produces distinct
	// commits -- content addressing dedupes the object store's bytes, not
	// the logical "new commit" operation.
	c1, err := r.WriteCommit(ctx, data)
	require.NoError(t, err)
	c2, err := r.WriteCommit(ctx, data)
	require.NoError(t, err)
	require.NotEqual(t, c1.Hash, c2.Hash)
}

func TestRewriteCommitPreservesChangeIdAndAppendsPredecessor(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	orig, err := r.WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{backend.RootCommitId()},
		RootTree:    backend.EmptyTreeId(),
		Description: "v1",
	})
	require.NoError(t, err)

	rewritten, err := r.RewriteCommit(orig).SetDescription("v2").Write(ctx)
	require.NoError(t, err)

	require.Equal(t, orig.ChangeId, rewritten.ChangeId)
	require.Contains(t, rewritten.Predecessors, orig.Hash)
	require.Equal(t, "v2", rewritten.Description)

	entry, ok := r.RewriteMapEntry(orig.Hash)
	require.True(t, ok)
	require.False(t, entry.Abandoned)
	require.Equal(t, rewritten.Hash, entry.NewId)
}

func TestRebaseDescendantsNoOpWithoutRewrites(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	n, err := r.RebaseDescendants(ctx, RebaseSettings{})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

// buildLinearHistory writes root -> a -> b -> c, each adding one file at
// a distinct path, and returns their commits plus the backend.
func buildLinearHistory(t *testing.T, r *MutableRepo, backend store.Backend) (a, b, c *object.Commit) {
	t.Helper()
	ctx := context.Background()

	treeFor := func(name string, content []byte) objecthash.Hash {
		fileId, err := backend.WriteFile(ctx, content)
		require.NoError(t, err)
		tr := object.NewTree([]object.TreeEntry{{Name: name, Kind: object.FileEntry, Id: fileId}})
		id, err := backend.WriteTree(ctx, tr)
		require.NoError(t, err)
		return id
	}

	var err error
	a, err = r.WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{backend.RootCommitId()},
		RootTree:    treeFor("a.txt", []byte("a")),
		Description: "a",
	})
	require.NoError(t, err)

	bTree := func() objecthash.Hash {
		fa, _ := backend.WriteFile(ctx, []byte("a"))
		fb, _ := backend.WriteFile(ctx, []byte("b"))
		tr := object.NewTree([]object.TreeEntry{
			{Name: "a.txt", Kind: object.FileEntry, Id: fa},
			{Name: "b.txt", Kind: object.FileEntry, Id: fb},
		})
		id, err := backend.WriteTree(ctx, tr)
		require.NoError(t, err)
		return id
	}()
	b, err = r.WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{a.Hash},
		RootTree:    bTree,
		Description: "b",
	})
	require.NoError(t, err)

	cTree := func() objecthash.Hash {
		fa, _ := backend.WriteFile(ctx, []byte("a"))
		fb, _ := backend.WriteFile(ctx, []byte("b"))
		fc, _ := backend.WriteFile(ctx, []byte("c"))
		tr := object.NewTree([]object.TreeEntry{
			{Name: "a.txt", Kind: object.FileEntry, Id: fa},
			{Name: "b.txt", Kind: object.FileEntry, Id: fb},
			{Name: "c.txt", Kind: object.FileEntry, Id: fc},
		})
		id, err := backend.WriteTree(ctx, tr)
		require.NoError(t, err)
		return id
	}()
	c, err = r.WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{b.Hash},
		RootTree:    cTree,
		Description: "c",
	})
	require.NoError(t, err)
	return a, b, c
}

func TestRebaseDescendantsAbandonCascade(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	a, b, c := buildLinearHistory(t, r, backend)
	r.SetWcCommit("default", c.Hash)

	r.RecordAbandonedCommit(b.Hash)
	n, err := r.RebaseDescendants(ctx, RebaseSettings{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	entry, ok := r.RewriteMapEntry(c.Hash)
	require.True(t, ok)
	require.False(t, entry.Abandoned)

	newC, err := backend.ReadCommit(ctx, entry.NewId)
	require.NoError(t, err)
	require.Equal(t, c.ChangeId, newC.ChangeId)
	require.Contains(t, newC.Predecessors, c.Hash)
	require.Equal(t, []objecthash.Hash{a.Hash}, newC.Parents)

	require.Equal(t, entry.NewId, r.View().WcCommitIds["default"])
}

func TestTransactionCommitPublishesOperation(t *testing.T) {
	opStore, backend := newTestOpStoreAndBackend(t)
	ctx := context.Background()

	genesisView := view.Empty()
	genesisView.HeadIds = []objecthash.Hash{backend.RootCommitId()}
	viewId, err := opStore.WriteView(genesisView)
	require.NoError(t, err)
	genesisOp := &oplog.Operation{ViewId: viewId, Metadata: oplog.Metadata{Description: "genesis"}}
	genesisId, err := opStore.WriteOperation(genesisOp)
	require.NoError(t, err)
	_, err = opStore.Publish(ctx, genesisOp)
	require.NoError(t, err)

	tx, err := Open(ctx, opStore, backend, genesisId, "host", "user", func() int64 { return 1 })
	require.NoError(t, err)

	c, err := tx.Repo().WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{backend.RootCommitId()},
		RootTree:    backend.EmptyTreeId(),
		Description: "first change",
	})
	require.NoError(t, err)
	tx.Repo().SetLocalBookmarkTarget("main", view.NewRef(c.Hash))

	opId, err := tx.Commit(ctx, "add first change")
	require.NoError(t, err)

	heads, err := opStore.Heads()
	require.NoError(t, err)
	require.Equal(t, []objecthash.Hash{opId}, heads)

	committedOp, err := opStore.ReadOperation(opId)
	require.NoError(t, err)
	committedView, err := opStore.ReadView(committedOp.ViewId)
	require.NoError(t, err)

	resolved, ok := committedView.LocalBookmarks["main"].AsResolved()
	require.True(t, ok)
	require.True(t, resolved.Present)
	require.Equal(t, c.Hash, resolved.Id)
	require.Contains(t, committedView.HeadIds, c.Hash)
}

// stubSigner is a minimal sign.Backend for exercising MutableRepo's
// signing wiring without pulling OpenPGP key generation into this
// package's tests (sign/sign_test.go already covers the real backend).
type stubSigner struct{}

func (stubSigner) Name() string                   { return "stub" }
func (stubSigner) CanRead(data []byte) bool        { return len(data) > 0 }
func (stubSigner) Sign(ctx context.Context, data []byte, key string) ([]byte, error) {
	return append([]byte("signed:"), data...), nil
}
func (stubSigner) Verify(ctx context.Context, data, sig []byte) (sign.VerifyResult, error) {
	return sign.VerifyResult{Status: sign.Good}, nil
}

func TestWriteCommitSignsWhenSignerConfigured(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	user := object.Signature{Name: "a", Email: "a@example.com"}
	r.SetSigner(stubSigner{}, sign.PolicyForce, "", user)

	c, err := r.WriteCommit(ctx, CommitData{Parents: []objecthash.Hash{backend.RootCommitId()}, RootTree: backend.EmptyTreeId(), Description: "signed"})
	require.NoError(t, err)
	require.NotEmpty(t, c.SecureSig)
	require.Contains(t, string(c.SecureSig), "signed:")
}

func TestWriteCommitLeavesSignatureAloneWithoutSigner(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	c, err := r.WriteCommit(ctx, CommitData{Parents: []objecthash.Hash{backend.RootCommitId()}, RootTree: backend.EmptyTreeId(), Description: "unsigned"})
	require.NoError(t, err)
	require.Empty(t, c.SecureSig)
}

func TestRewriteCommitDropsSignatureByDefault(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	user := object.Signature{Name: "a", Email: "a@example.com"}
	r.SetSigner(stubSigner{}, sign.PolicyForce, "", user)

	orig, err := r.WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{backend.RootCommitId()},
		RootTree:    backend.EmptyTreeId(),
		Description: "v1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, orig.SecureSig)

	// Dropping the signer entirely: a rewrite of a signed commit must not
	// carry the old signature forward, since it was computed over content
	// the new commit no longer has.
	r.SetSigner(nil, sign.PolicyDrop, "", object.Signature{})
	rewritten, err := r.RewriteCommit(orig).SetDescription("v2").Write(ctx)
	require.NoError(t, err)
	require.Empty(t, rewritten.SecureSig)
}

func TestRewriteCommitWithForcePolicyResignsNewContent(t *testing.T) {
	backend := newTestBackend(t)
	r := emptyRootRepo(t, backend)
	ctx := context.Background()

	user := object.Signature{Name: "a", Email: "a@example.com"}
	r.SetSigner(stubSigner{}, sign.PolicyForce, "", user)

	orig, err := r.WriteCommit(ctx, CommitData{
		Parents:     []objecthash.Hash{backend.RootCommitId()},
		RootTree:    backend.EmptyTreeId(),
		Description: "v1",
	})
	require.NoError(t, err)

	rewritten, err := r.RewriteCommit(orig).SetDescription("v2").Write(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rewritten.SecureSig)
	require.NotEqual(t, orig.SecureSig, rewritten.SecureSig)
}

func TestBuildIndexCoversViewFrontier(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	v := view.Empty()
	v.HeadIds = []objecthash.Hash{backend.RootCommitId()}

	idx, err := BuildIndex(ctx, backend, v)
	require.NoError(t, err)
	require.True(t, idx.HasId(backend.RootCommitId()))
}
