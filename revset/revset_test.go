package revset_test

import (
	"context"
	"testing"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/repo"
	"github.com/martinvonz/jjrepo/revset"
	"github.com/martinvonz/jjrepo/store"
	"github.com/martinvonz/jjrepo/view"
	"github.com/stretchr/testify/require"
)

// buildHistory writes root -> a -> b -> {c, d} (b has two children,
// making c and d siblings) and returns their commits plus the backend.
func buildHistory(t *testing.T) (backend store.Backend, a, b, c, d *object.Commit) {
	t.Helper()
	ctx := context.Background()
	n, err := store.NewNative(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	write := func(parents []objecthash.Hash, desc string, changeId byte) *object.Commit {
		var cid objecthash.Hash
		cid[0] = changeId
		c := &object.Commit{ChangeId: cid, Parents: parents, RootTree: n.EmptyTreeId(), Description: desc}
		id, err := n.WriteCommit(ctx, c)
		require.NoError(t, err)
		got, err := n.ReadCommit(ctx, id)
		require.NoError(t, err)
		return got
	}

	a = write([]objecthash.Hash{n.RootCommitId()}, "a", 1)
	b = write([]objecthash.Hash{a.Hash}, "b", 2)
	c = write([]objecthash.Hash{b.Hash}, "c: fix bug", 3)
	d = write([]objecthash.Hash{b.Hash}, "d", 4)
	return n, a, b, c, d
}

func testView(backend store.Backend, head objecthash.Hash, bookmarks map[string]objecthash.Hash) *view.View {
	v := view.Empty()
	v.HeadIds = []objecthash.Hash{head}
	for name, id := range bookmarks {
		v.LocalBookmarks[name] = view.NewRef(id)
	}
	v.WcCommitIds["default"] = head
	return v
}

func evalSrc(t *testing.T, backend store.Backend, v *view.View, src string) []objecthash.Hash {
	t.Helper()
	ctx := context.Background()
	idx, err := repo.BuildIndex(ctx, backend, v)
	require.NoError(t, err)
	ids, err := revset.Eval(ctx, v, idx, backend, backend.RootCommitId(), "default", nil, src)
	require.NoError(t, err)
	return ids
}

func TestEvalBareBookmark(t *testing.T) {
	backend, a, _, _, d := buildHistory(t)
	v := testView(backend, d.Hash, map[string]objecthash.Hash{"main": a.Hash})

	ids := evalSrc(t, backend, v, "main")
	require.Equal(t, []objecthash.Hash{a.Hash}, ids)
}

func TestEvalAncestorsOrderedChildrenFirst(t *testing.T) {
	backend, a, b, c, _ := buildHistory(t)
	v := testView(backend, c.Hash, nil)

	ids := evalSrc(t, backend, v, "ancestors(@)")
	require.Equal(t, []objecthash.Hash{c.Hash, b.Hash, a.Hash, backend.RootCommitId()}, ids)
}

func TestEvalDagRangeBoundedBothSides(t *testing.T) {
	backend, a, b, c, _ := buildHistory(t)
	v := testView(backend, c.Hash, map[string]objecthash.Hash{"a": a.Hash, "c": c.Hash})

	ids := evalSrc(t, backend, v, "a::c")
	require.ElementsMatch(t, []objecthash.Hash{a.Hash, b.Hash, c.Hash}, ids)
}

func TestEvalRangeExcludesFrom(t *testing.T) {
	backend, a, b, c, _ := buildHistory(t)
	v := testView(backend, c.Hash, map[string]objecthash.Hash{"a": a.Hash, "c": c.Hash})

	ids := evalSrc(t, backend, v, "a..c")
	require.ElementsMatch(t, []objecthash.Hash{b.Hash, c.Hash}, ids)
	require.NotContains(t, ids, a.Hash)
}

func TestEvalHeadsOfTwoSiblings(t *testing.T) {
	backend, _, b, c, d := buildHistory(t)
	v := testView(backend, c.Hash, nil)
	v.HeadIds = []objecthash.Hash{c.Hash, d.Hash}

	ids := evalSrc(t, backend, v, "heads(::"+c.Hash.String()+" | ::"+d.Hash.String()+")")
	_ = b
	require.ElementsMatch(t, []objecthash.Hash{c.Hash, d.Hash}, ids)
}

func TestEvalDescriptionFilter(t *testing.T) {
	backend, _, _, c, d := buildHistory(t)
	v := testView(backend, c.Hash, nil)
	v.HeadIds = []objecthash.Hash{c.Hash, d.Hash}

	ids := evalSrc(t, backend, v, "description(\"fix\")")
	require.Equal(t, []objecthash.Hash{c.Hash}, ids)
}

func TestEvalIntersectionOfAncestorSets(t *testing.T) {
	backend, a, b, c, d := buildHistory(t)
	v := testView(backend, c.Hash, nil)
	v.HeadIds = []objecthash.Hash{c.Hash, d.Hash}

	ids := evalSrc(t, backend, v, "ancestors("+c.Hash.String()+") & ancestors("+d.Hash.String()+")")
	require.ElementsMatch(t, []objecthash.Hash{b.Hash, a.Hash, backend.RootCommitId()}, ids)
}

func TestResolveUnknownBookmarkErrors(t *testing.T) {
	backend, _, _, c, _ := buildHistory(t)
	v := testView(backend, c.Hash, nil)

	_, err := evalSrcErr(t, backend, v, "no-such-bookmark")
	require.Error(t, err)
	var resErr *revset.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func evalSrcErr(t *testing.T, backend store.Backend, v *view.View, src string) ([]objecthash.Hash, error) {
	t.Helper()
	ctx := context.Background()
	idx, err := repo.BuildIndex(ctx, backend, v)
	require.NoError(t, err)
	return revset.Eval(ctx, v, idx, backend, backend.RootCommitId(), "default", nil, src)
}

func TestParseErrorOnUnmatchedParen(t *testing.T) {
	_, err := revset.Parse("(a & b")
	require.Error(t, err)
	var parseErr *revset.ParseError
	require.ErrorAs(t, err, &parseErr)
}
