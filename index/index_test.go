package index

import (
	"context"
	"testing"

	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/stretchr/testify/require"
)

// fakeGraph is a hand-built commit DAG for exercising the index without
// an object store:
//
//	root -> a -> b -> d
//	          \-> c -/
type fakeGraph struct {
	parents map[objecthash.Hash][]objecthash.Hash
	changes map[objecthash.Hash]objecthash.Hash
}

func (g *fakeGraph) Parents(ctx context.Context, id objecthash.Hash) ([]objecthash.Hash, error) {
	return g.parents[id], nil
}
func (g *fakeGraph) ChangeId(ctx context.Context, id objecthash.Hash) (objecthash.Hash, error) {
	return g.changes[id], nil
}

func id(s string) objecthash.Hash { return objecthash.Of([]byte(s)) }

func buildFakeGraph() (*fakeGraph, map[string]objecthash.Hash) {
	ids := map[string]objecthash.Hash{
		"root": id("root"),
		"a":    id("a"),
		"b":    id("b"),
		"c":    id("c"),
		"d":    id("d"),
	}
	g := &fakeGraph{parents: map[objecthash.Hash][]objecthash.Hash{}, changes: map[objecthash.Hash]objecthash.Hash{}}
	g.parents[ids["root"]] = nil
	g.parents[ids["a"]] = []objecthash.Hash{ids["root"]}
	g.parents[ids["b"]] = []objecthash.Hash{ids["a"]}
	g.parents[ids["c"]] = []objecthash.Hash{ids["a"]}
	g.parents[ids["d"]] = []objecthash.Hash{ids["b"], ids["c"]}
	for name, h := range ids {
		g.changes[h] = id("change-" + name)
	}
	return g, ids
}

func TestBuildAndHasId(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	for _, name := range []string{"root", "a", "b", "c", "d"} {
		require.True(t, idx.HasId(ids[name]), name)
	}
	require.False(t, idx.HasId(id("nonexistent")))
}

func TestGenerationNumbers(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	genRoot, _ := idx.Generation(ids["root"])
	genA, _ := idx.Generation(ids["a"])
	genB, _ := idx.Generation(ids["b"])
	genD, _ := idx.Generation(ids["d"])
	require.Equal(t, uint32(0), genRoot)
	require.Equal(t, uint32(1), genA)
	require.Equal(t, uint32(2), genB)
	require.Equal(t, uint32(3), genD)
}

func TestIsAncestor(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	require.True(t, idx.IsAncestor(ids["root"], ids["d"]))
	require.True(t, idx.IsAncestor(ids["a"], ids["b"]))
	require.True(t, idx.IsAncestor(ids["b"], ids["d"]))
	require.True(t, idx.IsAncestor(ids["c"], ids["d"]))
	require.False(t, idx.IsAncestor(ids["b"], ids["c"]))
	require.False(t, idx.IsAncestor(ids["d"], ids["root"]))
	require.True(t, idx.IsAncestor(ids["d"], ids["d"]))
}

func TestCommonAncestors(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	ca := idx.CommonAncestors([]objecthash.Hash{ids["b"]}, []objecthash.Hash{ids["c"]})
	require.Equal(t, []objecthash.Hash{ids["a"]}, ca)
}

func TestHeads(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	h := idx.Heads([]objecthash.Hash{ids["a"], ids["b"], ids["c"], ids["d"]})
	require.ElementsMatch(t, []objecthash.Hash{ids["d"]}, h)
}

func TestResolvePrefix(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	full := ids["a"].String()
	res, resolved := idx.ResolvePrefix(full[:8])
	require.Equal(t, SingleMatch, res)
	require.Equal(t, ids["a"], resolved)

	res, _ = idx.ResolvePrefix("ff")
	if res == AmbiguousMatch {
		t.Skip("prefix 'ff' happened to be ambiguous across generated hashes")
	}
}

func TestShortestUniquePrefixLen(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	n := idx.ShortestUniquePrefixLen(ids["a"])
	require.Greater(t, n, 0)
	require.LessOrEqual(t, n, objecthash.HexSize)
	full := ids["a"].String()
	res, resolved := idx.ResolvePrefix(full[:n])
	require.Equal(t, SingleMatch, res)
	require.Equal(t, ids["a"], resolved)
}

func TestEvaluateParentsFirst(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	order := idx.Evaluate([]objecthash.Hash{ids["d"]}, nil)
	pos := map[objecthash.Hash]int{}
	for i, id := range order {
		pos[id] = i
	}
	require.Less(t, pos[ids["root"]], pos[ids["a"]])
	require.Less(t, pos[ids["a"]], pos[ids["b"]])
	require.Less(t, pos[ids["a"]], pos[ids["c"]])
	require.Less(t, pos[ids["b"]], pos[ids["d"]])
	require.Less(t, pos[ids["c"]], pos[ids["d"]])
}

func TestEvaluateExcludesUnwanted(t *testing.T) {
	g, ids := buildFakeGraph()
	idx, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)

	order := idx.Evaluate([]objecthash.Hash{ids["d"]}, []objecthash.Hash{ids["a"]})
	for _, id := range order {
		require.NotEqual(t, ids["root"], id)
		require.NotEqual(t, ids["a"], id)
	}
	require.Contains(t, order, ids["b"])
	require.Contains(t, order, ids["d"])
}

func TestBuildIncrementalOnlyAddsNewSegment(t *testing.T) {
	g, ids := buildFakeGraph()
	base, err := Build(context.Background(), g, nil, []objecthash.Hash{ids["b"]})
	require.NoError(t, err)
	require.Len(t, base.segments, 1)

	full, err := Build(context.Background(), g, base, []objecthash.Hash{ids["d"]})
	require.NoError(t, err)
	require.Len(t, full.segments, 2)
	require.True(t, full.HasId(ids["d"]))
	require.True(t, full.HasId(ids["b"]))
}
