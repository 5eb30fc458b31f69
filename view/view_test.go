package view

import (
	"sort"
	"testing"

	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/stretchr/testify/require"
)

func h(s string) objecthash.Hash { return objecthash.Of([]byte(s)) }

func headsOf(ids []objecthash.Hash) []objecthash.Hash {
	seen := map[objecthash.Hash]struct{}{}
	var out []objecthash.Hash
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return objecthash.Less(out[i], out[j]) })
	return out
}

func TestRefTargetMergeNoConflictWhenOneSideUnchanged(t *testing.T) {
	base := NewRef(h("O0"))
	a := NewRef(h("X"))
	b := base

	merged := Merge3(a, b, base)
	resolved, ok := merged.AsResolved()
	require.True(t, ok)
	require.True(t, resolved.Present)
	require.Equal(t, h("X"), resolved.Id)
}

func TestRefTargetMergeConflictWhenBothChange(t *testing.T) {
	base := NewRef(h("O0"))
	a := NewRef(h("X"))
	b := NewRef(h("Y"))

	merged := Merge3(a, b, base)
	require.True(t, merged.IsConflicted())
	require.ElementsMatch(t, []objecthash.Hash{h("X"), h("Y")}, merged.Adds())
	require.ElementsMatch(t, []objecthash.Hash{h("O0")}, merged.Removes())
}

func TestRefTargetMergeConflictFromAbsentBase(t *testing.T) {
	base := AbsentRef
	a := NewRef(h("X"))
	b := NewRef(h("Y"))

	merged := Merge3(a, b, base)
	require.True(t, merged.IsConflicted())
	require.ElementsMatch(t, []objecthash.Hash{h("X"), h("Y")}, merged.Adds())
	require.Empty(t, merged.Removes())
}

func TestViewMergeIndependentBookmarks(t *testing.T) {
	base := Empty()
	base.HeadIds = []objecthash.Hash{h("O0")}

	a := base.Clone()
	a.LocalBookmarks["a"] = NewRef(h("X"))
	a.HeadIds = []objecthash.Hash{h("X")}

	b := base.Clone()
	b.LocalBookmarks["b"] = NewRef(h("Y"))
	b.HeadIds = []objecthash.Hash{h("Y")}

	merged := Merge(a, b, base, headsOf)
	xa, ok := merged.LocalBookmarks["a"].AsResolved()
	require.True(t, ok)
	require.Equal(t, h("X"), xa.Id)
	yb, ok := merged.LocalBookmarks["b"].AsResolved()
	require.True(t, ok)
	require.Equal(t, h("Y"), yb.Id)
	require.ElementsMatch(t, []objecthash.Hash{h("X"), h("Y")}, merged.HeadIds)
}

func TestViewMergeConflictingBookmark(t *testing.T) {
	base := Empty()
	base.LocalBookmarks["m"] = NewRef(h("O0"))

	a := base.Clone()
	a.LocalBookmarks["m"] = NewRef(h("X"))

	b := base.Clone()
	b.LocalBookmarks["m"] = NewRef(h("Y"))

	merged := Merge(a, b, base, headsOf)
	require.True(t, merged.LocalBookmarks["m"].IsConflicted())
}

func TestViewMergeWcCommitIdTakesTheSideThatMoved(t *testing.T) {
	base := Empty()
	base.WcCommitIds["default"] = h("O0")

	a := base.Clone()
	a.WcCommitIds["default"] = h("X")

	b := base.Clone() // unchanged from base

	merged := Merge(a, b, base, headsOf)
	require.Equal(t, h("X"), merged.WcCommitIds["default"])
}

func TestViewMergeWcCommitIdDivergedFallsBackToSideA(t *testing.T) {
	base := Empty()
	base.WcCommitIds["default"] = h("O0")

	a := base.Clone()
	a.WcCommitIds["default"] = h("X")

	b := base.Clone()
	b.WcCommitIds["default"] = h("Y")

	merged := Merge(a, b, base, headsOf)
	require.Equal(t, h("X"), merged.WcCommitIds["default"])
}
