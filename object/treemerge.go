package object

import (
	"context"
	"sort"

	"github.com/martinvonz/jjrepo/merge"
)

// TreeMergeResult is the outcome of a recursive, pointwise three-way tree
// merge (spec §4.2: "merge(a, b, base) on trees = pointwise over paths,
// using recursive merge on entries"). Root is the merged tree's entries,
// ready to pass to NewTree; NewTrees and NewConflicts are every object the
// merge produced along the way (including nested subtrees), which the
// caller must persist (store.WriteTree / store.WriteConflict) bottom-up
// before relying on Root's entry ids to resolve.
type TreeMergeResult struct {
	Root        []TreeEntry
	NewTrees    []*Tree
	NewConflicts []*Conflict
}

func entryToValue(e TreeEntry, ok bool) TreeValue {
	if !ok {
		return Absent
	}
	return TreeValue{Present: true, Kind: e.Kind, Id: e.Id, Executable: e.Executable}
}

func valueToEntry(name string, v TreeValue) TreeEntry {
	return TreeEntry{Name: name, Kind: v.Kind, Id: v.Id, Executable: v.Executable}
}

// MergeTrees merges a and bb against common ancestor base, recursing into
// subtrees that both sides modified and producing a Conflict object only
// where the disagreement cannot be resolved by recursion (different
// entry kinds, or a file modified irreconcilably — text-level resolution
// of file conflicts is the caller's concern via linemerge, not this
// structural merge). Any of a, bb, base may be nil, standing for an empty
// tree.
func MergeTrees(ctx context.Context, b Backend, a, bb, base *Tree) (*TreeMergeResult, error) {
	result := &TreeMergeResult{}
	names := unionNames(a, bb, base)
	for _, name := range names {
		av, aok := lookupSafe(a, name)
		bv, bok := lookupSafe(bb, name)
		cv, cok := lookupSafe(base, name)
		merged, err := mergeOneEntry(ctx, b, name, entryToValue(av, aok), entryToValue(bv, bok), entryToValue(cv, cok), result)
		if err != nil {
			return nil, err
		}
		if merged.Present {
			result.Root = append(result.Root, valueToEntry(name, merged))
		}
	}
	sort.Slice(result.Root, func(i, j int) bool { return result.Root[i].Name < result.Root[j].Name })
	return result, nil
}

func lookupSafe(t *Tree, name string) (TreeEntry, bool) {
	if t == nil {
		return TreeEntry{}, false
	}
	return t.Lookup(name)
}

func unionNames(trees ...*Tree) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, t := range trees {
		if t == nil {
			continue
		}
		for _, e := range t.Entries {
			if _, ok := seen[e.Name]; !ok {
				seen[e.Name] = struct{}{}
				names = append(names, e.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// mergeOneEntry resolves the three-way merge at a single path. When the
// algebra doesn't resolve and every present side is a subtree, it recurses;
// otherwise it materializes a Conflict object and returns a TreeValue that
// points at it via a synthetic ConflictEntry.
func mergeOneEntry(ctx context.Context, b Backend, name string, av, bv, cv TreeValue, acc *TreeMergeResult) (TreeValue, error) {
	m := merge.Merge3Values(av, bv, cv, TreeValue.Equal)
	if resolved, ok := merge.Resolve(m, TreeValue.Equal); ok {
		return resolved, nil
	}

	if allTreesOrAbsent(av, bv, cv) {
		aSub, err := resolveSubtree(ctx, b, av)
		if err != nil {
			return TreeValue{}, err
		}
		bSub, err := resolveSubtree(ctx, b, bv)
		if err != nil {
			return TreeValue{}, err
		}
		cSub, err := resolveSubtree(ctx, b, cv)
		if err != nil {
			return TreeValue{}, err
		}
		sub, err := MergeTrees(ctx, b, aSub, bSub, cSub)
		if err != nil {
			return TreeValue{}, err
		}
		acc.NewTrees = append(acc.NewTrees, sub.NewTrees...)
		acc.NewConflicts = append(acc.NewConflicts, sub.NewConflicts...)
		if len(sub.Root) == 0 {
			return Absent, nil
		}
		subTree := NewTree(sub.Root)
		subTree.Hash = Hash(subTree)
		acc.NewTrees = append(acc.NewTrees, subTree)
		return TreeValue{Present: true, Kind: TreeEntryKind, Id: subTree.Hash}, nil
	}

	conflict := FromMerge(m)
	conflict.Hash = Hash(conflict)
	acc.NewConflicts = append(acc.NewConflicts, conflict)
	return TreeValue{Present: true, Kind: ConflictEntry, Id: conflict.Hash}, nil
}

func allTreesOrAbsent(vs ...TreeValue) bool {
	anyPresent := false
	for _, v := range vs {
		if !v.Present {
			continue
		}
		anyPresent = true
		if v.Kind != TreeEntryKind {
			return false
		}
	}
	return anyPresent
}

func resolveSubtree(ctx context.Context, b Backend, v TreeValue) (*Tree, error) {
	if !v.Present {
		return nil, nil
	}
	return b.ReadTree(ctx, v.Id)
}

