package object

import (
	"context"
	"sort"

	"github.com/martinvonz/jjrepo/fileset"
)

// DiffEntry is one path where two trees disagree: old(Value) -> new(Value).
// Either side may be Absent (insertion/deletion).
type DiffEntry struct {
	Path fileset.RepoPath
	Old  TreeValue
	New  TreeValue
}

// DiffTrees walks old and new pointwise by path (spec §4.9: "Compute tree
// diff old_tree -> new_tree filtered by sparse patterns") and returns every
// path whose value differs, in path order. It recurses into subtrees
// present on either side, pruning whatever whole subtree matcher.Match
// reports NoMatch for rather than reducing the three-way
// Matched/Candidate/NoMatch result to a bool at the walk's boundary (the
// same discipline revset's treeHasMatch uses for the file() predicate).
// A nil matcher is treated as fileset.All.
func DiffTrees(ctx context.Context, b Backend, old, new_ *Tree, matcher fileset.Matcher) ([]DiffEntry, error) {
	if matcher == nil {
		matcher = fileset.All
	}
	var out []DiffEntry
	if err := diffWalk(ctx, b, "", old, new_, matcher, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func diffWalk(ctx context.Context, b Backend, prefix fileset.RepoPath, old, new_ *Tree, matcher fileset.Matcher, out *[]DiffEntry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	for _, name := range unionEntryNames(old, new_) {
		p := joinRepoPath(prefix, name)
		res := matcher.Match(p)
		if res == fileset.NoMatch {
			continue
		}
		ov := diffValueOf(old, name)
		nv := diffValueOf(new_, name)
		if ov.Equal(nv) {
			continue
		}
		if bothTreesOrAbsent(ov, nv) {
			oldSub, err := readDiffSubtree(ctx, b, ov)
			if err != nil {
				return err
			}
			newSub, err := readDiffSubtree(ctx, b, nv)
			if err != nil {
				return err
			}
			if err := diffWalk(ctx, b, p, oldSub, newSub, matcher, out); err != nil {
				return err
			}
			continue
		}
		if res != fileset.Matched {
			// A Candidate result on a non-tree leaf only says that paths
			// below it might match (e.g. a "**" glob reports Candidate
			// for every path it does not match); a leaf has nothing
			// below it, so it is left out of the diff.
			continue
		}
		*out = append(*out, DiffEntry{Path: p, Old: ov, New: nv})
	}
	return nil
}

func joinRepoPath(prefix fileset.RepoPath, name string) fileset.RepoPath {
	if prefix == "" {
		return fileset.RepoPath(name)
	}
	return fileset.RepoPath(string(prefix) + "/" + name)
}

func unionEntryNames(trees ...*Tree) []string {
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

func diffValueOf(t *Tree, name string) TreeValue {
	if t == nil {
		return Absent
	}
	e, ok := t.Lookup(name)
	if !ok {
		return Absent
	}
	return TreeValue{Present: true, Kind: e.Kind, Id: e.Id, Executable: e.Executable}
}

func bothTreesOrAbsent(vs ...TreeValue) bool {
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

func readDiffSubtree(ctx context.Context, b Backend, v TreeValue) (*Tree, error) {
	if !v.Present {
		return nil, nil
	}
	return b.ReadTree(ctx, v.Id)
}
