package workingcopy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/linemerge"
	"github.com/martinvonz/jjrepo/merge"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
)

// maxMaterializedTerms caps how many adds of a conflict get rendered as
// line-merge markers; only the first base/left/right triple is
// materialized as text, matching spec §4.9's "materialize only the
// first three terms, further terms are reported but not rendered".
const maxMaterializedTerms = 3

// CheckOut replaces the working copy's tracked files with commitTreeId's
// content by applying the tree diff between them, and updates the
// recorded TreeId and OperationId (spec §4.9's Checkout algorithm: "diff old_tree ->
// new_tree, for each changed path write/remove/chmod on disk"). It
// refuses to run if the workspace is stale relative to currentOpId.
func (wc *WorkingCopy) CheckOut(ctx context.Context, currentOpId, newOpId, commitTreeId objecthash.Hash) error {
	if err := wc.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = wc.lock.Unlock() }()

	if !wc.State.OperationId.IsZero() && wc.State.OperationId != currentOpId {
		return &ErrStaleWorkingCopy{Recorded: wc.State.OperationId, Current: currentOpId}
	}

	diffs, err := wc.diffTrees(ctx, wc.Backend, wc.State.TreeId, commitTreeId)
	if err != nil {
		return err
	}
	for _, d := range diffs {
		if err := wc.applyDiffEntry(ctx, d); err != nil {
			return fmt.Errorf("workingcopy: checking out %s: %w", d.Path, err)
		}
	}

	wc.State.TreeId = commitTreeId
	wc.State.OperationId = newOpId
	return nil
}

// CheckOutCommit resolves commit's root to a tree and calls CheckOut
// (spec §4.9 names both "reset(commit)" and "check_out(commit)" for this
// same tree-replacement algorithm; Go callers reach it through whichever
// name fits the call site, both resolving down to CheckOut). A
// conflicted root (RootIsConflict) is resolved by simplifying its Merge
// Algebra value; if it doesn't collapse to a single present tree, the
// commit cannot be checked out and ErrConflictedRoot is returned — the
// caller must resolve the root conflict first.
func (wc *WorkingCopy) CheckOutCommit(ctx context.Context, currentOpId, newOpId objecthash.Hash, commit *object.Commit) error {
	treeId, err := wc.resolveCheckoutRoot(ctx, commit)
	if err != nil {
		return err
	}
	return wc.CheckOut(ctx, currentOpId, newOpId, treeId)
}

// ErrConflictedRoot is returned by CheckOutCommit when commit's root
// conflict does not simplify to a single tree.
type ErrConflictedRoot struct {
	Commit objecthash.Hash
}

func (e *ErrConflictedRoot) Error() string {
	return fmt.Sprintf("workingcopy: commit %s has a conflicted root that cannot be checked out directly", e.Commit)
}

func (wc *WorkingCopy) resolveCheckoutRoot(ctx context.Context, commit *object.Commit) (objecthash.Hash, error) {
	if !commit.RootIsConflict {
		return commit.RootTree, nil
	}
	conflict, err := wc.Backend.ReadConflict(ctx, commit.RootTree)
	if err != nil {
		return objecthash.Zero, err
	}
	m := merge.Simplify(conflict.ToMerge(), object.TreeValue.Equal)
	resolved, ok := merge.Resolve(m, object.TreeValue.Equal)
	if !ok || resolved.Kind != object.TreeEntryKind {
		return objecthash.Zero, &ErrConflictedRoot{Commit: commit.Hash}
	}
	return resolved.Id, nil
}

// applyDiffEntry materializes a single changed path onto disk, updating
// wc.State.FileStates to match.
func (wc *WorkingCopy) applyDiffEntry(ctx context.Context, d object.DiffEntry) error {
	full := wc.abs(d.Path)

	if !d.New.Present {
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return err
		}
		removeEmptyParents(filepath.Dir(full), wc.Root)
		delete(wc.State.FileStates, d.Path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	switch d.New.Kind {
	case object.FileEntry:
		content, err := wc.Backend.ReadFile(ctx, d.New.Id)
		if err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if d.New.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(full, content, mode); err != nil {
			return err
		}
		fi, err := os.Stat(full)
		if err != nil {
			return err
		}
		kind := Normal
		if d.New.Executable {
			kind = Executable
		}
		wc.State.FileStates[d.Path] = FileState{Type: kind, Size: fi.Size(), Mtime: fi.ModTime(), Id: d.New.Id}
		return nil

	case object.SymlinkEntry:
		target, err := wc.Backend.ReadSymlink(ctx, d.New.Id)
		if err != nil {
			return err
		}
		_ = os.Remove(full)
		if err := writeSymlinkOrFallback(full, target); err != nil {
			return err
		}
		fi, err := os.Lstat(full)
		if err != nil {
			return err
		}
		wc.State.FileStates[d.Path] = FileState{Type: Symlink, Size: fi.Size(), Mtime: fi.ModTime(), Id: d.New.Id}
		return nil

	case object.ConflictEntry:
		return wc.materializeConflict(ctx, d.Path, full, d.New.Id)

	case object.GitSubmoduleEntry:
		// Submodules are recorded but not materialized onto disk (spec
		// §1 Non-goals: Git submodule checkout is out of scope beyond
		// recording the gitlink).
		wc.State.FileStates[d.Path] = FileState{Type: GitSubmodule, Id: d.New.Id}
		return nil

	default:
		return fmt.Errorf("workingcopy: unexpected entry kind %v at %s", d.New.Kind, d.Path)
	}
}

// materializeConflict renders a structural Conflict object as a
// marker-delimited text file (spec §4.9, §4.3's line-level conflict
// rendering), falling back to the first side's content verbatim when
// the conflict's terms aren't all plain-text files (spec §4.9: "only
// text-file conflicts are rendered with markers; others pick a side and
// report the conflict separately").
func (wc *WorkingCopy) materializeConflict(ctx context.Context, p fileset.RepoPath, full string, id objecthash.Hash) error {
	c, err := wc.Backend.ReadConflict(ctx, id)
	if err != nil {
		return err
	}
	m := c.ToMerge()
	m = merge.Simplify(m, object.TreeValue.Equal)

	texts, ok, err := wc.conflictTermsAsText(ctx, m)
	if !ok || err != nil {
		if err != nil {
			return err
		}
		return wc.materializeConflictFallback(ctx, p, full, m, id)
	}

	base := ""
	a := texts[0]
	bside := texts[0]
	if len(texts) > 1 {
		bside = texts[1]
	}
	if len(texts) > 2 {
		base = texts[1]
		bside = texts[2]
	}
	content, _, _ := linemerge.Merge(base, a, bside, linemerge.Options{})
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return err
	}
	fi, err := os.Stat(full)
	if err != nil {
		return err
	}
	wc.State.FileStates[p] = FileState{
		Type: ConflictFile, Size: fi.Size(), Mtime: fi.ModTime(), Id: id,
		MaterializedConflict: []byte(content),
	}
	return nil
}

// conflictTermsAsText reads up to maxMaterializedTerms present terms of
// m as file content, reporting ok=false if any of them is not a plain
// file (a tree or symlink conflict can't be rendered as line-merge
// markers).
func (wc *WorkingCopy) conflictTermsAsText(ctx context.Context, m merge.Merge[object.TreeValue]) ([]string, bool, error) {
	var terms []object.TreeValue
	terms = append(terms, m.Adds()...)
	if len(terms) > maxMaterializedTerms {
		terms = terms[:maxMaterializedTerms]
	}
	texts := make([]string, 0, len(terms))
	for _, v := range terms {
		if !v.Present {
			texts = append(texts, "")
			continue
		}
		if v.Kind != object.FileEntry {
			return nil, false, nil
		}
		content, err := wc.Backend.ReadFile(ctx, v.Id)
		if err != nil {
			return nil, false, err
		}
		texts = append(texts, string(content))
	}
	return texts, true, nil
}

// materializeConflictFallback writes the first present add verbatim
// (file, symlink target as text, or a placeholder for a tree conflict),
// recording the conflict id so status/resolve tooling still reports it.
func (wc *WorkingCopy) materializeConflictFallback(ctx context.Context, p fileset.RepoPath, full string, m merge.Merge[object.TreeValue], id objecthash.Hash) error {
	var content string
	for _, v := range m.Adds() {
		if !v.Present {
			continue
		}
		switch v.Kind {
		case object.FileEntry:
			b, err := wc.Backend.ReadFile(ctx, v.Id)
			if err != nil {
				return err
			}
			content = string(b)
		case object.SymlinkEntry:
			target, err := wc.Backend.ReadSymlink(ctx, v.Id)
			if err != nil {
				return err
			}
			content = target
		default:
			content = fmt.Sprintf("<conflict %s: unresolved non-file content>\n", id)
		}
		break
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return err
	}
	fi, err := os.Stat(full)
	if err != nil {
		return err
	}
	wc.State.FileStates[p] = FileState{
		Type: ConflictFile, Size: fi.Size(), Mtime: fi.ModTime(), Id: id,
		MaterializedConflict: []byte(content),
	}
	return nil
}

func (wc *WorkingCopy) abs(p fileset.RepoPath) string {
	return filepath.Join(wc.Root, filepath.FromSlash(string(p)))
}

// removeEmptyParents removes dir and its ancestors, up to but excluding
// root, as long as each is left empty by a file removal — matching
// spec §4.9's expectation that checkout never leaves directories behind
// for paths it deleted.
func removeEmptyParents(dir, root string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || len(dir) <= len(root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
