package workingcopy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/linemerge"
	"github.com/martinvonz/jjrepo/merge"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
)

// defaultMaxNewFileSize bounds Snapshot's rehashing of a changed file
// (spec §4.9: "if changed and size <= max_new_file_size, hash content
// into a new FileId; else report FileTooLarge"). Chosen as a
// conservative default a caller can always override via
// SnapshotOptions.MaxNewFileSize.
const defaultMaxNewFileSize = 1 << 30 // 1 GiB

// SnapshotOptions configures Snapshot (spec §4.9).
type SnapshotOptions struct {
	// MaxNewFileSize caps how large a changed file may be before its
	// content is rehashed into the snapshot; 0 means
	// defaultMaxNewFileSize.
	MaxNewFileSize int64
	// AutoTrackPattern decides which untracked files Snapshot picks up
	// automatically (spec §4.9's auto_track_pattern, "default all()");
	// nil means fileset.All.
	AutoTrackPattern fileset.Matcher
}

// SnapshotStats reports what Snapshot did, for callers (status, commands)
// to surface to the user.
type SnapshotStats struct {
	Added, Modified, Deleted int
	TooLarge                 []fileset.RepoPath
	Untracked                []fileset.RepoPath
}

// Snapshot walks the working copy and records it as a new tree (spec
// §4.9's Snapshot algorithm): unchanged paths reuse their recorded
// FileId, changed ones are rehashed (or reported FileTooLarge and
// excluded), conflict files are re-parsed back into structural
// conflicts, and untracked new files are included only when
// opts.AutoTrackPattern matches them. Snapshot is idempotent: calling it
// twice with no filesystem change between calls returns the same tree
// id (spec §8).
func (wc *WorkingCopy) Snapshot(ctx context.Context, opts SnapshotOptions) (objecthash.Hash, SnapshotStats, error) {
	b := wc.Backend
	if opts.MaxNewFileSize <= 0 {
		opts.MaxNewFileSize = defaultMaxNewFileSize
	}
	if opts.AutoTrackPattern == nil {
		opts.AutoTrackPattern = fileset.All
	}
	sparse, err := wc.SparseMatcher()
	if err != nil {
		return objecthash.Zero, SnapshotStats{}, err
	}

	var stats SnapshotStats
	newStates := map[fileset.RepoPath]FileState{}
	var leaves []leafEntry

	walker := &snapshotWalker{
		wc:      wc,
		b:       b,
		sparse:  sparse,
		opts:    opts,
		stats:   &stats,
		states:  newStates,
		ignores: newIgnoreStack(),
	}
	if err := walker.ignores.push(wc.Root, ""); err != nil {
		return objecthash.Zero, SnapshotStats{}, err
	}
	if err := walker.walk(ctx, wc.Root, "", &leaves); err != nil {
		return objecthash.Zero, SnapshotStats{}, err
	}

	treeId, err := buildTree(ctx, b, leaves)
	if err != nil {
		return objecthash.Zero, SnapshotStats{}, err
	}

	for p := range wc.State.FileStates {
		if _, ok := newStates[p]; !ok {
			stats.Deleted++
		}
	}

	wc.State.FileStates = newStates
	wc.State.TreeId = treeId
	sort.Slice(stats.TooLarge, func(i, j int) bool { return stats.TooLarge[i] < stats.TooLarge[j] })
	sort.Slice(stats.Untracked, func(i, j int) bool { return stats.Untracked[i] < stats.Untracked[j] })
	return treeId, stats, nil
}

type snapshotWalker struct {
	wc      *WorkingCopy
	b       store.Backend
	sparse  fileset.Matcher
	opts    SnapshotOptions
	stats   *SnapshotStats
	states  map[fileset.RepoPath]FileState
	ignores *ignoreStack
}

// walk recurses dir (an absolute OS path) whose repo-relative path is
// repoDir, appending every tracked path's (path, TreeValue) to leaves.
func (w *snapshotWalker) walk(ctx context.Context, dir string, repoDir fileset.RepoPath, leaves *[]leafEntry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("workingcopy: reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if repoDir == "" && name == ".jj" {
			continue
		}
		p := joinRepoPath(repoDir, name)
		res := w.sparse.Match(p)
		if res == fileset.NoMatch {
			continue
		}
		full := filepath.Join(dir, name)
		if entry.IsDir() {
			if err := w.ignores.push(full, p); err != nil {
				return err
			}
			if err := w.walk(ctx, full, p, leaves); err != nil {
				return err
			}
			w.ignores.pop()
			continue
		}
		if res != fileset.Matched {
			continue
		}
		if w.ignores.ignored(p) {
			if _, tracked := w.wc.State.FileStates[p]; !tracked {
				continue
			}
		}
		value, state, err := w.visitFile(ctx, full, p)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		*leaves = append(*leaves, leafEntry{path: p, value: *value})
		w.states[p] = *state
	}
	return nil
}

func joinRepoPath(prefix fileset.RepoPath, name string) fileset.RepoPath {
	if prefix == "" {
		return fileset.RepoPath(name)
	}
	return fileset.RepoPath(string(prefix) + "/" + name)
}

// visitFile decides whether p belongs in the new snapshot tree, per
// spec §4.9's per-path decision tree, returning nil (and no error) for
// an excluded path (too large, or untracked-and-not-auto-tracked).
func (w *snapshotWalker) visitFile(ctx context.Context, full string, p fileset.RepoPath) (*object.TreeValue, *FileState, error) {
	fi, err := os.Lstat(full)
	if err != nil {
		return nil, nil, fmt.Errorf("workingcopy: lstat %s: %w", full, err)
	}

	kind := Normal
	executable := false
	isSymlink := fi.Mode()&os.ModeSymlink != 0
	if isSymlink {
		kind = Symlink
	} else if fi.Mode()&0o111 != 0 {
		kind = Executable
		executable = true
	}

	prior, tracked := w.wc.State.FileStates[p]
	if tracked && prior.unchanged(fi.Size(), fi.ModTime(), kind) {
		return &object.TreeValue{
			Present:    true,
			Kind:       fileStateKindToEntryKind(prior.Type),
			Id:         prior.Id,
			Executable: executable,
		}, &prior, nil
	}

	if !tracked && w.opts.AutoTrackPattern.Match(p) != fileset.Matched {
		w.stats.Untracked = append(w.stats.Untracked, p)
		return nil, nil, nil
	}

	if isSymlink {
		target, err := os.Readlink(full)
		if err != nil {
			return nil, nil, err
		}
		id, err := w.b.WriteSymlink(ctx, target)
		if err != nil {
			return nil, nil, err
		}
		w.markTouched(tracked, p)
		return &object.TreeValue{Present: true, Kind: object.SymlinkEntry, Id: id},
			&FileState{Type: Symlink, Size: fi.Size(), Mtime: fi.ModTime(), Id: id}, nil
	}

	if fi.Size() > w.opts.MaxNewFileSize {
		w.stats.TooLarge = append(w.stats.TooLarge, p)
		return nil, nil, nil
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, nil, fmt.Errorf("workingcopy: reading %s: %w", full, err)
	}

	if tracked && prior.Type == ConflictFile {
		if sameMaterialization(prior.MaterializedConflict, content) {
			// Byte-identical to what was last materialized: keep the
			// recorded ConflictId rather than paying to re-derive it.
			w.markTouched(tracked, p)
			return &object.TreeValue{Present: true, Kind: object.ConflictEntry, Id: prior.Id},
				&FileState{Type: ConflictFile, Size: fi.Size(), Mtime: fi.ModTime(), Id: prior.Id, MaterializedConflict: prior.MaterializedConflict}, nil
		}
		// The file changed. Spec §4.9 always reparses a conflict file
		// back into a structural Conflict, falling back to a plain file
		// only when parsing actually fails -- so a partially-resolved
		// edit that still carries valid markers stays a conflict instead
		// of silently flattening into whichever side's text survived.
		if a, b, conflicted, perr := linemerge.ReassembleSides(string(content)); perr == nil && conflicted {
			newId, err := w.rebuildConflict(ctx, prior.Id, a, b)
			if err != nil {
				return nil, nil, err
			}
			w.markTouched(tracked, p)
			return &object.TreeValue{Present: true, Kind: object.ConflictEntry, Id: newId},
				&FileState{Type: ConflictFile, Size: fi.Size(), Mtime: fi.ModTime(), Id: newId, MaterializedConflict: content}, nil
		}
		// Parsing failed, or no markers remain: spec §4.9 treats this as
		// a normal modified file, resolving the conflict by the user's
		// edit.
	}

	id, err := w.b.WriteFile(ctx, content)
	if err != nil {
		return nil, nil, err
	}
	w.markTouched(tracked, p)
	return &object.TreeValue{Present: true, Kind: object.FileEntry, Id: id, Executable: executable},
		&FileState{Type: kind, Size: fi.Size(), Mtime: fi.ModTime(), Id: id}, nil
}

// rebuildConflict rebuilds the Conflict recorded at id with the user's
// edited a/b side texts, the same two "visible" terms
// materializeConflict rendered as marker text (its Adds[0] and the last
// of up to maxMaterializedTerms Adds). Every other term -- including any
// middle add reused only for diff3 alignment, and every Remove, i.e. the
// merge's base -- carries over unchanged, since the non-diff3 rendering
// never exposed it for the user to edit.
func (w *snapshotWalker) rebuildConflict(ctx context.Context, id objecthash.Hash, a, b string) (objecthash.Hash, error) {
	c, err := w.b.ReadConflict(ctx, id)
	if err != nil {
		return objecthash.Zero, err
	}
	m := c.ToMerge()
	adds := append([]object.TreeValue(nil), m.Adds()...)

	effLen := len(adds)
	if effLen > maxMaterializedTerms {
		effLen = maxMaterializedTerms
	}
	bIdx := 0
	if effLen > 1 {
		bIdx = 1
	}
	if effLen > 2 {
		bIdx = 2
	}

	if len(adds) > 0 && adds[0].Present && adds[0].Kind == object.FileEntry {
		aId, err := w.b.WriteFile(ctx, []byte(a))
		if err != nil {
			return objecthash.Zero, err
		}
		adds[0].Id = aId
	}
	if bIdx != 0 && bIdx < len(adds) && adds[bIdx].Present && adds[bIdx].Kind == object.FileEntry {
		bId, err := w.b.WriteFile(ctx, []byte(b))
		if err != nil {
			return objecthash.Zero, err
		}
		adds[bIdx].Id = bId
	}

	rebuilt := object.FromMerge(merge.New(adds, m.Removes()))
	return w.b.WriteConflict(ctx, rebuilt)
}

func (w *snapshotWalker) markTouched(tracked bool, p fileset.RepoPath) {
	if tracked {
		w.stats.Modified++
	} else {
		w.stats.Added++
	}
}

// sameMaterialization reports whether content is byte-identical to the
// text the recorded conflict id was last materialized as, so an
// untouched conflict file round-trips to the same ConflictId without
// re-deriving it from the reparsed hunks (which may not exactly match
// the original Merge's term ordering).
func sameMaterialization(recorded, content []byte) bool {
	return len(recorded) > 0 && string(recorded) == string(content)
}

func fileStateKindToEntryKind(k FileTypeKind) object.EntryKind {
	switch k {
	case Symlink:
		return object.SymlinkEntry
	case ConflictFile:
		return object.ConflictEntry
	case GitSubmodule:
		return object.GitSubmoduleEntry
	default:
		return object.FileEntry
	}
}

// leafEntry is one flat (path, value) pair Snapshot collects before
// buildTree groups them back into a nested Tree.
type leafEntry struct {
	path  fileset.RepoPath
	value object.TreeValue
}

// buildTree reassembles a flat set of leaf values into a nested Tree,
// writing every subtree bottom-up and omitting any subtree that would
// end up empty (spec invariant 3: "a tree stored in the object store
// contains no empty Tree subtrees").
func buildTree(ctx context.Context, b store.Backend, leaves []leafEntry) (objecthash.Hash, error) {
	root, err := buildSubtree(ctx, b, leaves)
	if err != nil {
		return objecthash.Zero, err
	}
	if root == nil {
		return b.EmptyTreeId(), nil
	}
	return b.WriteTree(ctx, root)
}

func buildSubtree(ctx context.Context, b store.Backend, leaves []leafEntry) (*object.Tree, error) {
	direct := map[string]object.TreeValue{}
	groups := map[string][]leafEntry{}
	var groupOrder []string
	for _, l := range leaves {
		comps := l.path.Components()
		if len(comps) == 0 {
			continue
		}
		if len(comps) == 1 {
			direct[comps[0]] = l.value
			continue
		}
		head := comps[0]
		if _, ok := groups[head]; !ok {
			groupOrder = append(groupOrder, head)
		}
		rest := fileset.RepoPath(strings.Join(comps[1:], "/"))
		groups[head] = append(groups[head], leafEntry{path: rest, value: l.value})
	}

	var entries []object.TreeEntry
	for name, v := range direct {
		entries = append(entries, object.TreeEntry{Name: name, Kind: v.Kind, Id: v.Id, Executable: v.Executable})
	}
	for _, name := range groupOrder {
		sub, err := buildSubtree(ctx, b, groups[name])
		if err != nil {
			return nil, err
		}
		if sub == nil {
			continue
		}
		id, err := b.WriteTree(ctx, sub)
		if err != nil {
			return nil, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Kind: object.TreeEntryKind, Id: id})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return object.NewTree(entries), nil
}

