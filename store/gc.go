package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/trace"
)

// GC walks every root's reachable set (commit -> parents, predecessors,
// root tree/conflict -> subtrees/files) and removes any loose object file
// that is neither reachable nor younger than olderThan. Mirrors the
// teacher's reachability-walk GC in modules/zeta/backend/gc.go, adapted
// from git-style tree/blob reachability to this module's
// Commit/Tree/Conflict/blob shape; the root commit and empty tree are
// always kept.
func (n *Native) GC(ctx context.Context, roots []objecthash.Hash, olderThan time.Time) (int, error) {
	trace.GCStarted(olderThan.Format(time.RFC3339))
	removed, err := n.gc(ctx, roots, olderThan)
	if err == nil {
		trace.GCFinished(removed)
	}
	return removed, err
}

func (n *Native) gc(ctx context.Context, roots []objecthash.Hash, olderThan time.Time) (int, error) {
	live := map[objecthash.Hash]struct{}{
		n.rootCommit: {},
		n.emptyTree:  {},
	}
	for _, r := range roots {
		if err := n.markReachable(ctx, r, live); err != nil {
			return 0, err
		}
	}

	removed := 0
	objRoot := filepath.Join(n.root, "objects")
	entries, err := os.ReadDir(objRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(objRoot, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			return removed, err
		}
		for _, f := range files {
			id, err := objecthash.Parse(shard.Name() + f.Name())
			if err != nil {
				continue
			}
			if _, ok := live[id]; ok {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(olderThan) {
				continue
			}
			if err := os.Remove(filepath.Join(shardPath, f.Name())); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// markReachable walks from a root id, trying it first as a commit and
// falling back to a tree, so GC can be seeded with either commit ids
// (the common case, from operation-log heads) or tree ids directly.
func (n *Native) markReachable(ctx context.Context, id objecthash.Hash, live map[objecthash.Hash]struct{}) error {
	if _, seen := live[id]; seen {
		return nil
	}
	if c, err := n.ReadCommit(ctx, id); err == nil && c != nil {
		live[id] = struct{}{}
		for _, p := range c.Parents {
			if err := n.markReachable(ctx, p, live); err != nil {
				return err
			}
		}
		for _, p := range c.Predecessors {
			if err := n.markReachable(ctx, p, live); err != nil {
				return err
			}
		}
		if c.RootIsConflict {
			return n.markConflictReachable(ctx, c.RootTree, live)
		}
		return n.markTreeReachable(ctx, c.RootTree, live)
	}
	return n.markTreeReachable(ctx, id, live)
}

func (n *Native) markTreeReachable(ctx context.Context, id objecthash.Hash, live map[objecthash.Hash]struct{}) error {
	if id.IsZero() {
		return nil
	}
	if _, seen := live[id]; seen {
		return nil
	}
	t, err := n.ReadTree(ctx, id)
	if err != nil {
		return err
	}
	live[id] = struct{}{}
	for _, e := range t.Entries {
		switch e.Kind {
		case object.TreeEntryKind:
			if err := n.markTreeReachable(ctx, e.Id, live); err != nil {
				return err
			}
		case object.ConflictEntry:
			if err := n.markConflictReachable(ctx, e.Id, live); err != nil {
				return err
			}
		default:
			live[e.Id] = struct{}{}
		}
	}
	return nil
}

func (n *Native) markConflictReachable(ctx context.Context, id objecthash.Hash, live map[objecthash.Hash]struct{}) error {
	if _, seen := live[id]; seen {
		return nil
	}
	c, err := n.ReadConflict(ctx, id)
	if err != nil {
		return err
	}
	live[id] = struct{}{}
	for _, v := range append(append([]object.TreeValue{}, c.Adds...), c.Removes...) {
		if !v.Present {
			continue
		}
		switch v.Kind {
		case object.TreeEntryKind:
			if err := n.markTreeReachable(ctx, v.Id, live); err != nil {
				return err
			}
		case object.ConflictEntry:
			if err := n.markConflictReachable(ctx, v.Id, live); err != nil {
				return err
			}
		default:
			live[v.Id] = struct{}{}
		}
	}
	return nil
}
