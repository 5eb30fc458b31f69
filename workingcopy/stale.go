package workingcopy

import (
	"context"
	"fmt"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
)

// RecoverResult is what Recover produced: the merged tree to check the
// workspace out to, plus every object the merge created along the way
// that the caller must persist (bottom-up) before writing the commit
// that records this recovery.
type RecoverResult struct {
	TreeId       objecthash.Hash
	NewTrees     []*object.Tree
	NewConflicts []*object.Conflict
}

// Recover implements spec §4.9's stale-working-copy recovery: the
// workspace's recorded operation no longer matches the current op-head
// (ErrStaleWorkingCopy), so instead of discarding whatever the user
// changed on disk since the last snapshot, it three-way merges
// currentWcTree (what Snapshot would record right now) against
// headWcTree (what the current op-head says the workspace should be at)
// using baseTree (what the workspace was at when its stale
// operation_id was recorded) as the common ancestor. The caller
// persists the returned NewTrees/NewConflicts, wraps TreeId in a new
// commit, updates the workspace pointer to it, records a new operation,
// and finally calls CheckOut with that operation's id so the working
// copy's recorded state catches up.
func Recover(ctx context.Context, b store.Backend, currentWcTree, headWcTree, baseTree objecthash.Hash) (*RecoverResult, error) {
	cur, err := optionalTree(ctx, b, currentWcTree)
	if err != nil {
		return nil, fmt.Errorf("workingcopy: recover: reading current tree: %w", err)
	}
	head, err := optionalTree(ctx, b, headWcTree)
	if err != nil {
		return nil, fmt.Errorf("workingcopy: recover: reading op-head tree: %w", err)
	}
	base, err := optionalTree(ctx, b, baseTree)
	if err != nil {
		return nil, fmt.Errorf("workingcopy: recover: reading base tree: %w", err)
	}

	merged, err := object.MergeTrees(ctx, b, cur, head, base)
	if err != nil {
		return nil, err
	}

	for _, t := range merged.NewTrees {
		if _, err := b.WriteTree(ctx, t); err != nil {
			return nil, err
		}
	}
	for _, c := range merged.NewConflicts {
		if _, err := b.WriteConflict(ctx, c); err != nil {
			return nil, err
		}
	}

	var treeId objecthash.Hash
	if len(merged.Root) == 0 {
		treeId = b.EmptyTreeId()
	} else {
		root := object.NewTree(merged.Root)
		treeId, err = b.WriteTree(ctx, root)
		if err != nil {
			return nil, err
		}
	}

	return &RecoverResult{TreeId: treeId, NewTrees: merged.NewTrees, NewConflicts: merged.NewConflicts}, nil
}

func optionalTree(ctx context.Context, b store.Backend, id objecthash.Hash) (*object.Tree, error) {
	if id.IsZero() {
		return nil, nil
	}
	return b.ReadTree(ctx, id)
}
