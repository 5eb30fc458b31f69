package workingcopy

import (
	"context"

	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
)

// diffTrees diffs the trees named by old and new_ (either may be
// objecthash.Zero, meaning the empty tree) against this workspace's
// current sparse matcher (spec §4.9: "Compute tree diff old_tree ->
// new_tree filtered by sparse patterns").
func (wc *WorkingCopy) diffTrees(ctx context.Context, b store.Backend, old, new_ objecthash.Hash) ([]object.DiffEntry, error) {
	matcher, err := wc.SparseMatcher()
	if err != nil {
		return nil, err
	}
	oldTree, err := resolveOptionalTree(ctx, b, old)
	if err != nil {
		return nil, err
	}
	newTree, err := resolveOptionalTree(ctx, b, new_)
	if err != nil {
		return nil, err
	}
	return object.DiffTrees(ctx, b, oldTree, newTree, matcher)
}

func resolveOptionalTree(ctx context.Context, b store.Backend, id objecthash.Hash) (*object.Tree, error) {
	if id.IsZero() {
		return nil, nil
	}
	return b.ReadTree(ctx, id)
}
