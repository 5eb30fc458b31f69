package oplog

import (
	"context"
	"fmt"
	"sort"

	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/view"
)

// ancestorsOf returns the full set of ids reachable from id via
// Operation.Parents, id included. Operation DAGs are expected to stay
// small relative to the commit DAG they describe, so this package
// doesn't carry the index package's generation-number pruning — it
// walks Parents directly from the store.
func (s *Store) ancestorsOf(id objecthash.Hash) (map[objecthash.Hash]struct{}, error) {
	seen := map[objecthash.Hash]struct{}{}
	var walk func(objecthash.Hash) error
	walk = func(cur objecthash.Hash) error {
		if _, ok := seen[cur]; ok {
			return nil
		}
		seen[cur] = struct{}{}
		op, err := s.ReadOperation(cur)
		if err != nil {
			return err
		}
		for _, p := range op.Parents {
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id); err != nil {
		return nil, err
	}
	return seen, nil
}

func (s *Store) isAncestorOp(a, b objecthash.Hash) (bool, error) {
	ancestors, err := s.ancestorsOf(b)
	if err != nil {
		return false, err
	}
	_, ok := ancestors[a]
	return ok, nil
}

// CommonAncestorOperation finds the operation spec §4.4 step 5 calls
// "the common ancestor operation" of heads: the maximal element of the
// intersection of every head's ancestor set. When more than one
// maximal element remains (the intersection itself has several
// incomparable heads), the lexicographically smallest is chosen for
// determinism — operation-merge bases don't need the tie-break
// semantics commit merges do, since the view merge is associative
// regardless of which maximal ancestor is picked as base.
func (s *Store) CommonAncestorOperation(heads []objecthash.Hash) (objecthash.Hash, error) {
	if len(heads) == 0 {
		return objecthash.Zero, fmt.Errorf("oplog: no heads given")
	}
	common, err := s.ancestorsOf(heads[0])
	if err != nil {
		return objecthash.Zero, err
	}
	for _, h := range heads[1:] {
		others, err := s.ancestorsOf(h)
		if err != nil {
			return objecthash.Zero, err
		}
		for id := range common {
			if _, ok := others[id]; !ok {
				delete(common, id)
			}
		}
	}
	var candidates []objecthash.Hash
	for id := range common {
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return objecthash.Zero, fmt.Errorf("oplog: no common ancestor operation")
	}
	var maximal []objecthash.Hash
	for _, c := range candidates {
		isAncestorOfOther := false
		for _, other := range candidates {
			if c == other {
				continue
			}
			if ok, err := s.isAncestorOp(c, other); err == nil && ok {
				isAncestorOfOther = true
				break
			}
		}
		if !isAncestorOfOther {
			maximal = append(maximal, c)
		}
	}
	sort.Slice(maximal, func(i, j int) bool { return objecthash.Less(maximal[i], maximal[j]) })
	return maximal[0], nil
}

// MergeHeads implements spec §4.4 step 5: given op-heads H with |H|>1,
// build a merge operation whose parents are H and whose view is the
// recursive three-way merge of the heads' views against their common
// ancestor operation's view, folded pairwise across all heads (the
// common base is reused for every fold, matching the associative
// "RefTarget algebra for every ref slot" rule regardless of fold
// order). If len(heads)==1 it is returned unchanged: no merge needed.
func (s *Store) MergeHeads(ctx context.Context, heads []objecthash.Hash, headsOf view.HeadsFunc, now int64, hostname, username string) (*Operation, error) {
	if len(heads) == 0 {
		return nil, fmt.Errorf("oplog: no heads to merge")
	}
	if len(heads) == 1 {
		return s.ReadOperation(heads[0])
	}

	baseOpId, err := s.CommonAncestorOperation(heads)
	if err != nil {
		return nil, err
	}
	baseOp, err := s.ReadOperation(baseOpId)
	if err != nil {
		return nil, err
	}
	baseView, err := s.ReadView(baseOp.ViewId)
	if err != nil {
		return nil, err
	}

	headOps := make([]*Operation, len(heads))
	for i, h := range heads {
		op, err := s.ReadOperation(h)
		if err != nil {
			return nil, err
		}
		headOps[i] = op
	}

	merged, err := s.ReadView(headOps[0].ViewId)
	if err != nil {
		return nil, err
	}
	for _, op := range headOps[1:] {
		v, err := s.ReadView(op.ViewId)
		if err != nil {
			return nil, err
		}
		merged = view.Merge(merged, v, baseView, headsOf)
	}

	viewId, err := s.WriteView(merged)
	if err != nil {
		return nil, err
	}
	sortedHeads := append([]objecthash.Hash{}, heads...)
	sort.Slice(sortedHeads, func(i, j int) bool { return objecthash.Less(sortedHeads[i], sortedHeads[j]) })
	mergeOp := &Operation{
		ViewId:  viewId,
		Parents: sortedHeads,
		Metadata: Metadata{
			StartTime:   now,
			EndTime:     now,
			Description: "merge concurrent operations",
			Hostname:    hostname,
			Username:    username,
		},
	}
	return mergeOp, nil
}
