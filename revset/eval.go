package revset

import (
	"context"
	"sort"

	"github.com/martinvonz/jjrepo/index"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
)

// evalContext is the state an ExtensionExpr's Eval closure runs with.
// The type is unexported, so such a closure can only be written inside
// this package.
type evalContext struct {
	Ctx     context.Context
	Index   *index.Index
	Backend store.Backend
}

// Evaluate implements spec §4.7 step 5: lower, walk and order a
// BackendExpr against idx/backend, yielding commit ids in
// children-before-parents order (reverse topological by generation
// number, ties broken ascending by id), with no duplicates. Callers
// normally build the BackendExpr via Resolver.Resolve and Optimize
// first; Evaluate itself only walks, it never resolves symbols.
func Evaluate(ctx context.Context, idx *index.Index, backend store.Backend, e BackendExpr) ([]objecthash.Hash, error) {
	ec := &evalContext{Ctx: ctx, Index: idx, Backend: backend}
	ids, err := ec.eval(e)
	if err != nil {
		return nil, err
	}
	ordered := dedup(ids)
	sort.Slice(ordered, func(i, j int) bool {
		gi, _ := idx.Generation(ordered[i])
		gj, _ := idx.Generation(ordered[j])
		if gi != gj {
			return gi > gj
		}
		return objecthash.Less(ordered[i], ordered[j])
	})
	return ordered, nil
}

func (ec *evalContext) eval(e BackendExpr) ([]objecthash.Hash, error) {
	switch n := e.(type) {
	case Commits:
		return append([]objecthash.Hash(nil), n.Ids...), nil

	case All:
		return ec.Index.AllIds(), nil

	case Ancestors:
		set, err := ec.eval(n.X)
		if err != nil {
			return nil, &EvaluationError{Op: "ancestors", Err: err}
		}
		if n.Depth == nil {
			return ec.Index.Evaluate(set, nil), nil
		}
		return ec.boundedAncestors(set, *n.Depth), nil

	case Descendants:
		set, err := ec.eval(n.X)
		if err != nil {
			return nil, &EvaluationError{Op: "descendants", Err: err}
		}
		return ec.descendantsOf(set), nil

	case Range:
		from, err := ec.eval(n.From)
		if err != nil {
			return nil, &EvaluationError{Op: "range", Err: err}
		}
		to, err := ec.eval(n.To)
		if err != nil {
			return nil, &EvaluationError{Op: "range", Err: err}
		}
		return ec.Index.Evaluate(to, from), nil

	case DagRange:
		from, err := ec.eval(n.From)
		if err != nil {
			return nil, &EvaluationError{Op: "dagrange", Err: err}
		}
		to, err := ec.eval(n.To)
		if err != nil {
			return nil, &EvaluationError{Op: "dagrange", Err: err}
		}
		ancestorsOfTo := asSet(ec.Index.Evaluate(to, nil))
		var out []objecthash.Hash
		for _, id := range ec.descendantsOf(from) {
			if _, ok := ancestorsOfTo[id]; ok {
				out = append(out, id)
			}
		}
		return out, nil

	case Heads:
		set, err := ec.eval(n.X)
		if err != nil {
			return nil, &EvaluationError{Op: "heads", Err: err}
		}
		return ec.Index.Heads(set), nil

	case Roots:
		set, err := ec.eval(n.X)
		if err != nil {
			return nil, &EvaluationError{Op: "roots", Err: err}
		}
		return ec.roots(set), nil

	case Intersection:
		a, err := ec.eval(n.A)
		if err != nil {
			return nil, err
		}
		b, err := ec.eval(n.B)
		if err != nil {
			return nil, err
		}
		return intersectIds(a, b), nil

	case Union:
		a, err := ec.eval(n.A)
		if err != nil {
			return nil, err
		}
		b, err := ec.eval(n.B)
		if err != nil {
			return nil, err
		}
		return unionIds(a, b), nil

	case Difference:
		a, err := ec.eval(n.A)
		if err != nil {
			return nil, err
		}
		b, err := ec.eval(n.B)
		if err != nil {
			return nil, err
		}
		return subtractIds(a, b), nil

	case Filter:
		set, err := ec.eval(n.X)
		if err != nil {
			return nil, &EvaluationError{Op: "filter:" + n.Predicate.Name, Err: err}
		}
		var out []objecthash.Hash
		for _, id := range set {
			c, err := ec.Backend.ReadCommit(ec.Ctx, id)
			if err != nil {
				return nil, &EvaluationError{Op: "filter:" + n.Predicate.Name, Err: err}
			}
			ok, err := n.Predicate.Test(ec.Ctx, ec.Backend, c)
			if err != nil {
				return nil, &EvaluationError{Op: "filter:" + n.Predicate.Name, Err: err}
			}
			if ok {
				out = append(out, id)
			}
		}
		return out, nil

	case ExtensionExpr:
		return n.Eval(ec)

	default:
		return nil, &EvaluationError{Op: "evaluate", Err: errUnknownNode(e)}
	}
}

// boundedAncestors is a depth-limited BFS, since the index's Evaluate
// primitive only knows wanted/unwanted sets, not a distance bound.
func (ec *evalContext) boundedAncestors(set []objecthash.Hash, depth int) []objecthash.Hash {
	type item struct {
		id objecthash.Hash
		d  int
	}
	seen := map[objecthash.Hash]struct{}{}
	var out []objecthash.Hash
	queue := make([]item, 0, len(set))
	for _, id := range set {
		queue = append(queue, item{id: id, d: 0})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur.id]; ok {
			continue
		}
		seen[cur.id] = struct{}{}
		out = append(out, cur.id)
		if cur.d >= depth {
			continue
		}
		for _, p := range ec.Index.ParentsOf(cur.id) {
			queue = append(queue, item{id: p, d: cur.d + 1})
		}
	}
	return out
}

// descendantsOf returns set plus every commit the index covers that has
// some member of set as an ancestor. The index has no forward adjacency,
// so this scans every indexed commit once per call.
func (ec *evalContext) descendantsOf(set []objecthash.Hash) []objecthash.Hash {
	var out []objecthash.Hash
	for _, id := range ec.Index.AllIds() {
		for _, s := range set {
			if ec.Index.IsAncestor(s, id) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

func (ec *evalContext) roots(set []objecthash.Hash) []objecthash.Hash {
	var out []objecthash.Hash
	for i, c := range set {
		hasAncestorInSet := false
		for j, other := range set {
			if i == j {
				continue
			}
			if ec.Index.IsAncestor(other, c) && other != c {
				hasAncestorInSet = true
				break
			}
		}
		if !hasAncestorInSet {
			out = append(out, c)
		}
	}
	return dedup(out)
}

func asSet(ids []objecthash.Hash) map[objecthash.Hash]struct{} {
	m := make(map[objecthash.Hash]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func dedup(ids []objecthash.Hash) []objecthash.Hash {
	seen := map[objecthash.Hash]struct{}{}
	out := make([]objecthash.Hash, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func errUnknownNode(e BackendExpr) error {
	return &nodeError{e}
}

type nodeError struct{ e BackendExpr }

func (n *nodeError) Error() string { return "unhandled backend expression node" }
