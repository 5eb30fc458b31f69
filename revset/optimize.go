package revset

import "github.com/martinvonz/jjrepo/objecthash"

// Optimize implements spec §4.7 step 3: a handful of algebraic rewrites
// applied bottom-up, children before parents. None of these change the
// result set; they only shrink the tree the evaluator walks, so skipping
// Optimize entirely is always correct, just slower.
func Optimize(e BackendExpr) BackendExpr {
	return rewriteOnce(e)
}

func rewriteOnce(e BackendExpr) BackendExpr {
	switch n := e.(type) {
	case Ancestors:
		x := Optimize(n.X)
		// ancestors(ancestors(x)) = ancestors(x): idempotence is always
		// safe to fold, unlike the general ancestors(x)&ancestors(y) =
		// ancestors(x&y) identity, which only holds when x&y is itself
		// already ancestor-closed — for arbitrary literal sets (e.g. two
		// disjoint single commits) it is not, so that broader rewrite is
		// deliberately not implemented here.
		if inner, ok := x.(Ancestors); ok && n.Depth == nil && inner.Depth == nil {
			return inner
		}
		return Ancestors{X: x, Depth: n.Depth}
	case Descendants:
		return Descendants{X: Optimize(n.X)}
	case Heads:
		return Heads{X: Optimize(n.X)}
	case Roots:
		return Roots{X: Optimize(n.X)}
	case Filter:
		return Filter{X: Optimize(n.X), Predicate: n.Predicate}
	case Range:
		return Range{From: Optimize(n.From), To: Optimize(n.To)}

	case DagRange:
		from, to := Optimize(n.From), Optimize(n.To)
		// fuse "::x" and "x::" boundaries: an unbounded side of a dag
		// range is exactly ancestors()/descendants() of the other side.
		_, fromIsAll := from.(All)
		_, toIsAll := to.(All)
		switch {
		case fromIsAll && toIsAll:
			return All{}
		case fromIsAll:
			return Ancestors{X: to}
		case toIsAll:
			return Descendants{X: from}
		}
		return DagRange{From: from, To: to}

	case Intersection:
		a, b := Optimize(n.A), Optimize(n.B)
		if _, ok := a.(All); ok {
			return b
		}
		if _, ok := b.(All); ok {
			return a
		}
		if isEmpty(a) || isEmpty(b) {
			return emptySet()
		}
		if ca, ok := a.(Commits); ok {
			if cb, ok := b.(Commits); ok {
				return Commits{Ids: intersectIds(ca.Ids, cb.Ids)}
			}
		}
		return Intersection{A: a, B: b}

	case Union:
		a, b := Optimize(n.A), Optimize(n.B)
		if _, ok := a.(All); ok {
			return All{}
		}
		if _, ok := b.(All); ok {
			return All{}
		}
		if isEmpty(a) {
			return b
		}
		if isEmpty(b) {
			return a
		}
		if ca, ok := a.(Commits); ok {
			if cb, ok := b.(Commits); ok {
				return Commits{Ids: unionIds(ca.Ids, cb.Ids)}
			}
		}
		return Union{A: a, B: b}

	case Difference:
		a, b := Optimize(n.A), Optimize(n.B)
		if isEmpty(b) {
			return a
		}
		if isEmpty(a) {
			return emptySet()
		}
		// push "~" through intersection: all() ~ (x & y) = (all()~x) | (all()~y).
		if _, aIsAll := a.(All); aIsAll {
			if inter, ok := b.(Intersection); ok {
				return Optimize(Union{
					A: Difference{A: All{}, B: inter.A},
					B: Difference{A: All{}, B: inter.B},
				})
			}
		}
		if ca, ok := a.(Commits); ok {
			if cb, ok := b.(Commits); ok {
				return Commits{Ids: subtractIds(ca.Ids, cb.Ids)}
			}
		}
		return Difference{A: a, B: b}

	default:
		return e
	}
}

func isEmpty(e BackendExpr) bool {
	if c, ok := e.(Commits); ok {
		return len(c.Ids) == 0
	}
	return false
}

func emptySet() BackendExpr { return Commits{} }

func intersectIds(a, b []objecthash.Hash) []objecthash.Hash {
	set := map[objecthash.Hash]struct{}{}
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []objecthash.Hash
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func unionIds(a, b []objecthash.Hash) []objecthash.Hash {
	seen := map[objecthash.Hash]struct{}{}
	var out []objecthash.Hash
	for _, id := range append(append([]objecthash.Hash(nil), a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func subtractIds(a, b []objecthash.Hash) []objecthash.Hash {
	excl := map[objecthash.Hash]struct{}{}
	for _, id := range b {
		excl[id] = struct{}{}
	}
	var out []objecthash.Hash
	for _, id := range a {
		if _, ok := excl[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
