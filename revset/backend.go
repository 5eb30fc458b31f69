package revset

import "github.com/martinvonz/jjrepo/objecthash"

// BackendExpr is the restricted algebra spec §4.7 step 4 lowers a parsed,
// resolved Expression onto: the only vocabulary the evaluator
// understands. Every built-in Expr resolves to one of these; an
// Extension resolves to an ExtensionExpr wrapping its own evaluator.
type BackendExpr interface {
	backendNode()
}

// Commits is a literal, already-resolved set of commit ids — the leaf
// every symbol resolution bottoms out at.
type Commits struct {
	Ids []objecthash.Hash
}

func (Commits) backendNode() {}

// Ancestors is ancestors(x), optionally bounded to a maximum depth (the
// "bounded_by_depth?" parameter spec §4.7 names for ancestors(x, n)).
type Ancestors struct {
	X     BackendExpr
	Depth *int
}

func (Ancestors) backendNode() {}

// Descendants is descendants(x): every commit reachable forward from x.
type Descendants struct {
	X BackendExpr
}

func (Descendants) backendNode() {}

// Range is "from..to": ancestors(to), excluding ancestors(from).
type Range struct {
	From, To BackendExpr
}

func (Range) backendNode() {}

// DagRange is "from::to": descendants(from) intersected with
// ancestors(to).
type DagRange struct {
	From, To BackendExpr
}

func (DagRange) backendNode() {}

// Heads is heads(x): the maximal elements of x.
type Heads struct{ X BackendExpr }

func (Heads) backendNode() {}

// Roots is roots(x): the minimal elements of x (no parent of any member
// is itself a member).
type Roots struct{ X BackendExpr }

func (Roots) backendNode() {}

// Intersection, Union and Difference are the backend set-algebra ops a
// parsed IntersectExpr/UnionExpr/DiffExpr lowers to.
type Intersection struct{ A, B BackendExpr }

func (Intersection) backendNode() {}

type Union struct{ A, B BackendExpr }

func (Union) backendNode() {}

type Difference struct{ A, B BackendExpr }

func (Difference) backendNode() {}

// All is the universe: every commit the index covers. "~x" (Negation)
// lowers to Difference{All{}, x}.
type All struct{}

func (All) backendNode() {}

// Filter is filter(x, predicate): members of x matching predicate (spec
// §4.7: description/author/committer substring, conflict presence,
// signature presence, file-path predicates per §4.8).
type Filter struct {
	X         BackendExpr
	Predicate Predicate
}

func (Filter) backendNode() {}

// ExtensionExpr wraps a third-party BackendExpr produced by an
// Extension's Resolve; the evaluator calls its Eval function rather
// than switching on a built-in case.
type ExtensionExpr struct {
	Eval func(*evalContext) ([]objecthash.Hash, error)
}

func (ExtensionExpr) backendNode() {}
