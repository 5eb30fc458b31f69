package revset

// Expr is a parsed, pre-resolution revset AST node (spec §4.7 step 1:
// "str -> Expression"). Symbol resolution, optimization and lowering
// walk this tree and produce a backend Expr (see backend.go); nothing in
// this file touches the view or the index.
type Expr interface {
	exprNode()
}

// Extension is the hook spec §4.7 names for third-party AST nodes:
// anything implementing it can appear in an Expr tree (Parse itself never
// produces one) and participates in resolution via its own methods
// rather than ast.go's built-ins.
type Extension interface {
	Expr
	// Transform lets rewrite passes recurse into the extension's own
	// children; an extension with no children can return itself.
	Transform(func(Expr) Expr) Expr
	// Resolve lowers the extension directly to a backend Expr, given the
	// same Resolver built-in symbols use.
	Resolve(*Resolver) (BackendExpr, error)
}

// Symbol names a bookmark, tag, change-id prefix, commit-id prefix, or
// alias — anything spelled as a bare identifier or quoted string.
type Symbol struct {
	Name string
}

func (Symbol) exprNode() {}

// At is the bare "@" symbol: the working-copy commit of the repo's
// default workspace.
type At struct{}

func (At) exprNode() {}

// RemoteSymbol is "name@remote": a remote-tracked bookmark lookup.
type RemoteSymbol struct {
	Name   string
	Remote string
}

func (RemoteSymbol) exprNode() {}

// WorkspaceAt is "name@": the working-copy commit of a named workspace
// other than the default.
type WorkspaceAt struct {
	Workspace string
}

func (WorkspaceAt) exprNode() {}

// FuncCall is a named function applied to zero or more argument
// expressions: ancestors(x), heads(x), description(pattern), and so on.
type FuncCall struct {
	Name string
	Args []Expr
}

func (FuncCall) exprNode() {}

// StringArg is a quoted-string literal: a function's pattern argument,
// or, anywhere else, resolved the same way as a Symbol of that name.
type StringArg struct {
	Value string
}

func (StringArg) exprNode() {}

// RangeExpr is "from..to" (either side may be nil for an omitted bound):
// commits that are ancestors of to but not ancestors of from.
type RangeExpr struct {
	From, To Expr
}

func (RangeExpr) exprNode() {}

// DagRangeExpr is "from::to" (either side may be nil): commits that are
// both descendants of from and ancestors of to.
type DagRangeExpr struct {
	From, To Expr
}

func (DagRangeExpr) exprNode() {}

// IntersectExpr is "a & b". Named distinctly from backend.go's
// Intersection (the lowered form) since a parsed node and its backend
// counterpart are different types in the same package.
type IntersectExpr struct{ A, B Expr }

func (IntersectExpr) exprNode() {}

// UnionExpr is "a | b".
type UnionExpr struct{ A, B Expr }

func (UnionExpr) exprNode() {}

// DiffExpr is "a ~ b": members of a that are not members of b.
type DiffExpr struct{ A, B Expr }

func (DiffExpr) exprNode() {}

// Negation is the prefix "~x": every indexed commit not in x.
type Negation struct{ X Expr }

func (Negation) exprNode() {}
