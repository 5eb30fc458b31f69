package fileset

// Expr is a parsed, pre-compile fileset AST node. Parse produces these;
// Compile lowers them to a Matcher against a Converter.
type Expr interface {
	exprNode()
}

// Literal is a bare word or quoted string: a path, taken as a prefix
// selector if it contains no glob metacharacters, or as a glob pattern
// (anchored at the converter's cwd, like the glob() function) if it
// does.
type Literal struct {
	Value string
}

func (Literal) exprNode() {}

// FuncCall is a named function applied to literal-string arguments:
// file(...), glob(...), root(...), all(), none().
type FuncCall struct {
	Name string
	Args []string
}

func (FuncCall) exprNode() {}

// UnionExpr is "a | b". Named distinctly from matcher.go's Union
// function (the compiled combinator) since the parsed node and the
// compiled matcher it lowers to are different things in the same
// package.
type UnionExpr struct{ A, B Expr }

func (UnionExpr) exprNode() {}

// IntersectExpr is "a & b".
type IntersectExpr struct{ A, B Expr }

func (IntersectExpr) exprNode() {}

// DiffExpr is "a ~ b": members of a not selected by b.
type DiffExpr struct{ A, B Expr }

func (DiffExpr) exprNode() {}

// Negation is the prefix "~x": everything x does not select.
type Negation struct{ X Expr }

func (Negation) exprNode() {}
