package fileset

import "fmt"

// Compile lowers a parsed Expr to a Matcher, resolving any relative
// literal/glob/file/root arguments against conv (spec §4.8's "path
// converter").
func Compile(e Expr, conv Converter) (Matcher, error) {
	switch n := e.(type) {
	case Literal:
		return compileLiteral(n.Value, conv)
	case FuncCall:
		return compileFunc(n, conv)
	case UnionExpr:
		a, err := Compile(n.A, conv)
		if err != nil {
			return nil, err
		}
		b, err := Compile(n.B, conv)
		if err != nil {
			return nil, err
		}
		return Union(a, b), nil
	case IntersectExpr:
		a, err := Compile(n.A, conv)
		if err != nil {
			return nil, err
		}
		b, err := Compile(n.B, conv)
		if err != nil {
			return nil, err
		}
		return Intersect(a, b), nil
	case DiffExpr:
		a, err := Compile(n.A, conv)
		if err != nil {
			return nil, err
		}
		b, err := Compile(n.B, conv)
		if err != nil {
			return nil, err
		}
		return Diff(a, b), nil
	case Negation:
		x, err := Compile(n.X, conv)
		if err != nil {
			return nil, err
		}
		return Diff(All, x), nil
	default:
		return nil, fmt.Errorf("fileset: uncompilable expression node %T", e)
	}
}

// compileLiteral treats a bare word as a prefix selector if it has no
// glob metacharacters, or as a cwd-relative glob if it does — the same
// dual reading jj's fileset language gives an unquoted path argument.
func compileLiteral(value string, conv Converter) (Matcher, error) {
	if value == "" {
		return All, nil
	}
	if hasGlobMeta(value) {
		return compileGlob(value, conv)
	}
	rp, err := conv.ToRepoPath(value)
	if err != nil {
		return nil, err
	}
	return newPrefixMatcher(rp), nil
}

func hasGlobMeta(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// compileGlob anchors pattern at conv's cwd rather than running it
// through ToRepoPath: path.Clean there would collapse the very
// wildcard/".."-like sequences a glob pattern relies on.
func compileGlob(pattern string, conv Converter) (Matcher, error) {
	anchored := pattern
	if conv.root != "" {
		anchored = string(conv.root) + "/" + pattern
	}
	return newGlobMatcher(anchored), nil
}

func compileFunc(n FuncCall, conv Converter) (Matcher, error) {
	switch n.Name {
	case "all":
		if len(n.Args) != 0 {
			return nil, &CompileError{Func: "all", Msg: "takes no arguments"}
		}
		return All, nil
	case "none":
		if len(n.Args) != 0 {
			return nil, &CompileError{Func: "none", Msg: "takes no arguments"}
		}
		return None, nil
	case "file":
		if len(n.Args) == 0 {
			return nil, &CompileError{Func: "file", Msg: "requires at least one path argument"}
		}
		var ms []Matcher
		for _, a := range n.Args {
			rp, err := conv.ToRepoPath(a)
			if err != nil {
				return nil, err
			}
			ms = append(ms, newPrefixMatcher(rp))
		}
		return Union(ms...), nil
	case "glob":
		if len(n.Args) != 1 {
			return nil, &CompileError{Func: "glob", Msg: "requires exactly one pattern argument"}
		}
		return compileGlob(n.Args[0], conv)
	case "root":
		if len(n.Args) != 1 {
			return nil, &CompileError{Func: "root", Msg: "requires exactly one pattern argument"}
		}
		if hasGlobMeta(n.Args[0]) {
			return newGlobMatcher(n.Args[0]), nil
		}
		return newPrefixMatcher(NewRepoPath(n.Args[0])), nil
	default:
		return nil, &CompileError{Func: n.Name, Msg: "unknown fileset function"}
	}
}

// ParseAndCompile is the common entry point: str -> Matcher in one step.
func ParseAndCompile(src string, conv Converter) (Matcher, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Compile(e, conv)
}
