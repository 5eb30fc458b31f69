package fileset

import "fmt"

// ParseError reports a syntax error at a rune offset in the original
// fileset expression text.
type ParseError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fileset: parse error in %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

// CompileError reports a function call that Compile could not lower,
// e.g. an unknown function name or a bad argument count.
type CompileError struct {
	Func string
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("fileset: %s(): %s", e.Func, e.Msg)
}
