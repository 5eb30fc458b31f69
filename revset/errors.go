package revset

import "fmt"

// ParseError reports a syntax error at a rune offset in the original
// expression text (spec §4.7 error model: RevsetParseError).
type ParseError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("revset: parse error in %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

// ResolutionError reports a symbol that failed to resolve against the
// current view and index: unknown name, dangling alias, or an ambiguous
// id/change-id prefix (spec §4.7: RevsetResolutionError).
type ResolutionError struct {
	Symbol string
	Msg    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("revset: cannot resolve %q: %s", e.Symbol, e.Msg)
}

// AmbiguousIdPrefix is the specific ResolutionError spec §4.7 calls out
// by name: a commit-id or change-id prefix matching more than one id.
func AmbiguousIdPrefix(symbol string) error {
	return &ResolutionError{Symbol: symbol, Msg: "ambiguous prefix, matches more than one id"}
}

// NoSuchRevision is the ResolutionError for a prefix or name matching
// nothing at all.
func NoSuchRevision(symbol string) error {
	return &ResolutionError{Symbol: symbol, Msg: "no such revision"}
}

// EvaluationError reports a failure while walking the backend expression
// against the index or object store (spec §4.7: RevsetEvaluationError).
type EvaluationError struct {
	Op  string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("revset: evaluating %s: %v", e.Op, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
