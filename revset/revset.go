// Package revset implements the query language of spec §4.7: parse a
// string into an Expression, resolve its symbols against a View and
// Index, rewrite it with a handful of algebraic optimizations, lower it
// to a small backend algebra, and evaluate that against the Index in
// children-before-parents order.
//
// The tokenizer is a hand-rolled rune scanner reporting pos/tok/lit
// triples one call at a time, in the shape the gcfg config scanner's
// test demonstrates (Init once, Scan in a loop, position tracked by
// offset) — there is no revset-specific teacher code to ground a query
// language parser on, so the style is borrowed from the pack's only
// other hand-written scanner.
package revset

import (
	"context"

	"github.com/martinvonz/jjrepo/index"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/store"
	"github.com/martinvonz/jjrepo/view"
)

// Eval runs the full pipeline (spec §4.7 steps 1-5) over src: parse,
// resolve against v/idx scoped to workspace, optimize, and evaluate
// against idx/backend.
func Eval(ctx context.Context, v *view.View, idx *index.Index, backend store.Backend, rootId objecthash.Hash, workspace view.WorkspaceId, aliases map[string]string, src string) ([]objecthash.Hash, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	r := NewResolver(v, idx, rootId, workspace)
	if aliases != nil {
		r.Aliases = aliases
	}
	backendExpr, err := r.Resolve(expr)
	if err != nil {
		return nil, err
	}
	backendExpr = Optimize(backendExpr)
	return Evaluate(ctx, idx, backend, backendExpr)
}
