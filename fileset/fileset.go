// Package fileset implements the small parallel engine spec §4.8 names:
// a path-expression language that compiles to a Matcher, the
// RepoPath -> {Matched, Candidate, NoMatch} function tree diff and
// working-copy walks use to decide what to read, what to recurse into,
// and what to skip outright.
//
// The grammar mirrors revset's shape deliberately (tokenize -> parse ->
// compile) but is much smaller: there is no symbol resolution step,
// since every leaf is either a literal path/glob or a named function,
// never something that needs a view or an index to look up.
package fileset
