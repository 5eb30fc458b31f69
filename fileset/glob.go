package fileset

import "strings"

// globMatcher answers Candidate as well as Matched/NoMatch for a glob
// pattern: globEngine (globengine.go) only ever answers yes/no for a
// complete path, so the pattern's leading literal (non-wildcard)
// directory components are tracked separately to know when a directory
// *above* a full match is still worth descending into.
type globMatcher struct {
	eng           *globEngine
	literalParts  []string
	hasDoubleStar bool
	fixedDepth    int // -1 when the pattern has no fixed total depth
}

// isMeta reports whether a pattern path component contains any glob
// special character.
func isMeta(part string) bool {
	return strings.ContainsAny(part, "*?[")
}

// Glob compiles a root-relative glob pattern (the same syntax glob()
// compiles at revset/fileset call sites) directly, for callers outside
// this package that already have a root-relative pattern string in hand
// (e.g. workingcopy's .gitignore stack, which anchors each rule at the
// directory that defined it before calling this).
func Glob(pattern string) Matcher {
	return newGlobMatcher(pattern)
}

func newGlobMatcher(pattern string) Matcher {
	parts := strings.Split(pattern, "/")
	var literal []string
	hasDoubleStar := false
	for _, p := range parts {
		if p == "**" {
			hasDoubleStar = true
			break
		}
		if isMeta(p) {
			break
		}
		literal = append(literal, p)
	}
	fixedDepth := -1
	if !hasDoubleStar {
		fixedDepth = len(parts)
	}
	return &globMatcher{
		eng:           newGlobEngine(pattern),
		literalParts:  literal,
		hasDoubleStar: hasDoubleStar,
		fixedDepth:    fixedDepth,
	}
}

func (g *globMatcher) Match(p RepoPath) Result {
	ps := p.Components()
	for i := 0; i < len(g.literalParts) && i < len(ps); i++ {
		if ps[i] != g.literalParts[i] {
			return NoMatch
		}
	}
	if len(ps) < len(g.literalParts) {
		return Candidate
	}
	if g.eng.Match(string(p)) {
		return Matched
	}
	if g.hasDoubleStar {
		return Candidate
	}
	if g.fixedDepth >= 0 && len(ps) < g.fixedDepth {
		return Candidate
	}
	return NoMatch
}
