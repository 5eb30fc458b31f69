package fileset

// Result is the three-way answer a Matcher gives for one RepoPath (spec
// §4.8: "RepoPath -> {Matched, Candidate, NoMatch}"). Tree-diff and
// working-copy walks use it to decide whether to read a path's content
// (Matched), descend into it because something further down might match
// (Candidate), or skip its whole subtree (NoMatch).
type Result int8

const (
	NoMatch Result = iota
	Candidate
	Matched
)

func (r Result) String() string {
	switch r {
	case Matched:
		return "matched"
	case Candidate:
		return "candidate"
	default:
		return "no-match"
	}
}

// Matcher is the compiled form every fileset expression lowers to.
type Matcher interface {
	Match(p RepoPath) Result
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(RepoPath) Result

func (f MatcherFunc) Match(p RepoPath) Result { return f(p) }

// allMatcher matches every path.
type allMatcher struct{}

func (allMatcher) Match(RepoPath) Result { return Matched }

// All is the trivial fileset matcher: every path matches. It is the
// default auto_track_pattern (spec §4.9).
var All Matcher = allMatcher{}

// noneMatcher matches nothing.
type noneMatcher struct{}

func (noneMatcher) Match(RepoPath) Result { return NoMatch }

// None matches no path at all.
var None Matcher = noneMatcher{}

// prefixMatcher selects prefix itself and everything under it.
type prefixMatcher struct {
	prefix RepoPath
}

func newPrefixMatcher(prefix RepoPath) Matcher {
	return prefixMatcher{prefix: prefix}
}

// Prefix returns a Matcher selecting prefix and everything under it —
// the primitive sparse patterns (spec §4.9: "a list of path prefixes")
// are built from directly, without going through the expression
// language at all.
func Prefix(prefix RepoPath) Matcher {
	return newPrefixMatcher(prefix)
}

func (m prefixMatcher) Match(p RepoPath) Result {
	if m.prefix == "" {
		return Matched
	}
	if p == m.prefix {
		return Matched
	}
	ps, pfx := string(p), string(m.prefix)
	if len(ps) > len(pfx) && ps[len(pfx)] == '/' && ps[:len(pfx)] == pfx {
		return Matched
	}
	// p is a strict ancestor directory of prefix: must keep descending.
	if len(pfx) > len(ps) && pfx[len(ps)] == '/' && pfx[:len(ps)] == ps {
		return Candidate
	}
	if ps == "" {
		return Candidate
	}
	return NoMatch
}

// unionMatcher matches if any operand matches; if none match outright
// but at least one wants to keep looking, the union keeps looking too.
type unionMatcher struct{ xs []Matcher }

func (m unionMatcher) Match(p RepoPath) Result {
	best := NoMatch
	for _, x := range m.xs {
		if r := x.Match(p); r > best {
			best = r
		}
		if best == Matched {
			return Matched
		}
	}
	return best
}

// intersectMatcher matches only if every operand matches; it keeps
// looking as long as no operand has ruled the path out.
type intersectMatcher struct{ xs []Matcher }

func (m intersectMatcher) Match(p RepoPath) Result {
	best := Matched
	for _, x := range m.xs {
		r := x.Match(p)
		if r == NoMatch {
			return NoMatch
		}
		if r < best {
			best = r
		}
	}
	return best
}

// diffMatcher is "a ~ b": members of a that b does not match.
type diffMatcher struct{ a, b Matcher }

func (m diffMatcher) Match(p RepoPath) Result {
	ra := m.a.Match(p)
	if ra == NoMatch {
		return NoMatch
	}
	rb := m.b.Match(p)
	switch {
	case rb == Matched:
		return NoMatch
	case ra == Matched:
		// b hasn't ruled this whole path out yet (Candidate or
		// NoMatch below); report Candidate when b might still carve
		// out part of the subtree, Matched when b plainly can't.
		if rb == Candidate {
			return Candidate
		}
		return Matched
	default:
		return Candidate
	}
}

// Union, Intersect and Diff combine already-compiled Matchers directly;
// Compile uses them to lower the parsed set-op AST nodes, but callers
// assembling matchers programmatically (e.g. auto_track_pattern ∩
// sparse patterns) can use them too.
func Union(xs ...Matcher) Matcher {
	if len(xs) == 1 {
		return xs[0]
	}
	return unionMatcher{xs: xs}
}

func Intersect(xs ...Matcher) Matcher {
	if len(xs) == 1 {
		return xs[0]
	}
	return intersectMatcher{xs: xs}
}

func Diff(a, b Matcher) Matcher {
	return diffMatcher{a: a, b: b}
}
