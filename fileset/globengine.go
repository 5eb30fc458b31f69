package fileset

import (
	"strings"
	"unicode/utf8"
)

// globEngine is the glob-pattern compiler and matcher fileset's
// globMatcher (glob.go) is built on: a trimmed adaptation of the
// teacher's wildmatch package, keeping the token-based component matcher
// but dropping the basename/case-fold/gitattributes modes fileset has no
// use for (directory-prefix walking is handled by globMatcher itself,
// not by this engine).
type globEngine struct {
	ts []globToken
	p  string
}

const globSep byte = '/'

func newGlobEngine(pattern string) *globEngine {
	g := &globEngine{p: pattern}
	parts := strings.Split(pattern, string(globSep))
	g.ts = g.parseTokens(parts)
	return g
}

func (g *globEngine) parseTokens(dirs []string) []globToken {
	if len(dirs) == 0 {
		return nil
	}
	switch dirs[0] {
	case "":
		if len(dirs) == 1 {
			return []globToken{&globComponent{fns: []globComponentFn{globSubstring("")}}}
		}
		return g.parseTokens(dirs[1:])
	case "**":
		rest := g.parseTokens(dirs[1:])
		if len(rest) == 0 {
			return []globToken{&globDoubleStar{until: nil}}
		}
		return append([]globToken{&globDoubleStar{until: rest[0]}}, rest[1:]...)
	default:
		return append([]globToken{&globComponent{fns: parseGlobComponent(dirs[0])}}, g.parseTokens(dirs[1:])...)
	}
}

// Match reports whether the full path t matches the compiled pattern.
func (g *globEngine) Match(t string) bool {
	dirs := strings.Split(t, string(globSep))
	for _, tok := range g.ts {
		var ok bool
		dirs, ok = tok.consume(dirs)
		if !ok {
			return false
		}
	}
	return len(dirs) == 0
}

// globToken matches zero, one, or more path components.
type globToken interface {
	consume(path []string) ([]string, bool)
}

// globDoubleStar greedily matches zero or more components until a
// successor token (or the end of the path, if there is none).
type globDoubleStar struct {
	until globToken
}

func (d *globDoubleStar) consume(path []string) ([]string, bool) {
	if d.until == nil {
		return nil, true
	}
	for i := len(path); i >= 0; i-- {
		if rest, ok := d.until.consume(path[i:]); ok {
			return rest, true
		}
	}
	return path, false
}

// globComponent matches exactly one path component by applying its
// componentFns in sequence.
type globComponent struct {
	fns []globComponentFn
}

func (c *globComponent) consume(path []string) ([]string, bool) {
	if len(path) == 0 {
		return path, false
	}
	head := path[0]
	for _, fn := range c.fns {
		var ok bool
		if head, ok = fn.apply(head); !ok {
			return path, false
		}
	}
	if len(head) > 0 {
		return path, false
	}
	return path[1:], true
}

type globComponentFn interface {
	apply(s string) (rest string, ok bool)
}

type globFn func(s string) (string, bool)

func (f globFn) apply(s string) (string, bool) { return f(s) }

func globSubstring(sub string) globComponentFn {
	return globFn(func(s string) (string, bool) {
		if !strings.HasPrefix(s, sub) {
			return s, false
		}
		return s[len(sub):], true
	})
}

// globWildcard greedily matches until the remaining component fns (fns)
// succeed on what's left.
func globWildcard(fns []globComponentFn) globComponentFn {
	until := func(s string) (string, bool) {
		head := s
		for _, fn := range fns {
			var ok bool
			if head, ok = fn.apply(head); !ok {
				return s, false
			}
		}
		if len(head) > 0 {
			return s, false
		}
		return "", true
	}
	return globFn(func(s string) (string, bool) {
		for i := len(s); i >= 0; i-- {
			if rest, ok := until(s[i:]); ok {
				return rest, true
			}
		}
		return s, false
	})
}

func parseGlobComponent(s string) []globComponentFn {
	if len(s) == 0 {
		return nil
	}
	switch s[0] {
	case '\\':
		if len(s) < 2 {
			return []globComponentFn{globSubstring(`\`)}
		}
		return append([]globComponentFn{globSubstring(string(s[1]))}, parseGlobComponent(s[2:])...)
	case '[':
		return parseGlobClass(s)
	case '?':
		return append([]globComponentFn{globFn(func(s string) (string, bool) {
			if len(s) == 0 {
				return s, false
			}
			_, l := utf8.DecodeRuneInString(s)
			return s[l:], true
		})}, parseGlobComponent(s[1:])...)
	case '*':
		return []globComponentFn{globWildcard(parseGlobComponent(s[1:]))}
	default:
		i := 0
		for i < len(s) && s[i] != '[' && s[i] != '*' && s[i] != '?' && s[i] != '\\' {
			i++
		}
		return append([]globComponentFn{globSubstring(s[:i])}, parseGlobComponent(s[i:])...)
	}
}

// parseGlobClass parses a leading "[...]" character class off s. A
// malformed class (unclosed bracket) degrades to a literal "[" rather
// than panicking: unlike the teacher's wildmatch, fileset patterns come
// from config files and revset-style user input, not a pre-validated
// attributes file, so a bad pattern should fail to match, not crash.
func parseGlobClass(s string) []globComponentFn {
	close := strings.IndexByte(s[1:], ']')
	if close < 0 {
		return append([]globComponentFn{globSubstring("[")}, parseGlobComponent(s[1:])...)
	}
	body := s[1 : close+1]
	rest := s[close+2:]

	neg := false
	if strings.HasPrefix(body, "^") || strings.HasPrefix(body, "!") {
		neg = true
		body = body[1:]
	}
	var runes []rune
	var ranges [][2]rune
	for i := 0; i < len(body); {
		if i+2 < len(body) && body[i+1] == '-' {
			ranges = append(ranges, [2]rune{rune(body[i]), rune(body[i+2])})
			i += 3
			continue
		}
		r, l := utf8.DecodeRuneInString(body[i:])
		runes = append(runes, r)
		i += l
	}
	match := func(r rune) bool {
		for _, x := range runes {
			if x == r {
				return true
			}
		}
		for _, rg := range ranges {
			lo, hi := rg[0], rg[1]
			if hi < lo {
				lo, hi = hi, lo
			}
			if lo <= r && r <= hi {
				return true
			}
		}
		return false
	}
	fn := globFn(func(s string) (string, bool) {
		if len(s) == 0 {
			return s, false
		}
		r, l := utf8.DecodeRuneInString(s)
		if match(r) == neg {
			return s, false
		}
		return s[l:], true
	})
	return append([]globComponentFn{fn}, parseGlobComponent(rest)...)
}
