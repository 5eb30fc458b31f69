package revset

import (
	"fmt"
	"strings"
)

// lexer is a hand-rolled rune scanner with explicit position tracking,
// in the pos/tok/lit shape demonstrated by the gcfg config scanner: one
// token at a time, no lookahead buffer beyond a single rune, errors
// reported by rune offset rather than line/column since revset
// expressions are always a single line of command-line input.
type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) at(offset int) (rune, bool) {
	if l.pos+offset >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos+offset], true
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '/' || r == '.' || r == '+':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for {
		r, ok := l.peekRune()
		if !ok || (r != ' ' && r != '\t' && r != '\n' && r != '\r') {
			return
		}
		l.pos++
	}
}

// scan returns the next token, consuming it from the input.
func (l *lexer) scan() (token, error) {
	l.skipSpace()
	start := l.pos
	r, ok := l.peekRune()
	if !ok {
		return token{kind: tokEOF, pos: start}, nil
	}

	switch r {
	case '(':
		l.pos++
		return token{kind: tokLParen, lit: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, lit: ")", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, lit: ",", pos: start}, nil
	case '&':
		l.pos++
		return token{kind: tokAmp, lit: "&", pos: start}, nil
	case '|':
		l.pos++
		return token{kind: tokPipe, lit: "|", pos: start}, nil
	case '~':
		l.pos++
		return token{kind: tokTilde, lit: "~", pos: start}, nil
	case '@':
		l.pos++
		return token{kind: tokAt, lit: "@", pos: start}, nil
	case '"':
		return l.scanString(start)
	case ':':
		if next, ok := l.at(1); ok && next == ':' {
			l.pos += 2
			return token{kind: tokColonColon, lit: "::", pos: start}, nil
		}
		return token{}, fmt.Errorf("revset: unexpected %q at offset %d (did you mean \"::\"?)", r, start)
	}

	if r == '.' {
		if next, ok := l.at(1); ok && next == '.' {
			l.pos += 2
			return token{kind: tokDotDot, lit: "..", pos: start}, nil
		}
	}

	if isIdentRune(r) {
		var sb strings.Builder
		for {
			r, ok := l.peekRune()
			if !ok || !isIdentRune(r) {
				break
			}
			// ".." inside an identifier-looking run still terminates the
			// identifier, so bookmark_name..other_name tokenizes as a
			// range rather than one ident containing dots.
			if r == '.' {
				if next, ok := l.at(1); ok && next == '.' {
					break
				}
			}
			sb.WriteRune(r)
			l.pos++
		}
		return token{kind: tokIdent, lit: sb.String(), pos: start}, nil
	}

	return token{}, fmt.Errorf("revset: unexpected character %q at offset %d", r, start)
}

func (l *lexer) scanString(start int) (token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		r, ok := l.peekRune()
		if !ok {
			return token{}, fmt.Errorf("revset: unterminated string starting at offset %d", start)
		}
		l.pos++
		if r == '"' {
			return token{kind: tokString, lit: sb.String(), pos: start}, nil
		}
		if r == '\\' {
			esc, ok := l.peekRune()
			if !ok {
				return token{}, fmt.Errorf("revset: unterminated escape at offset %d", l.pos)
			}
			l.pos++
			switch esc {
			case '"', '\\':
				sb.WriteRune(esc)
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
}
