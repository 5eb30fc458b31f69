package revset

import "fmt"

// Parse implements spec §4.7 step 1: str -> Expression. Precedence, low
// to high: "|", "~" (binary difference), "&", prefix "~", then the
// range/dag-range postfix forms binding tightest of all around a
// primary.
func Parse(src string) (Expr, error) {
	p := &parser{lex: newLexer(src), src: src}
	if err := p.advance(); err != nil {
		return nil, p.wrap(err)
	}
	expr, err := p.parseUnion()
	if err != nil {
		return nil, p.wrap(err)
	}
	if p.cur.kind != tokEOF {
		return nil, p.wrap(fmt.Errorf("unexpected %s %q", p.cur.kind, p.cur.lit))
	}
	return expr, nil
}

type parser struct {
	lex *lexer
	src string
	cur token
}

func (p *parser) wrap(err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Expr: p.src, Pos: p.cur.pos, Msg: err.Error()}
}

func (p *parser) advance() error {
	t, err := p.lex.scan()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) expect(k kind) error {
	if p.cur.kind != k {
		return fmt.Errorf("expected %s, got %s %q", k, p.cur.kind, p.cur.lit)
	}
	return p.advance()
}

// parseUnion := diffExpr ("|" diffExpr)*
func (p *parser) parseUnion() (Expr, error) {
	left, err := p.parseDiff()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseDiff()
		if err != nil {
			return nil, err
		}
		left = UnionExpr{A: left, B: right}
	}
	return left, nil
}

// parseDiff := intersectExpr ("~" intersectExpr)*
// A leading "~" (no left operand) is the unary Negation, handled in
// parsePrefix; this loop only ever fires for the binary "a ~ b" form.
func (p *parser) parseDiff() (Expr, error) {
	left, err := p.parseIntersect()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokTilde {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseIntersect()
		if err != nil {
			return nil, err
		}
		left = DiffExpr{A: left, B: right}
	}
	return left, nil
}

// parseIntersect := prefix ("&" prefix)*
func (p *parser) parseIntersect() (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokAmp {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrefix()
		if err != nil {
			return nil, err
		}
		left = IntersectExpr{A: left, B: right}
	}
	return left, nil
}

// parsePrefix := "~" prefix | rangeExpr
func (p *parser) parsePrefix() (Expr, error) {
	if p.cur.kind == tokTilde {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parsePrefix()
		if err != nil {
			return nil, err
		}
		return Negation{X: x}, nil
	}
	return p.parseRange()
}

// parseRange := primary? (".." primary? | "::" primary?)?
// A leading ".." or "::" (no left operand) means the range/dag-range is
// open on that side, e.g. "..@" is every ancestor of @.
func (p *parser) parseRange() (Expr, error) {
	var left Expr
	if p.cur.kind != tokDotDot && p.cur.kind != tokColonColon {
		var err error
		left, err = p.parsePrimary()
		if err != nil {
			return nil, err
		}
	}

	switch p.cur.kind {
	case tokDotDot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.maybePrimary()
		if err != nil {
			return nil, err
		}
		return RangeExpr{From: left, To: right}, nil
	case tokColonColon:
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.maybePrimary()
		if err != nil {
			return nil, err
		}
		return DagRangeExpr{From: left, To: right}, nil
	}
	if left == nil {
		return nil, fmt.Errorf("expected an expression, got %s %q", p.cur.kind, p.cur.lit)
	}
	return left, nil
}

// maybePrimary parses a primary if one follows, or returns nil for the
// open end of a range (e.g. the trailing side of "x..").
func (p *parser) maybePrimary() (Expr, error) {
	switch p.cur.kind {
	case tokEOF, tokRParen, tokComma, tokAmp, tokPipe, tokTilde:
		return nil, nil
	}
	return p.parsePrimary()
}

// parsePrimary := "@" | IDENT ("@" IDENT?)? | STRING | IDENT "(" args ")" | "(" union ")"
func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case tokAt:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return At{}, nil
	case tokString:
		v := p.cur.lit
		if err := p.advance(); err != nil {
			return nil, err
		}
		return StringArg{Value: v}, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		name := p.cur.lit
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tokLParen {
			return p.parseFuncArgs(name)
		}
		if p.cur.kind == tokAt {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.kind == tokIdent {
				remote := p.cur.lit
				if err := p.advance(); err != nil {
					return nil, err
				}
				return RemoteSymbol{Name: name, Remote: remote}, nil
			}
			return WorkspaceAt{Workspace: name}, nil
		}
		return Symbol{Name: name}, nil
	}
	return nil, fmt.Errorf("expected an expression, got %s %q", p.cur.kind, p.cur.lit)
}

func (p *parser) parseFuncArgs(name string) (Expr, error) {
	if err := p.advance(); err != nil { // consume "("
		return nil, err
	}
	var args []Expr
	if p.cur.kind != tokRParen {
		for {
			arg, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return FuncCall{Name: name, Args: args}, nil
}
