package fileset

import "fmt"

// Parse turns a fileset expression string into an Expr tree. Precedence,
// low to high: "|", "~" (binary difference), "&", prefix "~", then a
// primary (literal, function call, or parenthesized sub-expression).
func Parse(src string) (Expr, error) {
	p := &parser{lex: newLexer(src), src: src}
	if err := p.advance(); err != nil {
		return nil, p.wrap(err)
	}
	expr, err := p.parseUnion()
	if err != nil {
		return nil, p.wrap(err)
	}
	if p.cur.kind != fEOF {
		return nil, p.wrap(fmt.Errorf("unexpected %s %q", p.cur.kind, p.cur.lit))
	}
	return expr, nil
}

type parser struct {
	lex *lexer
	src string
	cur ftoken
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

func (p *parser) expect(k fkind) error {
	if p.cur.kind != k {
		return fmt.Errorf("expected %s, got %s %q", k, p.cur.kind, p.cur.lit)
	}
	return p.advance()
}

func (p *parser) parseUnion() (Expr, error) {
	left, err := p.parseDiff()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == fPipe {
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

func (p *parser) parseDiff() (Expr, error) {
	left, err := p.parseIntersect()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == fTilde {
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

func (p *parser) parseIntersect() (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == fAmp {
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

func (p *parser) parsePrefix() (Expr, error) {
	if p.cur.kind == fTilde {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parsePrefix()
		if err != nil {
			return nil, err
		}
		return Negation{X: x}, nil
	}
	return p.parsePrimary()
}

// parsePrimary := STRING | IDENT ("(" args ")")? | "(" union ")"
func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case fString:
		v := p.cur.lit
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	case fLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if err := p.expect(fRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case fIdent:
		name := p.cur.lit
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == fLParen {
			return p.parseFuncArgs(name)
		}
		return Literal{Value: name}, nil
	}
	return nil, fmt.Errorf("expected an expression, got %s %q", p.cur.kind, p.cur.lit)
}

func (p *parser) parseFuncArgs(name string) (Expr, error) {
	if err := p.advance(); err != nil { // consume "("
		return nil, err
	}
	var args []string
	if p.cur.kind != fRParen {
		for {
			if p.cur.kind != fIdent && p.cur.kind != fString {
				return nil, fmt.Errorf("expected a string argument to %s(), got %s %q", name, p.cur.kind, p.cur.lit)
			}
			args = append(args, p.cur.lit)
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.kind != fComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(fRParen); err != nil {
		return nil, err
	}
	return FuncCall{Name: name, Args: args}, nil
}
