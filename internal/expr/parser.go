package expr

import "fmt"

type parser struct {
	lex *lexer
	tok token
}

func newParser(src string, offset int) (*parser, error) {
	p := &parser{lex: &lexer{src: src, pos: offset}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.tok.kind != kind {
		return fmt.Errorf("expected %s at offset %d, found %q", what, p.tok.pos, p.tok.text)
	}
	return p.advance()
}

// Parse parses a bare expression (without the ${ } delimiters).
func Parse(src string) (Expr, error) {
	p, err := newParser(src, 0)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
	}
	return e, nil
}

func (p *parser) parseExpr() (Expr, error) {
	switch p.tok.kind {
	case tokNumber:
		n := p.tok.num
		return &Literal{Value: n}, p.advance()
	case tokString:
		s := p.tok.text
		return &Literal{Value: s}, p.advance()
	case tokIdent:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch name {
		case "true":
			return &Literal{Value: true}, nil
		case "false":
			return &Literal{Value: false}, nil
		case "null":
			return &Literal{Value: nil}, nil
		}
		if p.tok.kind == tokLParen {
			return p.parseCall(name)
		}
		return p.parseTraversal(name)
	default:
		return nil, fmt.Errorf("expected expression at offset %d, found %q", p.tok.pos, p.tok.text)
	}
}

func (p *parser) parseCall(name string) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	call := &Call{Name: name}
	if p.tok.kind == tokRParen {
		return call, p.advance()
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return call, nil
	}
}

func (p *parser) parseTraversal(root string) (Expr, error) {
	t := &Traversal{Root: root}
	for {
		switch p.tok.kind {
		case tokDot:
			if err := p.advance(); err != nil {
				return nil, err
			}
			switch p.tok.kind {
			case tokIdent:
				t.Steps = append(t.Steps, Step{Kind: StepAttr, Name: p.tok.text})
			case tokNumber:
				// legacy list.0 index form
				idx, err := AsInt(p.tok.num)
				if err != nil {
					return nil, err
				}
				t.Steps = append(t.Steps, Step{Kind: StepIndex, Index: idx})
			default:
				return nil, fmt.Errorf("expected attribute name at offset %d", p.tok.pos)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokLBracket:
			if err := p.advance(); err != nil {
				return nil, err
			}
			switch p.tok.kind {
			case tokStar:
				t.Steps = append(t.Steps, Step{Kind: StepSplat})
			case tokNumber:
				idx, err := AsInt(p.tok.num)
				if err != nil {
					return nil, err
				}
				if idx < 0 {
					return nil, fmt.Errorf("negative index %d at offset %d", idx, p.tok.pos)
				}
				t.Steps = append(t.Steps, Step{Kind: StepIndex, Index: idx})
			case tokString:
				t.Steps = append(t.Steps, Step{Kind: StepAttr, Name: p.tok.text})
			default:
				return nil, fmt.Errorf("expected index at offset %d", p.tok.pos)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
		default:
			return t, nil
		}
	}
}
