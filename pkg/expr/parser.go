package expr

import (
	"fmt"
	"strconv"
	"strings"

	"mercator-hq/mixer/pkg/schema"
)

// MaxDepth bounds the nesting of parentheses and unary operators.
const MaxDepth = 64

// Parse parses expression source into a Node. Empty or whitespace-only
// source parses to True.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return True, nil
	}

	p := &parser{lex: &lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokEOF {
		return nil, p.unexpected("end of input")
	}
	return n, nil
}

// MustParse is Parse for sources known to be valid. It panics on error.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	lex   *lexer
	tok   token
	depth int
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) unexpected(want string) error {
	got := p.tok.typ.String()
	if p.tok.typ == tokIdent || p.tok.typ == tokNumber {
		got = fmt.Sprintf("%s %q", got, p.tok.text)
	}
	return p.lex.errorf(p.tok.offset, fmt.Sprintf("expected %s, found %s", want, got))
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.lex.errorf(p.tok.offset, fmt.Sprintf("expression nested deeper than %d", MaxDepth))
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOr() (Node, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokOr {
		offset := p.tok.offset
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: OpOr, X: x, Y: y, Offset: offset}
	}
	return x, nil
}

func (p *parser) parseAnd() (Node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokAnd {
		offset := p.tok.offset
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: OpAnd, X: x, Y: y, Offset: offset}
	}
	return x, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.tok.typ != tokNot {
		return p.parseCompare()
	}

	offset := p.tok.offset
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Unary{Op: OpNot, X: x, Offset: offset}, nil
}

func (p *parser) parseCompare() (Node, error) {
	x, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	var op Op
	switch p.tok.typ {
	case tokEq:
		op = OpEq
	case tokNe:
		op = OpNe
	default:
		return x, nil
	}

	offset := p.tok.offset
	if err := p.advance(); err != nil {
		return nil, err
	}
	y, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.tok.typ == tokEq || p.tok.typ == tokNe {
		return nil, p.lex.errorf(p.tok.offset, "comparison operators cannot be chained")
	}

	return &Binary{Op: op, X: asPattern(x), Y: asPattern(y), Offset: offset}, nil
}

func (p *parser) parseOperand() (Node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokPipe {
		offset := p.tok.offset
		if err := p.advance(); err != nil {
			return nil, err
		}
		y, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: OpDefault, X: x, Y: y, Offset: offset}
	}
	return x, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.tok
	switch tok.typ {
	case tokTrue, tokFalse:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Value: schema.Bool(tok.typ == tokTrue), Offset: tok.offset}, nil

	case tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Value: schema.String(tok.text), Offset: tok.offset}, nil

	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.lex.errorf(tok.offset, fmt.Sprintf("invalid number %q", tok.text))
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Value: schema.Number(f), Offset: tok.offset}, nil

	case tokIdent:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &AttrRef{Name: tok.text, Offset: tok.offset}, nil

	case tokLParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.typ != tokRParen {
			return nil, p.unexpected("')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return x, nil
	}

	return nil, p.unexpected("expression")
}

// asPattern turns a string literal with a trailing '*' into a Pattern.
func asPattern(n Node) Node {
	lit, ok := n.(*Literal)
	if !ok {
		return n
	}
	s, isStr := lit.Value.Str()
	if !isStr || !strings.HasSuffix(s, "*") {
		return n
	}
	if s == "*" {
		return &Pattern{Any: true, Offset: lit.Offset}
	}
	return &Pattern{Prefix: strings.TrimSuffix(s, "*"), Offset: lit.Offset}
}
