// Package parse implements a recursive-descent parser for logic
// expressions, following the precedence ladder of spec §6 exactly: `or`
// < `and` < comparisons < `+`/`-` < `*`/`/`/`%` < unary `not` <
// primaries. The `IFTE(...)` grammar variant is rejected; only `if …
// then … [else …] end` is accepted.
package parse

import (
	"fmt"

	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/logic/lex"
	"github.com/nerrad567/drmemd/internal/value"
)

// Parser consumes a flat token stream produced by lex.All.
type Parser struct {
	toks []lex.Token
	pos  int
}

// Expr parses src as a single logic expression.
func Expr(src string) (ast.Expr, error) {
	toks, err := lex.All(src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	p := &Parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if p.cur().Kind != lex.EOF {
		return nil, fmt.Errorf("parse: unexpected trailing token %q", p.cur().Text)
	}
	return e, nil
}

func (p *Parser) cur() lex.Token {
	if p.pos >= len(p.toks) {
		return lex.Token{Kind: lex.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() lex.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lex.Kind, what string) (lex.Token, error) {
	if p.cur().Kind != k {
		return lex.Token{}, fmt.Errorf("expected %s, got %q", what, p.cur().Text)
	}
	return p.advance(), nil
}

// parseOr: and (or and)*
func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lex.KwOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: ast.OpOr, L: left, R: right}
	}
	return left, nil
}

// parseAnd: comparison (and comparison)*
func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lex.KwAnd {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: ast.OpAnd, L: left, R: right}
	}
	return left, nil
}

var comparisonOps = map[lex.Kind]ast.BinaryOp{
	lex.Eq: ast.OpEq,
	lex.Ne: ast.OpNe,
	lex.Lt: ast.OpLt,
	lex.Le: ast.OpLe,
	lex.Gt: ast.OpGt,
	lex.Ge: ast.OpGe,
}

// parseComparison: addSub ((= | <> | < | <= | > | >=) addSub)*
func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().Kind]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: op, L: left, R: right}
	}
}

// parseAddSub: mulDiv ((+ | -) mulDiv)*
func (p *Parser) parseAddSub() (ast.Expr, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case lex.Plus:
			op = ast.OpAdd
		case lex.Minus:
			op = ast.OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: op, L: left, R: right}
	}
}

// parseMulDiv: unaryNot ((* | / | %) unaryNot)*
func (p *Parser) parseMulDiv() (ast.Expr, error) {
	left, err := p.parseUnaryNot()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case lex.Star:
			op = ast.OpMul
		case lex.Slash:
			op = ast.OpDiv
		case lex.Percent:
			op = ast.OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnaryNot()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: op, L: left, R: right}
	}
}

// parseUnaryNot: "not" unaryNot | primary
func (p *Parser) parseUnaryNot() (ast.Expr, error) {
	if p.cur().Kind == lex.KwNot {
		p.advance()
		x, err := p.parseUnaryNot()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.OpNot, X: x}, nil
	}
	return p.parsePrimary()
}

// parsePrimary: literal | "(" expr ")" | "{" ident "}" | "{" ident ":" ident "}" | if-expr
func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur().Kind {
	case lex.KwTrue:
		p.advance()
		return ast.Lit{Value: value.Bool(true)}, nil

	case lex.KwFalse:
		p.advance()
		return ast.Lit{Value: value.Bool(false)}, nil

	case lex.Int:
		tok := p.advance()
		v, err := value.ParseInt(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q: %w", tok.Text, err)
		}
		return ast.Lit{Value: v}, nil

	case lex.Float:
		tok := p.advance()
		v, err := value.ParseFloat(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q: %w", tok.Text, err)
		}
		return ast.Lit{Value: v}, nil

	case lex.String:
		tok := p.advance()
		return ast.Lit{Value: value.Str(tok.Text)}, nil

	case lex.Color:
		tok := p.advance()
		v, err := value.ParseColor(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("bad color literal %q: %w", tok.Text, err)
		}
		return ast.Lit{Value: v}, nil

	case lex.Ident:
		// A bareword outside braces names a color (the only literal
		// kind spelled without punctuation), e.g. `red`.
		tok := p.advance()
		v, err := value.ParseColor(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("unrecognized bareword %q (expected a named color)", tok.Text)
		}
		return ast.Lit{Value: v}, nil

	case lex.LParen:
		p.advance()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.RParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil

	case lex.LBrace:
		return p.parseBraceRef()

	case lex.KwIf:
		return p.parseIf()

	default:
		return nil, fmt.Errorf("unexpected token %q", p.cur().Text)
	}
}

func (p *Parser) parseBraceRef() (ast.Expr, error) {
	p.advance() // consume '{'
	first, err := p.expect(lex.Ident, "identifier")
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lex.Colon {
		p.advance()
		second, err := p.expect(lex.Ident, "identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.RBrace, "'}'"); err != nil {
			return nil, err
		}
		return ast.Builtin{Zone: first.Text, Field: second.Text}, nil
	}
	if _, err := p.expect(lex.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return ast.Ref{Name: first.Text}, nil
}

func (p *Parser) parseIf() (ast.Expr, error) {
	p.advance() // consume 'if'
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.KwThen, "'then'"); err != nil {
		return nil, err
	}
	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	var elseExpr ast.Expr
	if p.cur().Kind == lex.KwElse {
		p.advance()
		elseExpr, err = p.parseOr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lex.KwEnd, "'end'"); err != nil {
		return nil, err
	}
	return ast.If{Cond: cond, Then: then, Else: elseExpr}, nil
}
