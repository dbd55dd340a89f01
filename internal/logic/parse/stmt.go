package parse

import (
	"fmt"

	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/logic/lex"
)

// Stmt parses one `exprs` entry: `expr -> {output}`.
func Stmt(src string) (ast.Stmt, error) {
	toks, err := lex.All(src)
	if err != nil {
		return ast.Stmt{}, fmt.Errorf("parse: %w", err)
	}
	p := &Parser{toks: toks}

	e, err := p.parseOr()
	if err != nil {
		return ast.Stmt{}, fmt.Errorf("parse: %w", err)
	}
	if _, err := p.expect(lex.Arrow, "'->'"); err != nil {
		return ast.Stmt{}, fmt.Errorf("parse: %w", err)
	}
	if _, err := p.expect(lex.LBrace, "'{'"); err != nil {
		return ast.Stmt{}, fmt.Errorf("parse: %w", err)
	}
	out, err := p.expect(lex.Ident, "output identifier")
	if err != nil {
		return ast.Stmt{}, fmt.Errorf("parse: %w", err)
	}
	if _, err := p.expect(lex.RBrace, "'}'"); err != nil {
		return ast.Stmt{}, fmt.Errorf("parse: %w", err)
	}
	if p.cur().Kind != lex.EOF {
		return ast.Stmt{}, fmt.Errorf("parse: unexpected trailing token %q", p.cur().Text)
	}

	return ast.Stmt{Output: out.Text, Expr: e}, nil
}
