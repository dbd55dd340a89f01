// Package typecheck statically type-checks parsed logic expressions
// against device-declared types (spec §4.5), including detecting
// cycles in shared `defs` subexpressions (spec §9).
package typecheck

import (
	"fmt"

	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/value"
)

// timeFields maps a utc/local zone field to its type.
var timeFields = map[string]value.Tag{
	"seconds":        value.TagInt32,
	"minute":         value.TagInt32,
	"hour":           value.TagInt32,
	"day":            value.TagInt32,
	"month":          value.TagInt32,
	"year":           value.TagInt32,
	"day-of-week":    value.TagInt32,
	"day-of-year":    value.TagInt32,
	"start-of-month": value.TagInt32,
	"end-of-month":   value.TagInt32,
	"leap-year":      value.TagBool,
}

// solarFields maps a solar zone field to its type. All solar fields
// are floats (degrees).
var solarFields = map[string]value.Tag{
	"altitude":        value.TagFloat64,
	"azimuth":         value.TagFloat64,
	"right-ascension": value.TagFloat64,
	"declination":     value.TagFloat64,
}

// Env is the symbol table a Check call resolves references against:
// input device types and the raw, not-yet-checked def expressions.
type Env struct {
	Inputs  map[string]value.Tag
	Outputs map[string]value.Tag
	Defs    map[string]ast.Expr
}

// Result is the successful output of Check: every def's inferred type
// (for eval's memoization) plus nothing else — errors halt loading.
type Result struct {
	DefTypes map[string]value.Tag
}

const (
	white = 0
	gray  = 1
	black = 2
)

// Check type-checks every statement in stmts against env, resolving
// `defs` as a DAG (detecting cycles) before checking each statement's
// expression against its declared output type.
func Check(stmts []ast.Stmt, env Env) (Result, error) {
	defTypes := make(map[string]value.Tag, len(env.Defs))
	color := make(map[string]int, len(env.Defs))

	var resolveDef func(name string) (value.Tag, error)
	resolveDef = func(name string) (value.Tag, error) {
		if t, ok := defTypes[name]; ok {
			return t, nil
		}
		switch color[name] {
		case gray:
			return 0, fmt.Errorf("typecheck: cycle detected in defs involving %q", name)
		case black:
			// unreachable: black implies defTypes already set
		}
		expr, ok := env.Defs[name]
		if !ok {
			return 0, fmt.Errorf("typecheck: undefined def %q", name)
		}
		color[name] = gray
		t, err := infer(expr, env, resolveDef)
		if err != nil {
			return 0, err
		}
		color[name] = black
		defTypes[name] = t
		return t, nil
	}

	for name := range env.Defs {
		if _, err := resolveDef(name); err != nil {
			return Result{}, err
		}
	}

	for _, stmt := range stmts {
		outType, ok := env.Outputs[stmt.Output]
		if !ok {
			return Result{}, fmt.Errorf("typecheck: statement targets undeclared output %q", stmt.Output)
		}
		exprType, err := infer(stmt.Expr, env, resolveDef)
		if err != nil {
			return Result{}, err
		}
		if exprType != outType {
			return Result{}, fmt.Errorf("typecheck: output %q declared %v, expression yields %v", stmt.Output, outType, exprType)
		}
	}

	return Result{DefTypes: defTypes}, nil
}

// infer computes expr's type under env, resolving def references via
// resolveDef (which memoizes and detects cycles).
func infer(expr ast.Expr, env Env, resolveDef func(string) (value.Tag, error)) (value.Tag, error) {
	switch e := expr.(type) {
	case ast.Lit:
		return e.Value.Kind(), nil

	case ast.Ref:
		if t, ok := env.Inputs[e.Name]; ok {
			return t, nil
		}
		if t, ok := env.Outputs[e.Name]; ok {
			return t, nil
		}
		if _, ok := env.Defs[e.Name]; ok {
			return resolveDef(e.Name)
		}
		return 0, fmt.Errorf("typecheck: undeclared local name %q", e.Name)

	case ast.Builtin:
		switch e.Zone {
		case "utc", "local":
			t, ok := timeFields[e.Field]
			if !ok {
				return 0, fmt.Errorf("typecheck: unknown %s field %q", e.Zone, e.Field)
			}
			return t, nil
		case "solar":
			t, ok := solarFields[e.Field]
			if !ok {
				return 0, fmt.Errorf("typecheck: unknown solar field %q", e.Field)
			}
			return t, nil
		default:
			return 0, fmt.Errorf("typecheck: unknown zone %q", e.Zone)
		}

	case ast.Unary:
		t, err := infer(e.X, env, resolveDef)
		if err != nil {
			return 0, err
		}
		if t != value.TagBool {
			return 0, fmt.Errorf("typecheck: 'not' requires bool, got %v", t)
		}
		return value.TagBool, nil

	case ast.Binary:
		return inferBinary(e, env, resolveDef)

	case ast.If:
		condType, err := infer(e.Cond, env, resolveDef)
		if err != nil {
			return 0, err
		}
		if condType != value.TagBool {
			return 0, fmt.Errorf("typecheck: 'if' condition must be bool, got %v", condType)
		}
		thenType, err := infer(e.Then, env, resolveDef)
		if err != nil {
			return 0, err
		}
		if e.Else == nil {
			return thenType, nil
		}
		elseType, err := infer(e.Else, env, resolveDef)
		if err != nil {
			return 0, err
		}
		if thenType != elseType {
			return 0, fmt.Errorf("typecheck: 'if' branches differ: %v vs %v", thenType, elseType)
		}
		return thenType, nil

	default:
		return 0, fmt.Errorf("typecheck: unhandled expression node %T", expr)
	}
}

func isNumeric(t value.Tag) bool {
	return t == value.TagInt32 || t == value.TagFloat64
}

func inferBinary(e ast.Binary, env Env, resolveDef func(string) (value.Tag, error)) (value.Tag, error) {
	l, err := infer(e.L, env, resolveDef)
	if err != nil {
		return 0, err
	}
	r, err := infer(e.R, env, resolveDef)
	if err != nil {
		return 0, err
	}

	switch e.Op {
	case ast.OpAnd, ast.OpOr:
		if l != value.TagBool || r != value.TagBool {
			return 0, fmt.Errorf("typecheck: boolean operator requires bool operands, got %v and %v", l, r)
		}
		return value.TagBool, nil

	case ast.OpEq, ast.OpNe:
		if isNumeric(l) && isNumeric(r) {
			return value.TagBool, nil
		}
		if l != r {
			return 0, fmt.Errorf("typecheck: equality requires matching types, got %v and %v", l, r)
		}
		return value.TagBool, nil

	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		if !isNumeric(l) || !isNumeric(r) {
			return 0, fmt.Errorf("typecheck: comparison requires numeric operands, got %v and %v", l, r)
		}
		return value.TagBool, nil

	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if !isNumeric(l) || !isNumeric(r) {
			return 0, fmt.Errorf("typecheck: arithmetic requires numeric operands, got %v and %v", l, r)
		}
		if l == value.TagFloat64 || r == value.TagFloat64 {
			return value.TagFloat64, nil
		}
		return value.TagInt32, nil

	default:
		return 0, fmt.Errorf("typecheck: unhandled binary operator %v", e.Op)
	}
}
