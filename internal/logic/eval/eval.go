// Package eval hosts the logic engine's reactive per-block evaluator
// (spec §4.5): Eval computes one expression against a value
// environment, and Node wires a typechecked logic block into the
// device fabric, recomputing on every input/clock event.
package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/value"
)

// ErrMissingValue is returned when an expression references a local
// name whose current value is not yet known (e.g. an input device that
// has never been written).
var ErrMissingValue = errors.New("eval: referenced value not yet available")

// Env is the current value of every local name (inputs, defs, and
// builtins already resolved to plain values for this pass) available
// to Eval.
type Env map[string]value.Value

// Eval computes expr's value against env. defs are resolved through
// env the same way inputs are: the caller pre-populates env with each
// def's memoized value for this pass before evaluating any statement
// that references it.
func Eval(expr ast.Expr, env Env) (value.Value, error) {
	switch e := expr.(type) {
	case ast.Lit:
		return e.Value, nil

	case ast.Ref:
		v, ok := env[e.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingValue, e.Name)
		}
		return v, nil

	case ast.Builtin:
		v, ok := env[builtinKey(e.Zone, e.Field)]
		if !ok {
			return nil, fmt.Errorf("%w: %s:%s", ErrMissingValue, e.Zone, e.Field)
		}
		return v, nil

	case ast.Unary:
		return evalUnary(e, env)

	case ast.Binary:
		return evalBinary(e, env)

	case ast.If:
		cond, err := Eval(e.Cond, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(value.Bool)
		if !ok {
			return nil, fmt.Errorf("eval: 'if' condition is not bool: %v", cond)
		}
		if bool(b) {
			return Eval(e.Then, env)
		}
		if e.Else == nil {
			return nil, nil // no-update sentinel: caller skips the write
		}
		return Eval(e.Else, env)

	default:
		return nil, fmt.Errorf("eval: unhandled expression node %T", expr)
	}
}

// builtinKey is the Env key a Node stores a resolved {zone:field}
// pseudo-device value under.
func builtinKey(zone, field string) string {
	return zone + ":" + field
}

func evalUnary(e ast.Unary, env Env) (value.Value, error) {
	x, err := Eval(e.X, env)
	if err != nil {
		return nil, err
	}
	b, ok := x.(value.Bool)
	if !ok {
		return nil, fmt.Errorf("eval: 'not' operand is not bool: %v", x)
	}
	switch e.Op {
	case ast.OpNot:
		return value.Bool(!b), nil
	default:
		return nil, fmt.Errorf("eval: unhandled unary operator %v", e.Op)
	}
}

func evalBinary(e ast.Binary, env Env) (value.Value, error) {
	l, err := Eval(e.L, env)
	if err != nil {
		return nil, err
	}
	r, err := Eval(e.R, env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case ast.OpAnd:
		lb, lok := l.(value.Bool)
		rb, rok := r.(value.Bool)
		if !lok || !rok {
			return nil, fmt.Errorf("eval: 'and' requires bool operands")
		}
		return value.Bool(lb && rb), nil

	case ast.OpOr:
		lb, lok := l.(value.Bool)
		rb, rok := r.(value.Bool)
		if !lok || !rok {
			return nil, fmt.Errorf("eval: 'or' requires bool operands")
		}
		return value.Bool(lb || rb), nil

	case ast.OpEq:
		return compareEq(l, r)

	case ast.OpNe:
		eq, err := compareEq(l, r)
		if err != nil {
			return nil, err
		}
		return value.Bool(!bool(eq.(value.Bool))), nil

	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return compareOrder(e.Op, l, r)

	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return arith(e.Op, l, r)

	default:
		return nil, fmt.Errorf("eval: unhandled binary operator %v", e.Op)
	}
}

func compareEq(l, r value.Value) (value.Value, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if lok && rok {
		return value.Bool(lf == rf), nil
	}
	if l.Kind() != r.Kind() {
		return nil, fmt.Errorf("eval: equality requires matching types, got %v and %v", l.Kind(), r.Kind())
	}
	switch lv := l.(type) {
	case value.Bool:
		return value.Bool(lv == r.(value.Bool)), nil
	case value.Str:
		return value.Bool(lv == r.(value.Str)), nil
	case value.Color:
		return value.Bool(lv == r.(value.Color)), nil
	default:
		return nil, fmt.Errorf("eval: equality not defined for %v", l.Kind())
	}
}

func compareOrder(op ast.BinaryOp, l, r value.Value) (value.Value, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("eval: comparison requires numeric operands, got %v and %v", l.Kind(), r.Kind())
	}
	switch op {
	case ast.OpLt:
		return value.Bool(lf < rf), nil
	case ast.OpLe:
		return value.Bool(lf <= rf), nil
	case ast.OpGt:
		return value.Bool(lf > rf), nil
	case ast.OpGe:
		return value.Bool(lf >= rf), nil
	default:
		return nil, fmt.Errorf("eval: unhandled comparison operator %v", op)
	}
}

func asFloat(v value.Value) (float64, bool) {
	switch x := v.(type) {
	case value.Int32:
		return float64(x), true
	case value.Float64:
		return float64(x), true
	default:
		return 0, false
	}
}

func arith(op ast.BinaryOp, l, r value.Value) (value.Value, error) {
	li, liok := l.(value.Int32)
	ri, riok := r.(value.Int32)
	if liok && riok {
		return arithInt(op, int64(li), int64(ri))
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("eval: arithmetic requires numeric operands, got %v and %v", l.Kind(), r.Kind())
	}
	return arithFloat(op, lf, rf)
}

func arithInt(op ast.BinaryOp, l, r int64) (value.Value, error) {
	var result int64
	switch op {
	case ast.OpAdd:
		result = l + r
	case ast.OpSub:
		result = l - r
	case ast.OpMul:
		result = l * r
	case ast.OpDiv:
		if r == 0 {
			return nil, fmt.Errorf("eval: integer division by zero")
		}
		result = l / r
	case ast.OpMod:
		if r == 0 {
			return nil, fmt.Errorf("eval: integer modulo by zero")
		}
		result = l % r
	default:
		return nil, fmt.Errorf("eval: unhandled arithmetic operator %v", op)
	}
	if result > math.MaxInt32 || result < math.MinInt32 {
		return nil, fmt.Errorf("eval: integer overflow computing %d %v %d", l, op, r)
	}
	return value.Int32(int32(result)), nil
}

func arithFloat(op ast.BinaryOp, l, r float64) (value.Value, error) {
	switch op {
	case ast.OpAdd:
		return value.Float64(l + r), nil
	case ast.OpSub:
		return value.Float64(l - r), nil
	case ast.OpMul:
		return value.Float64(l * r), nil
	case ast.OpDiv:
		if r == 0 {
			return nil, fmt.Errorf("eval: float division by zero")
		}
		return value.Float64(l / r), nil
	case ast.OpMod:
		if r == 0 {
			return nil, fmt.Errorf("eval: float modulo by zero")
		}
		return value.Float64(math.Mod(l, r)), nil
	default:
		return nil, fmt.Errorf("eval: unhandled arithmetic operator %v", op)
	}
}
