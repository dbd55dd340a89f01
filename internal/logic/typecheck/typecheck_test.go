package typecheck

import (
	"testing"

	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/logic/parse"
	"github.com/nerrad567/drmemd/internal/value"
)

func mustExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	e, err := parse.Expr(src)
	if err != nil {
		t.Fatalf("parse.Expr(%q): %v", src, err)
	}
	return e
}

func TestCheck_SimpleBoolOutput(t *testing.T) {
	stmt, err := parse.Stmt("{motion} and not {override} -> {light}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{
		Inputs:  map[string]value.Tag{"motion": value.TagBool, "override": value.TagBool},
		Outputs: map[string]value.Tag{"light": value.TagBool},
	}
	if _, err := Check([]ast.Stmt{stmt}, env); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheck_OutputTypeMismatchErrors(t *testing.T) {
	stmt, err := parse.Stmt("1 + 2 -> {light}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{Outputs: map[string]value.Tag{"light": value.TagBool}}
	if _, err := Check([]ast.Stmt{stmt}, env); err == nil {
		t.Fatal("expected type mismatch error (int expr into bool output)")
	}
}

func TestCheck_UndeclaredOutputErrors(t *testing.T) {
	stmt, err := parse.Stmt("true -> {nope}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	if _, err := Check([]ast.Stmt{stmt}, Env{}); err == nil {
		t.Fatal("expected error for statement targeting an undeclared output")
	}
}

func TestCheck_DefsResolveAndMemoize(t *testing.T) {
	stmt, err := parse.Stmt("{doubled} > 10 -> {alarm}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{
		Inputs:  map[string]value.Tag{"count": value.TagInt32},
		Outputs: map[string]value.Tag{"alarm": value.TagBool},
		Defs:    map[string]ast.Expr{"doubled": mustExpr(t, "{count} * 2")},
	}
	res, err := Check([]ast.Stmt{stmt}, env)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.DefTypes["doubled"] != value.TagInt32 {
		t.Errorf("expected doubled to resolve to int32, got %v", res.DefTypes["doubled"])
	}
}

func TestCheck_DefCycleDetected(t *testing.T) {
	stmt, err := parse.Stmt("{a} -> {out}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{
		Outputs: map[string]value.Tag{"out": value.TagBool},
		Defs: map[string]ast.Expr{
			"a": mustExpr(t, "{b}"),
			"b": mustExpr(t, "{a}"),
		},
	}
	if _, err := Check([]ast.Stmt{stmt}, env); err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestCheck_BuiltinTimeAndSolarFields(t *testing.T) {
	stmt, err := parse.Stmt("{utc:hour} >= 6 and {solar:altitude} > 0.0 -> {daylight}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{Outputs: map[string]value.Tag{"daylight": value.TagBool}}
	if _, err := Check([]ast.Stmt{stmt}, env); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheck_UnknownZoneErrors(t *testing.T) {
	stmt, err := parse.Stmt("{mars:hour} > 0 -> {out}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{Outputs: map[string]value.Tag{"out": value.TagBool}}
	if _, err := Check([]ast.Stmt{stmt}, env); err == nil {
		t.Fatal("expected error for unknown builtin zone")
	}
}

func TestCheck_IfBranchTypeMismatch(t *testing.T) {
	stmt, err := parse.Stmt(`if true then 1 else "x" end -> {out}`)
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	env := Env{Outputs: map[string]value.Tag{"out": value.TagInt32}}
	if _, err := Check([]ast.Stmt{stmt}, env); err == nil {
		t.Fatal("expected error for mismatched if/else branch types")
	}
}
