package logic

import (
	"testing"

	"github.com/nerrad567/drmemd/internal/infrastructure/config"
)

func TestCompile_ParsesInputsOutputsDefsExprs(t *testing.T) {
	cfg := config.LogicConfig{
		Label:   "porch",
		Inputs:  map[string]string{"motion": "m:sensor"},
		Outputs: map[string]string{"light": "o:relay"},
		Defs:    map[string]string{"active": "{motion} and not {override}"},
		Exprs:   []string{"{active} -> {light}"},
	}
	// override isn't declared as an input, but defs aren't typechecked
	// until eval.NewNode, so Compile alone should still succeed.
	block, err := Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if block.Label != "porch" {
		t.Errorf("expected label porch, got %q", block.Label)
	}
	if block.Inputs["motion"] != "m:sensor" {
		t.Errorf("expected input motion=m:sensor, got %q", block.Inputs["motion"])
	}
	if len(block.Stmts) != 1 || block.Stmts[0].Output != "light" {
		t.Fatalf("expected one statement targeting light, got %+v", block.Stmts)
	}
}

func TestCompile_MissingLabelErrors(t *testing.T) {
	_, err := Compile(config.LogicConfig{})
	if err == nil {
		t.Fatal("expected error for missing label")
	}
}

func TestCompile_BadDeviceNameErrors(t *testing.T) {
	cfg := config.LogicConfig{
		Label:  "bad",
		Inputs: map[string]string{"x": "not a valid name!"},
	}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected error for malformed device name")
	}
}

func TestCompile_StatementTargetingUndeclaredOutputErrors(t *testing.T) {
	cfg := config.LogicConfig{
		Label:   "bad",
		Outputs: map[string]string{"light": "o:relay"},
		Exprs:   []string{"true -> {nope}"},
	}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected error for statement targeting undeclared output")
	}
}

func TestCompile_DuplicateWriterWithinBlockErrors(t *testing.T) {
	cfg := config.LogicConfig{
		Label:   "dup",
		Outputs: map[string]string{"light": "o:relay"},
		Exprs:   []string{"true -> {light}", "false -> {light}"},
	}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("expected error for a device written twice within one block")
	}
}

func TestCompileAll_CrossBlockDuplicateWriterErrors(t *testing.T) {
	cfgs := []config.LogicConfig{
		{Label: "a", Outputs: map[string]string{"light": "o:relay"}, Exprs: []string{"true -> {light}"}},
		{Label: "b", Outputs: map[string]string{"light": "o:relay"}, Exprs: []string{"false -> {light}"}},
	}
	if _, err := CompileAll(cfgs); err == nil {
		t.Fatal("expected error for two blocks writing the same device")
	}
}

func TestCompileAll_DistinctOutputsSucceed(t *testing.T) {
	cfgs := []config.LogicConfig{
		{Label: "a", Outputs: map[string]string{"light": "o:relay1"}, Exprs: []string{"true -> {light}"}},
		{Label: "b", Outputs: map[string]string{"light": "o:relay2"}, Exprs: []string{"false -> {light}"}},
	}
	blocks, err := CompileAll(cfgs)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
}
