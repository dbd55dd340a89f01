// Package logic turns the raw `logic` sections of the daemon config into
// runnable eval.Blocks: it parses inputs/outputs/defs/exprs, expanding
// each textual expression through internal/logic/parse.
package logic

import (
	"fmt"

	"github.com/nerrad567/drmemd/internal/infrastructure/config"
	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/logic/eval"
	"github.com/nerrad567/drmemd/internal/logic/parse"
	"github.com/nerrad567/drmemd/internal/value"
)

// Compile parses one config.LogicConfig section into an eval.Block.
// Device names in inputs/outputs are validated against the device
// naming grammar; every entry in defs and exprs is parsed as an
// expression (typechecking happens later, in eval.NewNode, once device
// types are known).
func Compile(cfg config.LogicConfig) (eval.Block, error) {
	if cfg.Label == "" {
		return eval.Block{}, fmt.Errorf("logic block: label is required")
	}

	block := eval.Block{
		Label:   cfg.Label,
		Inputs:  make(map[string]value.Name, len(cfg.Inputs)),
		Outputs: make(map[string]value.Name, len(cfg.Outputs)),
		Defs:    make(map[string]ast.Expr, len(cfg.Defs)),
	}

	for local, device := range cfg.Inputs {
		name, err := value.ParseName(device)
		if err != nil {
			return eval.Block{}, fmt.Errorf("logic %s: input %q device %q: %w", cfg.Label, local, device, err)
		}
		block.Inputs[local] = name
	}
	for local, device := range cfg.Outputs {
		name, err := value.ParseName(device)
		if err != nil {
			return eval.Block{}, fmt.Errorf("logic %s: output %q device %q: %w", cfg.Label, local, device, err)
		}
		block.Outputs[local] = name
	}
	for local, src := range cfg.Defs {
		expr, err := parse.Expr(src)
		if err != nil {
			return eval.Block{}, fmt.Errorf("logic %s: def %q: %w", cfg.Label, local, err)
		}
		block.Defs[local] = expr
	}

	block.Stmts = make([]ast.Stmt, 0, len(cfg.Exprs))
	for i, src := range cfg.Exprs {
		stmt, err := parse.Stmt(src)
		if err != nil {
			return eval.Block{}, fmt.Errorf("logic %s: exprs[%d]: %w", cfg.Label, i, err)
		}
		if _, ok := block.Outputs[stmt.Output]; !ok {
			return eval.Block{}, fmt.Errorf("logic %s: exprs[%d]: statement targets undeclared output %q", cfg.Label, i, stmt.Output)
		}
		block.Stmts = append(block.Stmts, stmt)
	}

	if err := validateSingleWriter(block); err != nil {
		return eval.Block{}, fmt.Errorf("logic %s: %w", cfg.Label, err)
	}

	return block, nil
}

// validateSingleWriter enforces that a device may be written by at most
// one output across this block's own exprs list (spec §4.5: a device
// has at most one writer across the whole config; cross-block
// duplication is checked by the caller once all blocks are compiled).
func validateSingleWriter(block eval.Block) error {
	written := make(map[string]bool, len(block.Stmts))
	for _, stmt := range block.Stmts {
		if written[stmt.Output] {
			return fmt.Errorf("output %q is targeted by more than one expression", stmt.Output)
		}
		written[stmt.Output] = true
	}
	return nil
}

// CompileAll compiles every configured logic section and checks that no
// device is claimed as an output by more than one block.
func CompileAll(cfgs []config.LogicConfig) ([]eval.Block, error) {
	blocks := make([]eval.Block, 0, len(cfgs))
	claimed := make(map[value.Name]string)

	for _, cfg := range cfgs {
		block, err := Compile(cfg)
		if err != nil {
			return nil, err
		}
		for _, device := range block.Outputs {
			if owner, ok := claimed[device]; ok {
				return nil, fmt.Errorf("logic %s: output device %q already written by logic block %q", block.Label, device, owner)
			}
			claimed[device] = block.Label
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}
