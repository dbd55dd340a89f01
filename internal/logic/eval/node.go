package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/clock"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/logic/typecheck"
	"github.com/nerrad567/drmemd/internal/value"
)

// clockTickInterval drives the utc/local pseudo-devices; spec §4.5
// requires 1 Hz.
const clockTickInterval = time.Second

// solarTickInterval drives the solar pseudo-device; spec §4.5 requires
// at least once per minute.
const solarTickInterval = 30 * time.Second

// Block is one parsed, typechecked logic block ready to run as a Node
// (mirrors config.LogicConfig, already parsed).
type Block struct {
	Label   string
	Inputs  map[string]value.Name // local name -> input device
	Outputs map[string]value.Name // local name -> output device
	Defs    map[string]ast.Expr
	Stmts   []ast.Stmt
}

// Node is the reactive runtime for one Block: it subscribes to its
// inputs and to the clock sources its expressions reference, and
// recomputes every statement on each event (spec §4.5), grounded on the
// original source's logic Node shape (inputs array, merged input
// stream, compiled program list evaluated left to right).
type Node struct {
	block Block
	be    backend.Backend
	log   *logging.Logger

	lat, lon   float64
	haveGeo    bool
	needsUTC   bool
	needsLocal bool
	needsSolar bool

	defTypes map[string]value.Tag

	values  Env
	lastOut map[string]value.Value
}

// NewNode typechecks block against be's registered device types and
// returns a Node ready to Run. lat/lon feed the solar pseudo-device;
// haveGeo false means solar fields are simply never resolved (an
// expression referencing them then sees ErrMissingValue and that
// statement is skipped, logged once per occurrence).
func NewNode(ctx context.Context, block Block, be backend.Backend, lat, lon float64, haveGeo bool, log *logging.Logger) (*Node, error) {
	env := typecheck.Env{
		Inputs:  make(map[string]value.Tag, len(block.Inputs)),
		Outputs: make(map[string]value.Tag, len(block.Outputs)),
		Defs:    block.Defs,
	}
	for local, name := range block.Inputs {
		rec, err := be.Record(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("logic %s: input %q: %w", block.Label, local, err)
		}
		env.Inputs[local] = rec.Type
	}
	for local, name := range block.Outputs {
		rec, err := be.Record(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("logic %s: output %q: %w", block.Label, local, err)
		}
		env.Outputs[local] = rec.Type
	}

	result, err := typecheck.Check(block.Stmts, env)
	if err != nil {
		return nil, fmt.Errorf("logic %s: %w", block.Label, err)
	}

	n := &Node{
		block:    block,
		be:       be,
		log:      log,
		lat:      lat,
		lon:      lon,
		haveGeo:  haveGeo,
		defTypes: result.DefTypes,
		values:   make(Env),
		lastOut:  make(map[string]value.Value),
	}
	n.needsUTC, n.needsLocal, n.needsSolar = scanZones(block)
	return n, nil
}

// scanZones walks every def and statement expression to find which
// clock zones are actually referenced, so Run only ticks the sources a
// block needs.
func scanZones(block Block) (needsUTC, needsLocal, needsSolar bool) {
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case ast.Builtin:
			switch n.Zone {
			case "utc":
				needsUTC = true
			case "local":
				needsLocal = true
			case "solar":
				needsSolar = true
			}
		case ast.Unary:
			walk(n.X)
		case ast.Binary:
			walk(n.L)
			walk(n.R)
		case ast.If:
			walk(n.Cond)
			walk(n.Then)
			if n.Else != nil {
				walk(n.Else)
			}
		}
	}
	for _, e := range block.Defs {
		walk(e)
	}
	for _, s := range block.Stmts {
		walk(s.Expr)
	}
	return
}

// inputUpdate carries one subscription delivery from a pump goroutine
// to the single Run goroutine that owns n.values, merging every input's
// stream the way the original source's logic Node merges its per-input
// streams into one before evaluating (rather than letting each pump
// write the shared environment directly).
type inputUpdate struct {
	local string
	value value.Value
}

// Run subscribes to every input and needed clock source and recomputes
// the block on every event until ctx is cancelled. n.values is only
// ever read or written from this goroutine; pump goroutines hand their
// deliveries across on updates instead of touching it themselves.
func (n *Node) Run(ctx context.Context) error {
	updates := make(chan inputUpdate)

	var subs []backend.Subscription
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	for local, name := range n.block.Inputs {
		sub, err := n.be.SubscribeReadings(ctx, name)
		if err != nil {
			return fmt.Errorf("logic %s: subscribe %q: %w", n.block.Label, local, err)
		}
		subs = append(subs, sub)
		go n.pump(ctx, local, sub, updates)
	}

	var clockTicker, solarTicker *time.Ticker
	if n.needsUTC || n.needsLocal {
		clockTicker = time.NewTicker(clockTickInterval)
		defer clockTicker.Stop()
	}
	if n.needsSolar {
		solarTicker = time.NewTicker(solarTickInterval)
		defer solarTicker.Stop()
	}

	n.refreshClock()
	n.recompute(ctx)

	var clockC, solarC <-chan time.Time
	if clockTicker != nil {
		clockC = clockTicker.C
	}
	if solarTicker != nil {
		solarC = solarTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-updates:
			n.values[u.local] = u.value
			n.recompute(ctx)
		case <-clockC:
			n.refreshClock()
			n.recompute(ctx)
		case <-solarC:
			n.refreshClock()
			n.recompute(ctx)
		}
	}
}

// pump forwards each delivered reading for one input onto updates for
// Run to apply. Gap items are treated as an ordinary refresh of the
// coalesced latest value. The send blocks until Run is ready to accept
// it (or ctx is cancelled), which is what keeps every write to
// n.values confined to Run's goroutine.
func (n *Node) pump(ctx context.Context, local string, sub backend.Subscription, updates chan<- inputUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			select {
			case updates <- inputUpdate{local: local, value: item.Reading.Value}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// refreshClock recomputes the utc/local/solar pseudo-device fields
// this node actually references and stores them in n.values under
// "zone:field" keys.
func (n *Node) refreshClock() {
	now := time.Now()
	if n.needsUTC {
		storeTimeFields(n.values, "utc", clock.Fields(now.UTC()))
	}
	if n.needsLocal {
		storeTimeFields(n.values, "local", clock.Fields(now.Local()))
	}
	if n.needsSolar && n.haveGeo {
		s := clock.Solar(now, n.lat, n.lon)
		n.values[builtinKey("solar", "altitude")] = value.Float64(s.Altitude)
		n.values[builtinKey("solar", "azimuth")] = value.Float64(s.Azimuth)
		n.values[builtinKey("solar", "right-ascension")] = value.Float64(s.RightAscension)
		n.values[builtinKey("solar", "declination")] = value.Float64(s.Declination)
	}
}

func storeTimeFields(env Env, zone string, f clock.TimeFields) {
	env[builtinKey(zone, "seconds")] = value.Int32(f.Seconds)
	env[builtinKey(zone, "minute")] = value.Int32(f.Minute)
	env[builtinKey(zone, "hour")] = value.Int32(f.Hour)
	env[builtinKey(zone, "day")] = value.Int32(f.Day)
	env[builtinKey(zone, "month")] = value.Int32(f.Month)
	env[builtinKey(zone, "year")] = value.Int32(f.Year)
	env[builtinKey(zone, "day-of-week")] = value.Int32(f.DayOfWeek)
	env[builtinKey(zone, "day-of-year")] = value.Int32(f.DayOfYear)
	env[builtinKey(zone, "start-of-month")] = value.Int32(f.StartOfMonth)
	env[builtinKey(zone, "end-of-month")] = value.Int32(f.EndOfMonth)
	env[builtinKey(zone, "leap-year")] = value.Bool(f.LeapYear)
}

// recompute runs one full left-to-right pass over the block's
// statements (spec §4.5 determinism), memoizing defs per pass and
// emitting a setting only for outputs whose computed value changed.
func (n *Node) recompute(ctx context.Context) {
	defCache := make(map[string]value.Value, len(n.block.Defs))

	for _, stmt := range n.block.Stmts {
		v, err := n.evalWithDefs(stmt.Expr, defCache)
		if err != nil {
			n.log.Warn("logic block eval error", "label", n.block.Label, "output", stmt.Output, "error", err)
			continue
		}
		if v == nil {
			// else-less conditional took the false branch: no update.
			continue
		}
		if prev, ok := n.lastOut[stmt.Output]; ok && prev == v {
			continue
		}

		deviceName := n.block.Outputs[stmt.Output]
		if err := n.be.RouteSetting(ctx, deviceName, v); err != nil {
			n.log.Warn("logic block route setting failed", "label", n.block.Label, "output", stmt.Output, "error", err)
			continue
		}
		n.lastOut[stmt.Output] = v
	}
}

// evalWithDefs evaluates expr against n.values, resolving any
// referenced def lazily into defCache (memoized once per pass, per
// spec §4.5 "Sharing").
func (n *Node) evalWithDefs(expr ast.Expr, defCache map[string]value.Value) (value.Value, error) {
	env := make(Env, len(n.values)+len(defCache))
	for k, v := range n.values {
		env[k] = v
	}

	var resolveAll func(ast.Expr) error
	resolveAll = func(e ast.Expr) error {
		switch x := e.(type) {
		case ast.Ref:
			if _, ok := env[x.Name]; ok {
				return nil
			}
			if v, ok := defCache[x.Name]; ok {
				env[x.Name] = v
				return nil
			}
			defExpr, ok := n.block.Defs[x.Name]
			if !ok {
				return nil // not a def; Eval will report ErrMissingValue
			}
			if err := resolveAll(defExpr); err != nil {
				return err
			}
			v, err := Eval(defExpr, env)
			if err != nil {
				return err
			}
			defCache[x.Name] = v
			env[x.Name] = v
			return nil
		case ast.Unary:
			return resolveAll(x.X)
		case ast.Binary:
			if err := resolveAll(x.L); err != nil {
				return err
			}
			return resolveAll(x.R)
		case ast.If:
			if err := resolveAll(x.Cond); err != nil {
				return err
			}
			if err := resolveAll(x.Then); err != nil {
				return err
			}
			if x.Else != nil {
				return resolveAll(x.Else)
			}
		}
		return nil
	}

	if err := resolveAll(expr); err != nil {
		return nil, err
	}
	return Eval(expr, env)
}
