// Package mapper implements the built-in "map" driver (spec §4.4): index
// writes select output from among disjoint integer ranges, falling back
// to a default when no range matches.
package mapper

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/drvcfg"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "map"

type valueRange struct {
	start, end int
	value      value.Value
}

// Driver implements driver.Driver for the map contract.
type Driver struct {
	ranges     []valueRange
	defaultVal value.Value
	initial    int

	indexName  value.Name
	outputName value.Name

	indexInbox <-chan driver.SettingRequest

	env        *driver.Env
	lastOutput value.Value
}

// New constructs an uninitialized map driver.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	typeName, err := drvcfg.String(env.Cfg, "type")
	if err != nil {
		return err
	}
	tag, err := drvcfg.TagFromString(typeName)
	if err != nil {
		return err
	}
	initial := drvcfg.IntOr(env.Cfg, "initial", 0)
	defaultVal, err := drvcfg.Literal(tag, env.Cfg["default"])
	if err != nil {
		return fmt.Errorf("map: default: %w", err)
	}
	rawRanges, err := drvcfg.Slice(env.Cfg, "values")
	if err != nil {
		return err
	}

	ranges := make([]valueRange, 0, len(rawRanges))
	for i, raw := range rawRanges {
		m, err := drvcfg.Map(raw)
		if err != nil {
			return fmt.Errorf("map: values[%d]: %w", i, err)
		}
		start, err := drvcfg.Int(m, "start")
		if err != nil {
			return fmt.Errorf("map: values[%d]: %w", i, err)
		}
		end := drvcfg.IntOr(m, "end", start)
		if end < start {
			return fmt.Errorf("map: values[%d]: end %d before start %d", i, end, start)
		}
		v, err := drvcfg.Literal(tag, m["value"])
		if err != nil {
			return fmt.Errorf("map: values[%d]: %w", i, err)
		}
		ranges = append(ranges, valueRange{start: start, end: end, value: v})
	}

	if err := checkNonOverlapping(ranges); err != nil {
		return fmt.Errorf("map: %w", err)
	}

	d.ranges = ranges
	d.defaultVal = defaultVal
	d.initial = initial
	d.env = env

	d.indexName, err = env.Register(ctx, "index", value.TagInt32, backend.ReadWrite, "", 0)
	if err != nil {
		return err
	}
	d.outputName, err = env.Register(ctx, "output", tag, backend.ReadOnly, "", 0)
	if err != nil {
		return err
	}
	d.indexInbox = env.Inbox(d.indexName)

	out := d.lookup(initial)
	d.lastOutput = out
	return env.Write(ctx, d.outputName, out, time.Now().UTC())
}

// checkNonOverlapping verifies no two ranges share an index, per spec
// §8 "Map non-overlap".
func checkNonOverlapping(ranges []valueRange) error {
	sorted := make([]valueRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].start <= sorted[i-1].end {
			return fmt.Errorf("overlapping ranges [%d,%d] and [%d,%d]",
				sorted[i-1].start, sorted[i-1].end, sorted[i].start, sorted[i].end)
		}
	}
	return nil
}

func (d *Driver) lookup(idx int) value.Value {
	for _, r := range d.ranges {
		if idx >= r.start && idx <= r.end {
			return r.value
		}
	}
	return d.defaultVal
}

func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-d.indexInbox:
			idx, ok := req.Value.(value.Int32)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			req.Reply <- driver.SettingResult{Value: idx}
			_ = d.env.Write(ctx, d.indexName, idx, time.Now().UTC())

			out := d.lookup(int(idx))
			same, err := value.Equal(out, d.lastOutput)
			if err == nil && same {
				continue
			}
			d.lastOutput = out
			_ = d.env.Write(ctx, d.outputName, out, time.Now().UTC())
		}
	}
}
