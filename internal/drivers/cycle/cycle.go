// Package cycle implements the built-in "cycle" driver (spec §4.4):
// while enabled, output advances through a configured sequence at a
// fixed period; while disabled, output holds a fixed value. Enable
// transitions take effect at the next period tick.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/drvcfg"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "cycle"

// Driver implements driver.Driver for the cycle contract.
type Driver struct {
	period   time.Duration
	values   []value.Value
	disabled value.Value

	enableName value.Name
	outputName value.Name

	enableInbox <-chan driver.SettingRequest

	env            *driver.Env
	pendingEnabled bool
	lastOutput     value.Value
	idx            int
}

// New constructs an uninitialized cycle driver.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	periodMillis, err := drvcfg.Int(env.Cfg, "period")
	if err != nil {
		return err
	}
	typeName, err := drvcfg.String(env.Cfg, "type")
	if err != nil {
		return err
	}
	tag, err := drvcfg.TagFromString(typeName)
	if err != nil {
		return err
	}
	rawValues, err := drvcfg.Slice(env.Cfg, "values")
	if err != nil {
		return err
	}
	if len(rawValues) == 0 {
		return fmt.Errorf("cycle: values must be non-empty")
	}
	values := make([]value.Value, len(rawValues))
	for i, raw := range rawValues {
		v, err := drvcfg.Literal(tag, raw)
		if err != nil {
			return fmt.Errorf("cycle: values[%d]: %w", i, err)
		}
		values[i] = v
	}
	disabled, err := drvcfg.Literal(tag, env.Cfg["disabled"])
	if err != nil {
		return err
	}

	d.period = time.Duration(periodMillis) * time.Millisecond
	d.values = values
	d.disabled = disabled
	d.env = env

	d.enableName, err = env.Register(ctx, "enable", value.TagBool, backend.ReadWrite, "", 0)
	if err != nil {
		return err
	}
	d.outputName, err = env.Register(ctx, "output", tag, backend.ReadOnly, "", 0)
	if err != nil {
		return err
	}
	d.enableInbox = env.Inbox(d.enableName)

	d.lastOutput = d.disabled
	return env.Write(ctx, d.outputName, d.disabled, time.Now().UTC())
}

func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	appliedEnabled := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-d.enableInbox:
			v, ok := req.Value.(value.Bool)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			req.Reply <- driver.SettingResult{Value: v}
			d.pendingEnabled = bool(v)
			_ = d.env.Write(ctx, d.enableName, v, time.Now().UTC())

		case <-ticker.C:
			appliedEnabled = d.pendingEnabled
			var next value.Value
			if appliedEnabled {
				next = d.values[d.idx%len(d.values)]
				d.idx++
			} else {
				next = d.disabled
			}
			same, err := value.Equal(next, d.lastOutput)
			if err == nil && same {
				continue
			}
			d.lastOutput = next
			_ = d.env.Write(ctx, d.outputName, next, time.Now().UTC())
		}
	}
}
