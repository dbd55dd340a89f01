// Package latch implements the built-in "latch" driver (spec §4.4): a
// false->true edge on trigger moves output to "enabled" and latches it
// there, ignoring further trigger edges, until reset returns it to
// "disabled" and rearms.
package latch

import (
	"context"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/drvcfg"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "latch"

// Driver implements driver.Driver for the latch contract.
type Driver struct {
	enabled  value.Value
	disabled value.Value

	triggerName value.Name
	resetName   value.Name
	outputName  value.Name

	triggerInbox <-chan driver.SettingRequest
	resetInbox   <-chan driver.SettingRequest

	env          *driver.Env
	latched      bool
	prevTrigger  bool
}

// New constructs an uninitialized latch driver.
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
	enabled, err := drvcfg.Literal(tag, env.Cfg["enabled"])
	if err != nil {
		return err
	}
	disabled, err := drvcfg.Literal(tag, env.Cfg["disabled"])
	if err != nil {
		return err
	}

	d.enabled = enabled
	d.disabled = disabled
	d.env = env

	d.triggerName, err = env.Register(ctx, "trigger", value.TagBool, backend.ReadWrite, "", 0)
	if err != nil {
		return err
	}
	d.resetName, err = env.Register(ctx, "reset", value.TagBool, backend.ReadWrite, "", 0)
	if err != nil {
		return err
	}
	d.outputName, err = env.Register(ctx, "output", tag, backend.ReadOnly, "", 0)
	if err != nil {
		return err
	}
	d.triggerInbox = env.Inbox(d.triggerName)
	d.resetInbox = env.Inbox(d.resetName)

	return env.Write(ctx, d.outputName, d.disabled, time.Now().UTC())
}

func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-d.triggerInbox:
			v, ok := req.Value.(value.Bool)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			req.Reply <- driver.SettingResult{Value: v}
			_ = d.env.Write(ctx, d.triggerName, v, time.Now().UTC())

			if bool(v) && !d.prevTrigger && !d.latched {
				d.latched = true
				_ = d.env.Write(ctx, d.outputName, d.enabled, time.Now().UTC())
			}
			d.prevTrigger = bool(v)

		case req := <-d.resetInbox:
			v, ok := req.Value.(value.Bool)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			req.Reply <- driver.SettingResult{Value: v}
			_ = d.env.Write(ctx, d.resetName, v, time.Now().UTC())

			if bool(v) {
				d.latched = false
				d.prevTrigger = false
				_ = d.env.Write(ctx, d.outputName, d.disabled, time.Now().UTC())
			}
		}
	}
}
