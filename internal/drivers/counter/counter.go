// Package counter implements the built-in "counter" driver (spec §4.4):
// a false->true edge on increment bumps count by one; reset sets it
// back to zero.
package counter

import (
	"context"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "counter"

// Driver implements driver.Driver for the counter contract.
type Driver struct {
	incrementName value.Name
	resetName     value.Name
	countName     value.Name

	incrementInbox <-chan driver.SettingRequest
	resetInbox     <-chan driver.SettingRequest

	env         *driver.Env
	count       int32
	prevIncr    bool
}

// New constructs an uninitialized counter driver.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	var err error
	d.env = env

	d.incrementName, err = env.Register(ctx, "increment", value.TagBool, backend.ReadWrite, "", 0)
	if err != nil {
		return err
	}
	d.resetName, err = env.Register(ctx, "reset", value.TagBool, backend.ReadWrite, "", 0)
	if err != nil {
		return err
	}
	d.countName, err = env.Register(ctx, "count", value.TagInt32, backend.ReadOnly, "", 0)
	if err != nil {
		return err
	}
	d.incrementInbox = env.Inbox(d.incrementName)
	d.resetInbox = env.Inbox(d.resetName)

	return env.Write(ctx, d.countName, value.Int32(0), time.Now().UTC())
}

func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-d.incrementInbox:
			v, ok := req.Value.(value.Bool)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			req.Reply <- driver.SettingResult{Value: v}
			_ = d.env.Write(ctx, d.incrementName, v, time.Now().UTC())

			if bool(v) && !d.prevIncr {
				d.count++
				_ = d.env.Write(ctx, d.countName, value.Int32(d.count), time.Now().UTC())
			}
			d.prevIncr = bool(v)

		case req := <-d.resetInbox:
			v, ok := req.Value.(value.Bool)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			req.Reply <- driver.SettingResult{Value: v}
			_ = d.env.Write(ctx, d.resetName, v, time.Now().UTC())

			if bool(v) && d.count != 0 {
				d.count = 0
				_ = d.env.Write(ctx, d.countName, value.Int32(0), time.Now().UTC())
			}
		}
	}
}
