// Package memory implements the built-in "memory" driver (spec §4.4):
// one or more user-named devices, each remembering its last accepted
// setting and echoing it as a reading. A write of the wrong declared
// type is rejected.
package memory

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
const Name = "memory"

type cell struct {
	name  value.Name
	tag   value.Tag
	inbox <-chan driver.SettingRequest
}

// Driver implements driver.Driver for the memory contract.
type Driver struct {
	cells []cell
	env   *driver.Env
}

// New constructs an uninitialized memory driver.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	rawDevices, err := drvcfg.Slice(env.Cfg, "devices")
	if err != nil {
		return err
	}
	if len(rawDevices) == 0 {
		return fmt.Errorf("memory: devices must be non-empty")
	}

	d.env = env
	for i, raw := range rawDevices {
		m, err := drvcfg.Map(raw)
		if err != nil {
			return fmt.Errorf("memory: devices[%d]: %w", i, err)
		}
		leaf, err := drvcfg.String(m, "name")
		if err != nil {
			return fmt.Errorf("memory: devices[%d]: %w", i, err)
		}
		typeName, err := drvcfg.String(m, "type")
		if err != nil {
			return fmt.Errorf("memory: devices[%d]: %w", i, err)
		}
		tag, err := drvcfg.TagFromString(typeName)
		if err != nil {
			return fmt.Errorf("memory: devices[%d]: %w", i, err)
		}
		initial, err := drvcfg.Literal(tag, m["initial"])
		if err != nil {
			return fmt.Errorf("memory: devices[%d]: initial: %w", i, err)
		}

		name, err := env.Register(ctx, leaf, tag, backend.ReadWrite, "", 0)
		if err != nil {
			return err
		}
		if err := env.Write(ctx, name, initial, time.Now().UTC()); err != nil {
			return err
		}
		d.cells = append(d.cells, cell{name: name, tag: tag, inbox: env.Inbox(name)})
	}
	return nil
}

type event struct {
	cell cell
	req  driver.SettingRequest
}

func (d *Driver) Run(ctx context.Context) error {
	merged := make(chan event)
	for _, c := range d.cells {
		c := c
		go func() {
			for {
				select {
				case req := <-c.inbox:
					select {
					case merged <- event{cell: c, req: req}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-merged:
			if ev.req.Value.Kind() != ev.cell.tag {
				ev.req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			ev.req.Reply <- driver.SettingResult{Value: ev.req.Value}
			_ = d.env.Write(ctx, ev.cell.name, ev.req.Value, time.Now().UTC())
		}
	}
}
