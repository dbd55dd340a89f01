// Package timer implements the built-in "timer" driver (spec §4.4): a
// false->true transition on enable holds output at an "enabled" value
// for a configured duration, then reverts to "disabled".
package timer

import (
	"context"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/drvcfg"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "timer"

// state is one of the four combinations of "is the timer currently
// timing" and "is the enable input currently true", mirroring the
// original drmemd timer driver's state machine.
type state int

const (
	// stateArmed: not timing, enable is false.
	stateArmed state = iota
	// stateTiming: timing, enable is true.
	stateTiming
	// stateTimingAndArmed: timing, but enable dropped back to false
	// mid-cycle. A true edge here restarts the timer; expiry reverts
	// output to disabled and returns to Armed.
	stateTimingAndArmed
	// stateTimedOut: not timing, enable is still true from the cycle
	// that just expired. Only a false edge rearms it.
	stateTimedOut
)

// Driver implements driver.Driver for the timer contract.
type Driver struct {
	millis    time.Duration
	enabled   value.Value
	disabled  value.Value
	outputTag value.Tag

	enableName value.Name
	outputName value.Name

	enableInbox <-chan driver.SettingRequest

	state      state
	lastOutput value.Value
	env        *driver.Env
}

// New constructs an uninitialized timer driver. Registered as a
// driver.Factory.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	millis, err := drvcfg.Int(env.Cfg, "millis")
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
	enabled, err := drvcfg.Literal(tag, env.Cfg["enabled"])
	if err != nil {
		return err
	}
	disabled, err := drvcfg.Literal(tag, env.Cfg["disabled"])
	if err != nil {
		return err
	}

	d.millis = time.Duration(millis) * time.Millisecond
	d.enabled = enabled
	d.disabled = disabled
	d.outputTag = tag
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

	d.state = stateArmed
	d.lastOutput = d.disabled
	return env.Write(ctx, d.outputName, d.disabled, time.Now().UTC())
}

// updateState applies a new enable value to the state machine. It
// returns the output value to write (if any) and whether the running
// timer should be (re)started. Mirrors the original drmemd timer
// driver's update_state: an enable=false received mid-cycle only
// arms a future retrigger (TimingAndArmed) and never touches the
// currently-running timer or output; output only changes on the
// initial Armed->Timing edge and on expiry.
func (d *Driver) updateState(v bool) (out value.Value, restart bool) {
	switch d.state {
	case stateTimingAndArmed:
		if v {
			d.state = stateTiming
			return nil, true
		}
		return nil, false

	case stateArmed:
		if v {
			d.state = stateTiming
			return d.enabled, true
		}
		return nil, false

	case stateTiming:
		if !v {
			d.state = stateTimingAndArmed
		}
		return nil, false

	case stateTimedOut:
		if !v {
			d.state = stateArmed
		}
		return nil, false
	}
	return nil, false
}

// timeExpired transitions the state machine once the running timer
// fires and always reverts output to disabled: Timing->TimedOut means
// enable is still true but the hold has ended; TimingAndArmed->Armed
// means enable already dropped back to false during the hold.
func (d *Driver) timeExpired() (out value.Value, changed bool) {
	switch d.state {
	case stateTiming:
		d.state = stateTimedOut
		return d.disabled, true
	case stateTimingAndArmed:
		d.state = stateArmed
		return d.disabled, true
	}
	return nil, false
}

func (d *Driver) Run(ctx context.Context) error {
	var timerC <-chan time.Time
	var t *time.Timer
	stopTimer := func() {
		if t != nil {
			t.Stop()
			t = nil
			timerC = nil
		}
	}
	defer stopTimer()

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
			_ = d.env.Write(ctx, d.enableName, v, time.Now().UTC())

			out, restart := d.updateState(bool(v))
			if restart {
				stopTimer()
				t = time.NewTimer(d.millis)
				timerC = t.C
			}
			if out != nil {
				d.setOutput(ctx, out)
			}

		case <-timerC:
			timerC = nil
			t = nil
			if out, changed := d.timeExpired(); changed {
				d.setOutput(ctx, out)
			}
		}
	}
}

func (d *Driver) setOutput(ctx context.Context, v value.Value) {
	same, err := value.Equal(v, d.lastOutput)
	if err == nil && same {
		return
	}
	d.lastOutput = v
	_ = d.env.Write(ctx, d.outputName, v, time.Now().UTC())
}
