// Package tod implements the built-in "tod" ("time of day") driver
// (spec §4.4): a periodic driver producing integer calendar fields of
// the current time, in UTC or local timezone, at <=1 Hz granularity.
package tod

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/clock"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/drvcfg"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "tod"

// Driver implements driver.Driver for the tod contract.
type Driver struct {
	local  bool
	period time.Duration

	names struct {
		second, minute, hour, day, month, year, dayOfWeek, dayOfYear value.Name
	}

	env *driver.Env
}

// New constructs an uninitialized tod driver.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	zone := drvcfg.StringOr(env.Cfg, "zone", "utc")
	switch zone {
	case "utc":
		d.local = false
	case "local":
		d.local = true
	default:
		return fmt.Errorf("tod: zone must be utc or local, got %q", zone)
	}

	periodMillis := drvcfg.IntOr(env.Cfg, "period_millis", 1000)
	if periodMillis < 1000 {
		periodMillis = 1000 // spec caps tod at <= 1 Hz
	}
	d.period = time.Duration(periodMillis) * time.Millisecond
	d.env = env

	var err error
	register := func(leaf string) value.Name {
		if err != nil {
			return ""
		}
		var n value.Name
		n, err = env.Register(ctx, leaf, value.TagInt32, backend.ReadOnly, "", 0)
		return n
	}
	d.names.second = register("second")
	d.names.minute = register("minute")
	d.names.hour = register("hour")
	d.names.day = register("day")
	d.names.month = register("month")
	d.names.year = register("year")
	d.names.dayOfWeek = register("day-of-week")
	d.names.dayOfYear = register("day-of-year")
	if err != nil {
		return err
	}

	return d.publish(ctx, time.Now())
}

func (d *Driver) publish(ctx context.Context, now time.Time) error {
	if d.local {
		now = now.Local()
	} else {
		now = now.UTC()
	}
	f := clock.Fields(now)
	ts := now

	writes := []struct {
		name value.Name
		v    value.Value
	}{
		{d.names.second, value.Int32(f.Seconds)},
		{d.names.minute, value.Int32(f.Minute)},
		{d.names.hour, value.Int32(f.Hour)},
		{d.names.day, value.Int32(f.Day)},
		{d.names.month, value.Int32(f.Month)},
		{d.names.year, value.Int32(f.Year)},
		{d.names.dayOfWeek, value.Int32(f.DayOfWeek)},
		{d.names.dayOfYear, value.Int32(f.DayOfYear)},
	}
	for _, w := range writes {
		if err := d.env.Write(ctx, w.name, w.v, ts); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := d.publish(ctx, now); err != nil {
				return err
			}
		}
	}
}
