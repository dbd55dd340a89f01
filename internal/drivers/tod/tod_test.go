package tod_test

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/tod"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

func TestTod_PublishesCalendarFieldsOnInit(t *testing.T) {
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(tod.Name, tod.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sup.Stop()

	sup.Start(ctx, []driver.Spec{{Name: tod.Name, Prefix: value.Name("t"), Cfg: map[string]any{"zone": "utc"}}})

	for _, leaf := range []string{"second", "minute", "hour", "day", "month", "year", "day-of-week", "day-of-year"} {
		name := value.Name("t:" + leaf)
		r, ok, err := be.Latest(context.Background(), name)
		if err != nil || !ok {
			t.Fatalf("Latest(%s): %v ok=%v", name, err, ok)
		}
		if _, isInt := r.Value.(value.Int32); !isInt {
			t.Errorf("%s: expected Int32, got %T", name, r.Value)
		}
	}
}

func TestTod_RejectsUnknownZone(t *testing.T) {
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(tod.Name, tod.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sup.Stop()

	sup.Start(ctx, []driver.Spec{{Name: tod.Name, Prefix: value.Name("t"), Cfg: map[string]any{"zone": "mars"}}})

	if len(sup.Instances()) != 0 {
		t.Fatalf("expected instance rejected for invalid zone, got %d", len(sup.Instances()))
	}
	time.Sleep(10 * time.Millisecond) // let any (unexpected) goroutine settle before cleanup
}
