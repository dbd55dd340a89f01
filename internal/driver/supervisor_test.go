package driver

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

// flakyDriver fails its first N runs, then blocks until ctx is
// cancelled, so tests can observe restart behaviour without waiting out
// the full backoff ladder.
type flakyDriver struct {
	failures  int
	ran       chan struct{}
	restarted chan struct{}
}

func (d *flakyDriver) Init(_ context.Context, env *Env) error {
	_, err := env.Register(context.Background(), "state", value.TagBool, backend.ReadOnly, "", 0)
	return err
}

func (d *flakyDriver) Run(ctx context.Context) error {
	select {
	case d.ran <- struct{}{}:
	default:
	}
	if d.failures > 0 {
		d.failures--
		select {
		case d.restarted <- struct{}{}:
		default:
		}
		return context.Canceled // any non-nil error triggers a restart
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestSupervisor_RestartsFailedDriver(t *testing.T) {
	origInitial := initialBackoff
	initialBackoff = 10 * time.Millisecond
	t.Cleanup(func() { initialBackoff = origInitial })

	be := ephemeral.New()
	reg := NewRegistry()
	fd := &flakyDriver{failures: 2, ran: make(chan struct{}, 8), restarted: make(chan struct{}, 8)}
	reg.MustRegister("flaky", func() Driver { return fd })
	reg.Seal()

	sup := NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx, []Spec{{Name: "flaky", Prefix: value.Name("f")}})

	timeout := time.After(2 * time.Second)
	restarts := 0
	for restarts < 2 {
		select {
		case <-fd.restarted:
			restarts++
		case <-timeout:
			t.Fatalf("expected 2 restarts, saw %d", restarts)
		}
	}

	sup.Stop()
}

func TestSupervisor_RouteSetting_UnknownDevice(t *testing.T) {
	be := ephemeral.New()
	reg := NewRegistry()
	reg.Seal()
	sup := NewSupervisor(reg, be, logging.Default())

	err := sup.RouteSetting(context.Background(), value.Name("nope:x"), value.Bool(true))
	if err == nil {
		t.Fatal("expected error for unrouted device")
	}
}

func TestSupervisor_InitFailureSkipsInstance(t *testing.T) {
	be := ephemeral.New()
	reg := NewRegistry()
	reg.MustRegister("broken", func() Driver { return &initFailDriver{} })
	reg.Seal()

	sup := NewSupervisor(reg, be, logging.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx, []Spec{{Name: "broken", Prefix: value.Name("b")}})
	sup.Stop()

	if len(sup.Instances()) != 0 {
		t.Errorf("expected 0 running instances after init failure, got %d", len(sup.Instances()))
	}
}

type initFailDriver struct{}

func (initFailDriver) Init(context.Context, *Env) error { return context.Canceled }
func (initFailDriver) Run(context.Context) error        { return nil }
