package eval_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/logic/ast"
	"github.com/nerrad567/drmemd/internal/logic/eval"
	"github.com/nerrad567/drmemd/internal/logic/parse"
	"github.com/nerrad567/drmemd/internal/value"
)

// echoRouter simulates a driver that accepts every setting and writes it
// straight back as a reading, standing in for internal/driver's
// Supervisor so Node tests don't need a running driver fleet.
type echoRouter struct {
	be *ephemeral.Backend
}

func (r *echoRouter) RouteSetting(ctx context.Context, name value.Name, v value.Value) error {
	return r.be.Write(ctx, backend.Handle{Name: name}, v, time.Now().UTC())
}

func waitForValue(t *testing.T, be *ephemeral.Backend, name value.Name, want value.Value) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, ok, err := be.Latest(context.Background(), name)
		if err != nil {
			t.Fatalf("Latest(%s): %v", name, err)
		}
		if ok && r.Value == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to become %v", name, want)
}

func TestNode_RecomputesOnInputChange(t *testing.T) {
	be := ephemeral.New()
	be.SetRouter(&echoRouter{be: be})
	ctx := context.Background()

	if _, err := be.Register(ctx, "sensor:motion", value.TagBool, backend.ReadOnly, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := be.Register(ctx, "relay:light", value.TagBool, backend.ReadWrite, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	stmt, err := parse.Stmt("{motion} -> {light}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	block := eval.Block{
		Label:   "porch",
		Inputs:  map[string]value.Name{"motion": "sensor:motion"},
		Outputs: map[string]value.Name{"light": "relay:light"},
		Stmts:   []ast.Stmt{stmt},
	}

	node, err := eval.NewNode(ctx, block, be, 0, 0, false, logging.Default())
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go node.Run(runCtx) //nolint:errcheck
	defer cancel()

	if err := be.Write(ctx, backend.Handle{Name: "sensor:motion"}, value.Bool(true), time.Now().UTC()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForValue(t, be, "relay:light", value.Bool(true))

	if err := be.Write(ctx, backend.Handle{Name: "sensor:motion"}, value.Bool(false), time.Now().Add(time.Millisecond).UTC()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForValue(t, be, "relay:light", value.Bool(false))
}

func TestNode_MismatchedInputTypeRejectedAtCompile(t *testing.T) {
	be := ephemeral.New()
	ctx := context.Background()

	if _, err := be.Register(ctx, "sensor:motion", value.TagInt32, backend.ReadOnly, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := be.Register(ctx, "relay:light", value.TagBool, backend.ReadWrite, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	stmt, _ := parse.Stmt("{motion} -> {light}")
	block := eval.Block{
		Label:   "bad",
		Inputs:  map[string]value.Name{"motion": "sensor:motion"},
		Outputs: map[string]value.Name{"light": "relay:light"},
		Stmts:   []ast.Stmt{stmt},
	}

	if _, err := eval.NewNode(ctx, block, be, 0, 0, false, logging.Default()); err == nil {
		t.Fatal("expected typecheck error: int32 input feeding a bool output")
	}
}

// TestNode_ConcurrentMultiInputUpdatesRace exercises a block with two
// inputs under near-simultaneous writes (spec §8 Scenario 4, "Logic
// AND"). Run with `go test -race` it would catch a concurrent map
// write if input delivery were ever mediated by anything other than
// Run's own goroutine; functionally it confirms the AND only settles
// true once both inputs are true.
func TestNode_ConcurrentMultiInputUpdatesRace(t *testing.T) {
	be := ephemeral.New()
	be.SetRouter(&echoRouter{be: be})
	ctx := context.Background()

	if _, err := be.Register(ctx, "sensor:s", value.TagBool, backend.ReadOnly, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := be.Register(ctx, "sensor:d", value.TagBool, backend.ReadOnly, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := be.Register(ctx, "relay:out", value.TagBool, backend.ReadWrite, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	stmt, err := parse.Stmt("{s} and {d} -> {out}")
	if err != nil {
		t.Fatalf("Stmt: %v", err)
	}
	block := eval.Block{
		Label:   "and-gate",
		Inputs:  map[string]value.Name{"s": "sensor:s", "d": "sensor:d"},
		Outputs: map[string]value.Name{"out": "relay:out"},
		Stmts:   []ast.Stmt{stmt},
	}

	node, err := eval.NewNode(ctx, block, be, 0, 0, false, logging.Default())
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go node.Run(runCtx) //nolint:errcheck

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			be.Write(ctx, backend.Handle{Name: "sensor:s"}, value.Bool(i%2 == 0), time.Now().UTC()) //nolint:errcheck
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			be.Write(ctx, backend.Handle{Name: "sensor:d"}, value.Bool(i%2 == 0), time.Now().UTC()) //nolint:errcheck
		}
	}()
	wg.Wait()

	if err := be.Write(ctx, backend.Handle{Name: "sensor:s"}, value.Bool(true), time.Now().Add(time.Millisecond).UTC()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := be.Write(ctx, backend.Handle{Name: "sensor:d"}, value.Bool(true), time.Now().Add(time.Millisecond).UTC()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForValue(t, be, "relay:out", value.Bool(true))
}

func TestNode_UnknownInputDeviceErrors(t *testing.T) {
	be := ephemeral.New()
	ctx := context.Background()

	block := eval.Block{
		Label:  "bad",
		Inputs: map[string]value.Name{"x": "nope:device"},
	}
	if _, err := eval.NewNode(ctx, block, be, 0, 0, false, logging.Default()); err == nil {
		t.Fatal("expected error resolving an unregistered input device")
	}
}
