package mapper_test

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/mapper"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

func waitFor(t *testing.T, be *ephemeral.Backend, name value.Name, want value.Value) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
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

func startMapper(t *testing.T, cfg map[string]any) (*ephemeral.Backend, *driver.Supervisor) {
	t.Helper()
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(mapper.Name, mapper.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx, []driver.Spec{{Name: mapper.Name, Prefix: value.Name("mp"), Cfg: cfg}})
	t.Cleanup(func() {
		sup.Stop()
		cancel()
	})
	return be, sup
}

func TestMapper_SelectsRangeOrDefault(t *testing.T) {
	cfg := map[string]any{
		"type":    "str",
		"initial": 0,
		"default": "unknown",
		"values": []any{
			map[string]any{"start": 0, "end": 1, "value": "low"},
			map[string]any{"start": 2, "end": 5, "value": "high"},
		},
	}
	be, sup := startMapper(t, cfg)

	waitFor(t, be, "mp:output", value.Str("low"))

	if err := sup.RouteSetting(context.Background(), "mp:index", value.Int32(3)); err != nil {
		t.Fatalf("RouteSetting: %v", err)
	}
	waitFor(t, be, "mp:output", value.Str("high"))

	if err := sup.RouteSetting(context.Background(), "mp:index", value.Int32(100)); err != nil {
		t.Fatalf("RouteSetting: %v", err)
	}
	waitFor(t, be, "mp:output", value.Str("unknown"))
}

func TestMapper_RejectsOverlappingRanges(t *testing.T) {
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(mapper.Name, mapper.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	cfg := map[string]any{
		"type":    "str",
		"default": "x",
		"values": []any{
			map[string]any{"start": 0, "end": 2, "value": "a"},
			map[string]any{"start": 1, "end": 3, "value": "b"},
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx, []driver.Spec{{Name: mapper.Name, Prefix: value.Name("mp"), Cfg: cfg}})
	defer sup.Stop()

	if len(sup.Instances()) != 0 {
		t.Fatalf("expected instance to be rejected for overlapping ranges, got %d instances", len(sup.Instances()))
	}
}
