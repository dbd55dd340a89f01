package mqttsensor_test

import (
	"context"
	"testing"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/mqttsensor"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

// Init only builds the device registration; dialing the broker happens
// in Run, so these tests never need a live MQTT server.

func TestMqttSensor_ReadOnlyWithoutCommandTopic(t *testing.T) {
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(mqttsensor.Name, mqttsensor.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sup.Stop()

	cfg := map[string]any{"broker_host": "127.0.0.1", "state_topic": "sensors/temp"}
	sup.Start(ctx, []driver.Spec{{Name: mqttsensor.Name, Prefix: value.Name("mq"), Cfg: cfg}})

	rec, err := be.Record(context.Background(), "mq:output")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Direction != backend.ReadOnly {
		t.Errorf("expected ReadOnly without a command_topic, got %v", rec.Direction)
	}
	if rec.Type != value.TagFloat64 {
		t.Errorf("expected TagFloat64, got %v", rec.Type)
	}
}

func TestMqttSensor_ReadWriteWithCommandTopic(t *testing.T) {
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(mqttsensor.Name, mqttsensor.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sup.Stop()

	cfg := map[string]any{
		"broker_host":   "127.0.0.1",
		"state_topic":   "sensors/temp",
		"command_topic": "sensors/temp/set",
	}
	sup.Start(ctx, []driver.Spec{{Name: mqttsensor.Name, Prefix: value.Name("mq"), Cfg: cfg}})

	rec, err := be.Record(context.Background(), "mq:output")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Direction != backend.ReadWrite {
		t.Errorf("expected ReadWrite with a command_topic, got %v", rec.Direction)
	}
}

func TestMqttSensor_MissingStateTopicRejectsInit(t *testing.T) {
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.MustRegister(mqttsensor.Name, mqttsensor.New)
	reg.Seal()

	sup := driver.NewSupervisor(reg, be, logging.Default())
	be.SetRouter(sup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sup.Stop()

	cfg := map[string]any{"broker_host": "127.0.0.1"}
	sup.Start(ctx, []driver.Spec{{Name: mqttsensor.Name, Prefix: value.Name("mq"), Cfg: cfg}})

	if len(sup.Instances()) != 0 {
		t.Fatalf("expected init to fail without state_topic, got %d instances", len(sup.Instances()))
	}
}
