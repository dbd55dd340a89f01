// Package mqttsensor implements a supplemental example driver (not part
// of the built-in set in spec §4.4): it mirrors a numeric MQTT topic
// into a device reading and accepts settings by publishing to a command
// topic, demonstrating the driver contract against a real I/O transport.
package mqttsensor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/drvcfg"
	"github.com/nerrad567/drmemd/internal/infrastructure/config"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/infrastructure/mqtt"
	"github.com/nerrad567/drmemd/internal/value"
)

// Name is the factory key this driver registers under.
const Name = "mqttsensor"

// reconnectDelay bounds how long Run waits before retrying a broker
// connection that failed or dropped.
const reconnectDelay = 5 * time.Second

// Driver implements driver.Driver for the mqttsensor contract.
type Driver struct {
	brokerHost   string
	brokerPort   int
	clientID     string
	stateTopic   string
	commandTopic string
	qos          int

	outputName value.Name
	inbox      <-chan driver.SettingRequest

	env    *driver.Env
	client *mqtt.Client
}

// New constructs an uninitialized mqttsensor driver.
func New() driver.Driver { return &Driver{} }

func (d *Driver) Init(ctx context.Context, env *driver.Env) error {
	var err error
	d.brokerHost, err = drvcfg.String(env.Cfg, "broker_host")
	if err != nil {
		return err
	}
	d.brokerPort = drvcfg.IntOr(env.Cfg, "broker_port", 1883)
	d.stateTopic, err = drvcfg.String(env.Cfg, "state_topic")
	if err != nil {
		return err
	}
	d.commandTopic = drvcfg.StringOr(env.Cfg, "command_topic", "")
	d.clientID = drvcfg.StringOr(env.Cfg, "client_id", "drmemd-"+string(env.Prefix))
	d.qos = drvcfg.IntOr(env.Cfg, "qos", 0)

	dir := backend.ReadOnly
	if d.commandTopic != "" {
		dir = backend.ReadWrite
	}
	d.outputName, err = env.Register(ctx, "output", value.TagFloat64, dir, "", 0)
	if err != nil {
		return err
	}
	if dir == backend.ReadWrite {
		d.inbox = env.Inbox(d.outputName)
	}
	d.env = env
	return nil
}

func (d *Driver) dial() (*mqtt.Client, error) {
	// mqttsensor builds its own broker config from its cfg table rather
	// than sharing the daemon-wide config.MQTT, since each instance may
	// point at a different broker.
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     d.brokerHost,
			Port:     d.brokerPort,
			ClientID: d.clientID,
		},
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
		QoS: d.qos,
	}
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	client.SetLogger(logging.Default())
	return client, nil
}

func (d *Driver) Run(ctx context.Context) error {
	for {
		client, err := d.dial()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
				continue
			}
		}
		d.client = client

		readings := make(chan float64, 8)
		subErr := client.Subscribe(d.stateTopic, byte(d.qos), func(_ string, payload []byte) error {
			v, err := strconv.ParseFloat(string(payload), 64)
			if err != nil {
				return fmt.Errorf("mqttsensor: non-numeric payload: %w", err)
			}
			select {
			case readings <- v:
			default:
			}
			return nil
		})
		if subErr != nil {
			client.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
				continue
			}
		}

		if err := d.serve(ctx, readings); err != nil {
			client.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		client.Close()
		return nil
	}
}

// serve runs the reactive loop for one live broker connection. It
// returns nil only when ctx is cancelled; any other return means the
// connection should be re-dialed.
func (d *Driver) serve(ctx context.Context, readings <-chan float64) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case v := <-readings:
			if err := d.env.Write(ctx, d.outputName, value.Float64(v), time.Now().UTC()); err != nil {
				return err
			}

		case req := <-d.inbox:
			v, ok := req.Value.(value.Float64)
			if !ok {
				req.Reply <- driver.SettingResult{Err: backend.ErrTypeMismatch}
				continue
			}
			payload := strconv.FormatFloat(float64(v), 'g', -1, 64)
			if err := d.client.Publish(d.commandTopic, []byte(payload), byte(d.qos), false); err != nil {
				req.Reply <- driver.SettingResult{Err: err}
				continue
			}
			req.Reply <- driver.SettingResult{Value: v}
			_ = d.env.Write(ctx, d.outputName, v, time.Now().UTC())
		}
	}
}
