// Package driver implements the driver runtime (spec §4.3, component C):
// the supervised concurrent host that instantiates drivers from
// configuration, wires their devices into the backend, routes settings
// to them, and restarts them on failure.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/value"
)

// settingInboxSize is the per-device setting inbox capacity (spec §5
// "recommended 4").
const settingInboxSize = 4

// Driver is a unit of code owning one or more devices, per spec §4.3.
type Driver interface {
	// Init registers every device the instance will own (via env) and
	// publishes initial values if applicable. A non-nil error means the
	// driver is not started; the runtime logs it and moves on to the
	// next configured instance.
	Init(ctx context.Context, env *Env) error

	// Run executes the driver's unbounded reactive loop until ctx is
	// cancelled or a fatal condition forces it to return an error. The
	// supervisor restarts a driver whose Run returns, with exponential
	// backoff (§4.3).
	Run(ctx context.Context) error
}

// Factory builds a new, uninitialized Driver instance.
type Factory func() Driver

// SettingRequest is one value routed to a driver-owned read-write
// device, delivered over the device's Env.Inbox channel.
type SettingRequest struct {
	Value value.Value
	Reply chan<- SettingResult
}

// SettingResult is the driver's reply to a SettingRequest: either the
// value it actually wrote (which may be clamped) or an error.
type SettingResult struct {
	Value value.Value
	Err   error
}

// Env is the per-instance handle a Driver uses during Init and Run: it
// scopes device registration under the instance's name prefix, gives
// access to the backend for reads/writes, and hands back a bounded
// inbox channel for each read-write device the driver registers. Drivers
// never see the backend.SettingRouter machinery directly; the Env/
// Supervisor pair is what wires driver.Driver into backend.Backend.
type Env struct {
	Prefix value.Name
	Cfg    map[string]any

	be    backend.Backend
	owner string

	mu      sync.Mutex
	inboxes map[value.Name]chan SettingRequest
}

func newEnv(prefix value.Name, owner string, cfg map[string]any, be backend.Backend) *Env {
	return &Env{
		Prefix:  prefix,
		Cfg:     cfg,
		be:      be,
		owner:   owner,
		inboxes: make(map[value.Name]chan SettingRequest),
	}
}

// Register registers a device named prefix:leaf with the backend under
// this instance's ownership. For a read-write device it also allocates
// the device's setting inbox, retrievable via Inbox.
func (e *Env) Register(ctx context.Context, leaf string, typ value.Tag, dir backend.Direction, units string, historyDepth int) (value.Name, error) {
	name := e.Prefix.Join(leaf)
	if _, err := e.be.Register(ctx, name, typ, dir, units, e.owner, historyDepth); err != nil {
		return "", err
	}
	if dir == backend.ReadWrite {
		e.mu.Lock()
		if _, ok := e.inboxes[name]; !ok {
			e.inboxes[name] = make(chan SettingRequest, settingInboxSize)
		}
		e.mu.Unlock()
	}
	return name, nil
}

// Inbox returns the setting-request channel for a read-write device this
// instance registered, for the driver's Run loop to select on. Returns
// nil if name was not registered as read-write.
func (e *Env) Inbox(name value.Name) <-chan SettingRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inboxes[name]
}

// Write records a reading for a device this instance owns.
func (e *Env) Write(ctx context.Context, name value.Name, v value.Value, ts time.Time) error {
	return e.be.Write(ctx, backend.Handle{Name: name}, v, ts)
}

// inboxFor is used by the Supervisor to find the channel to deliver a
// routed setting on, independent of which Env instance created it.
func (e *Env) inboxFor(name value.Name) (chan SettingRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.inboxes[name]
	return ch, ok
}
