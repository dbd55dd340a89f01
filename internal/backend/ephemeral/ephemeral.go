// Package ephemeral implements an in-process, latest-only backend.Backend.
// It is grounded on the teacher's internal/device.Registry: an in-memory
// map behind a sync.RWMutex, with subscription fan-out delegated to
// internal/observer (itself grounded on the teacher's websocket Hub).
package ephemeral

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/observer"
	"github.com/nerrad567/drmemd/internal/value"
)

// entry is the in-memory state for one device.
type entry struct {
	record  backend.Record
	latest  backend.Reading
	hasData bool
}

// Backend is an in-memory backend.Backend implementation. Safe for
// concurrent use.
type Backend struct {
	mu      sync.RWMutex
	devices map[value.Name]*entry
	hub     *observer.Hub
	debug   *observer.DebugServer // optional, set via SetDebugServer
	router  backend.SettingRouter
}

// New creates an empty ephemeral backend. SetRouter must be called
// before RouteSetting is used (the driver runtime supplies itself once
// it starts).
func New() *Backend {
	return &Backend{
		devices: make(map[value.Name]*entry),
		hub:     observer.NewHub(),
	}
}

// SetRouter wires the driver runtime as the destination for settings.
func (b *Backend) SetRouter(r backend.SettingRouter) {
	b.mu.Lock()
	b.router = r
	b.mu.Unlock()
}

// SetDebugServer wires an optional debug WebSocket relay; every
// published reading is also fanned out to its connected clients.
func (b *Backend) SetDebugServer(d *observer.DebugServer) {
	b.mu.Lock()
	b.debug = d
	b.mu.Unlock()
}

func (b *Backend) Register(_ context.Context, name value.Name, typ value.Tag, dir backend.Direction, units string, owner string, historyDepth int) (backend.Handle, error) {
	if _, err := value.ParseName(string(name)); err != nil {
		return backend.Handle{}, fmt.Errorf("%w: %s", backend.ErrBadName, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.devices[name]; ok {
		if e.record.Type != typ || e.record.Direction != dir || e.record.Owner != owner {
			return backend.Handle{}, fmt.Errorf("%w: %s", backend.ErrAlreadyRegistered, name)
		}
		return backend.Handle{Name: name}, nil
	}

	b.devices[name] = &entry{record: backend.Record{
		Name: name, Type: typ, Direction: dir, Units: units, Owner: owner, HistoryDepth: historyDepth,
	}}
	return backend.Handle{Name: name}, nil
}

func (b *Backend) Write(_ context.Context, h backend.Handle, v value.Value, ts time.Time) error {
	b.mu.Lock()
	e, ok := b.devices[h.Name]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", backend.ErrUnknownDevice, h.Name)
	}
	if e.record.Type != v.Kind() {
		b.mu.Unlock()
		return fmt.Errorf("%w: device %s declared %s, got %s", backend.ErrTypeMismatch, h.Name, e.record.Type, v.Kind())
	}
	if e.hasData && ts.Before(e.latest.Timestamp) {
		b.mu.Unlock()
		return fmt.Errorf("%w: device %s", backend.ErrNonMonotonic, h.Name)
	}
	reading := backend.Reading{Timestamp: ts, Value: v}
	e.latest = reading
	e.hasData = true
	debug := b.debug
	b.mu.Unlock()

	b.hub.Publish(h.Name, reading)
	if debug != nil {
		debug.Publish(h.Name, reading, false)
	}
	return nil
}

func (b *Backend) Latest(_ context.Context, name value.Name) (backend.Reading, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.devices[name]
	if !ok {
		return backend.Reading{}, false, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}
	if !e.hasData {
		return backend.Reading{}, false, nil
	}
	return e.latest, true, nil
}

// History returns at most the single latest reading, per the spec's
// ephemeral-backend contract.
func (b *Backend) History(ctx context.Context, name value.Name, _ int) ([]backend.Reading, error) {
	r, ok, err := b.Latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []backend.Reading{r}, nil
}

func (b *Backend) SubscribeReadings(_ context.Context, name value.Name) (backend.Subscription, error) {
	b.mu.RLock()
	e, ok := b.devices[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}

	var latest *backend.Reading
	if e.hasData {
		b.mu.RLock()
		r := e.latest
		b.mu.RUnlock()
		latest = &r
	}
	return b.hub.Subscribe(name, latest), nil
}

func (b *Backend) RouteSetting(ctx context.Context, name value.Name, v value.Value) error {
	b.mu.RLock()
	e, ok := b.devices[name]
	router := b.router
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}
	if e.record.Direction != backend.ReadWrite {
		return fmt.Errorf("%w: %s", backend.ErrReadOnly, name)
	}
	if e.record.Type != v.Kind() {
		return fmt.Errorf("%w: device %s declared %s, got %s", backend.ErrTypeMismatch, name, e.record.Type, v.Kind())
	}
	if router == nil {
		return fmt.Errorf("%w: no driver runtime attached", backend.ErrNotAccepted)
	}
	return router.RouteSetting(ctx, name, v)
}

func (b *Backend) Record(_ context.Context, name value.Name) (backend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.devices[name]
	if !ok {
		return backend.Record{}, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}
	return e.record, nil
}

func (b *Backend) Records(_ context.Context) ([]backend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]backend.Record, 0, len(b.devices))
	for _, e := range b.devices {
		out = append(out, e.record)
	}
	return out, nil
}

// Close releases the hub's subscriber resources.
func (b *Backend) Close() error {
	b.hub.CloseAll()
	return nil
}
