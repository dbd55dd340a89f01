// Package backend defines the fabric's storage/distribution contract,
// consumed identically by the driver runtime and the logic engine. Two
// implementations live in sibling packages: ephemeral (in-process,
// latest-only) and durable (SQLite latest-state + InfluxDB bounded
// history).
package backend

import (
	"context"
	"time"

	"github.com/nerrad567/drmemd/internal/value"
)

// Direction is a device's read/write direction.
type Direction int

const (
	ReadOnly Direction = iota
	ReadWrite
)

// Record describes a registered device: its declared type, direction,
// optional engineering units, owning driver instance, and (durable
// backend only) history depth in readings.
type Record struct {
	Name         value.Name
	Type         value.Tag
	Direction    Direction
	Units        string
	Owner        string
	HistoryDepth int
}

// Reading is a (timestamp, value) pair. Timestamps are assigned by the
// producer and are monotonic per device along the accepted path.
type Reading struct {
	Timestamp time.Time
	Value     value.Value
}

// Handle identifies a registered device for write/route operations.
type Handle struct {
	Name value.Name
}

// Item is delivered over a Subscription: either a Reading or a gap
// indicator signalling that the subscriber fell behind and intermediate
// values were coalesced away.
type Item struct {
	Reading Reading
	Gap     bool
}

// Subscription delivers a stream of Items for one device, starting with
// the current latest reading (if any) followed by each subsequent one.
type Subscription interface {
	// C is the channel of delivered items. It is closed when the
	// subscription ends (backend shutdown or explicit Close).
	C() <-chan Item
	Close()
}

// Backend is the fabric's storage/distribution contract.
type Backend interface {
	// Register creates (or, if identical, idempotently confirms) a
	// device record. Returns ErrAlreadyRegistered if a prior
	// registration of name differs in type, direction, or owner,
	// ErrBadName if name fails the naming grammar.
	Register(ctx context.Context, name value.Name, typ value.Tag, dir Direction, units string, owner string, historyDepth int) (Handle, error)

	// Write records a reading for a registered device. Fails with
	// ErrTypeMismatch on declared-type mismatch, ErrNonMonotonic if ts is
	// strictly less than the stored last (equal timestamps are accepted,
	// ordered by write order).
	Write(ctx context.Context, h Handle, v value.Value, ts time.Time) error

	// Latest returns the current reading for name, or (Reading{}, false,
	// nil) if the device has never been written, or ErrUnknownDevice.
	Latest(ctx context.Context, name value.Name) (Reading, bool, error)

	// History returns up to window readings, oldest first. The ephemeral
	// backend returns at most the single latest reading.
	History(ctx context.Context, name value.Name, window int) ([]Reading, error)

	// SubscribeReadings opens a Subscription for name, immediately
	// delivering the current latest reading if one exists.
	SubscribeReadings(ctx context.Context, name value.Name) (Subscription, error)

	// RouteSetting delivers v to the owning driver of a read-write
	// device and returns once the driver acknowledges (or a timeout
	// elapses, surfaced as ErrNotAccepted).
	RouteSetting(ctx context.Context, name value.Name, v value.Value) error

	// Record returns the registration record for name, or
	// ErrUnknownDevice.
	Record(ctx context.Context, name value.Name) (Record, error)

	// Records returns the registration record for every registered
	// device, for status reporting.
	Records(ctx context.Context) ([]Record, error)

	// Close releases backend resources (connections, goroutines).
	Close() error
}

// SettingRouter is implemented by the driver runtime and registered with
// a Backend so that RouteSetting can reach the owning driver. Kept
// separate from Backend so ephemeral/durable share the same routing path
// without depending on the driver package directly.
type SettingRouter interface {
	RouteSetting(ctx context.Context, name value.Name, v value.Value) error
}
