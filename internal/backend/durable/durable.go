// Package durable implements backend.Backend with persistent storage:
// SQLite holds the device registry and each device's latest reading
// (internal/infrastructure/database, adapted from the teacher's device
// repository), and InfluxDB holds a bounded history stream
// (internal/infrastructure/influxdb). Subscription fan-out reuses
// internal/observer, the same Hub the ephemeral backend uses.
package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/infrastructure/config"
	"github.com/nerrad567/drmemd/internal/infrastructure/database"
	"github.com/nerrad567/drmemd/internal/infrastructure/influxdb"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/observer"
	"github.com/nerrad567/drmemd/internal/value"
)

// defaultHistoryWindow bounds an unspecified-window history read.
const defaultHistoryWindow = 50

// Backend is the durable backend.Backend implementation. Safe for
// concurrent use.
type Backend struct {
	db     *database.DB
	influx *influxdb.Client // nil if InfluxDB is disabled

	mu      sync.RWMutex
	records map[value.Name]backend.Record

	hub    *observer.Hub
	debug  *observer.DebugServer // optional, set via SetDebugServer
	router backend.SettingRouter
}

// Open connects the SQLite latest-value store (migrating it to the
// current schema) and, if enabled, the InfluxDB history stream, and
// loads the existing device registry into memory. log is nil-safe: a
// nil logger defaults to logging.Default() inside database.Open.
func Open(ctx context.Context, cfg config.DurableConfig, log *logging.Logger) (*Backend, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.SQLite.Path,
		WALMode:     cfg.SQLite.WALMode,
		BusyTimeout: cfg.SQLite.BusyTimeout,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("durable: opening sqlite: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("durable: migrating sqlite: %w", err)
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("durable: connecting influxdb: %w", err)
		}
	}

	b := &Backend{
		db:      db,
		influx:  influxClient,
		records: make(map[value.Name]backend.Record),
		hub:     observer.NewHub(),
	}

	if err := b.loadRegistry(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("durable: loading device registry: %w", err)
	}

	return b, nil
}

// SetRouter wires the driver runtime as the destination for settings.
func (b *Backend) SetRouter(r backend.SettingRouter) {
	b.mu.Lock()
	b.router = r
	b.mu.Unlock()
}

// SetDebugServer wires an optional debug WebSocket relay; every
// persisted reading is also fanned out to its connected clients.
func (b *Backend) SetDebugServer(d *observer.DebugServer) {
	b.mu.Lock()
	b.debug = d
	b.mu.Unlock()
}

func (b *Backend) loadRegistry(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT name, type, direction, units, owner, history_depth
		FROM devices`)
	if err != nil {
		return fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var typ, dir, historyDepth int
		var units, owner string
		if err := rows.Scan(&name, &typ, &dir, &units, &owner, &historyDepth); err != nil {
			return fmt.Errorf("scanning device row: %w", err)
		}
		rec := backend.Record{
			Name:         value.Name(name),
			Type:         value.Tag(typ),
			Direction:    backend.Direction(dir),
			Units:        units,
			Owner:        owner,
			HistoryDepth: historyDepth,
		}
		b.records[rec.Name] = rec
	}
	return rows.Err()
}

func (b *Backend) Register(ctx context.Context, name value.Name, typ value.Tag, dir backend.Direction, units string, owner string, historyDepth int) (backend.Handle, error) {
	if _, err := value.ParseName(string(name)); err != nil {
		return backend.Handle{}, fmt.Errorf("%w: %s", backend.ErrBadName, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.records[name]; ok {
		if rec.Type != typ || rec.Direction != dir || rec.Owner != owner {
			return backend.Handle{}, fmt.Errorf("%w: %s", backend.ErrAlreadyRegistered, name)
		}
		return backend.Handle{Name: name}, nil
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO devices (name, type, direction, units, owner, history_depth, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(name), int(typ), int(dir), units, owner, historyDepth, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return backend.Handle{}, fmt.Errorf("durable: registering device %s: %w", name, err)
	}

	b.records[name] = backend.Record{
		Name: name, Type: typ, Direction: dir, Units: units, Owner: owner, HistoryDepth: historyDepth,
	}
	return backend.Handle{Name: name}, nil
}

func (b *Backend) Write(ctx context.Context, h backend.Handle, v value.Value, ts time.Time) error {
	b.mu.RLock()
	rec, ok := b.records[h.Name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrUnknownDevice, h.Name)
	}
	if rec.Type != v.Kind() {
		return fmt.Errorf("%w: device %s declared %s, got %s", backend.ErrTypeMismatch, h.Name, rec.Type, v.Kind())
	}

	var lastTS time.Time
	var lastStr string
	err := b.db.QueryRowContext(ctx,
		"SELECT timestamp FROM latest_readings WHERE name = ?", string(h.Name),
	).Scan(&lastStr)
	switch {
	case err == nil:
		lastTS, err = time.Parse(time.RFC3339Nano, lastStr)
		if err == nil && ts.Before(lastTS) {
			return fmt.Errorf("%w: device %s", backend.ErrNonMonotonic, h.Name)
		}
	case !isNoRows(err):
		return fmt.Errorf("durable: reading last timestamp for %s: %w", h.Name, err)
	}

	encoded, err := encode(v)
	if err != nil {
		return fmt.Errorf("durable: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO latest_readings (name, value, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, timestamp = excluded.timestamp`,
		string(h.Name), encoded, ts.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("durable: writing reading for %s: %w", h.Name, err)
	}

	// A device registered with history_depth=0 gets ephemeral-only
	// behavior (latest value in SQLite) even with InfluxDB enabled
	// globally: no history stream is recorded for it.
	if b.influx != nil && rec.HistoryDepth > 0 {
		b.influx.WritePointWithTime("readings",
			map[string]string{"device": string(h.Name)},
			map[string]interface{}{"value": encoded},
			ts,
		)
	}

	reading := backend.Reading{Timestamp: ts, Value: v}
	b.hub.Publish(h.Name, reading)
	b.mu.RLock()
	debug := b.debug
	b.mu.RUnlock()
	if debug != nil {
		debug.Publish(h.Name, reading, false)
	}
	return nil
}

func (b *Backend) Latest(ctx context.Context, name value.Name) (backend.Reading, bool, error) {
	b.mu.RLock()
	rec, ok := b.records[name]
	b.mu.RUnlock()
	if !ok {
		return backend.Reading{}, false, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}

	var encoded, tsStr string
	err := b.db.QueryRowContext(ctx,
		"SELECT value, timestamp FROM latest_readings WHERE name = ?", string(name),
	).Scan(&encoded, &tsStr)
	if isNoRows(err) {
		return backend.Reading{}, false, nil
	}
	if err != nil {
		return backend.Reading{}, false, fmt.Errorf("durable: reading latest for %s: %w", name, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return backend.Reading{}, false, fmt.Errorf("durable: parsing stored timestamp for %s: %w", name, err)
	}
	v, err := decode(rec.Type, encoded)
	if err != nil {
		return backend.Reading{}, false, fmt.Errorf("durable: decoding stored value for %s: %w", name, err)
	}
	return backend.Reading{Timestamp: ts, Value: v}, true, nil
}

// History returns up to window readings from the InfluxDB stream, oldest
// first. With InfluxDB disabled it falls back to the single latest
// reading, matching the ephemeral backend's contract.
func (b *Backend) History(ctx context.Context, name value.Name, window int) ([]backend.Reading, error) {
	b.mu.RLock()
	rec, ok := b.records[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}

	// No Influx client, or this device was registered with
	// history_depth=0: fall back to its single latest reading rather
	// than consulting the (possibly globally enabled) history stream.
	if b.influx == nil || rec.HistoryDepth == 0 {
		r, ok, err := b.Latest(ctx, name)
		if err != nil || !ok {
			return nil, err
		}
		return []backend.Reading{r}, nil
	}

	if window <= 0 {
		window = defaultHistoryWindow
	}
	if window > rec.HistoryDepth {
		window = rec.HistoryDepth
	}
	points, err := b.influx.QueryHistory(ctx, string(name), window)
	if err != nil {
		return nil, fmt.Errorf("durable: querying history for %s: %w", name, err)
	}

	readings := make([]backend.Reading, 0, len(points))
	for _, p := range points {
		v, err := decode(rec.Type, p.Encoded)
		if err != nil {
			continue // skip a corrupt point rather than fail the whole window
		}
		readings = append(readings, backend.Reading{Timestamp: p.Timestamp, Value: v})
	}
	return readings, nil
}

func (b *Backend) SubscribeReadings(ctx context.Context, name value.Name) (backend.Subscription, error) {
	b.mu.RLock()
	_, ok := b.records[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}

	var latest *backend.Reading
	if r, ok, err := b.Latest(ctx, name); err != nil {
		return nil, err
	} else if ok {
		latest = &r
	}
	return b.hub.Subscribe(name, latest), nil
}

func (b *Backend) RouteSetting(ctx context.Context, name value.Name, v value.Value) error {
	b.mu.RLock()
	rec, ok := b.records[name]
	router := b.router
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}
	if rec.Direction != backend.ReadWrite {
		return fmt.Errorf("%w: %s", backend.ErrReadOnly, name)
	}
	if rec.Type != v.Kind() {
		return fmt.Errorf("%w: device %s declared %s, got %s", backend.ErrTypeMismatch, name, rec.Type, v.Kind())
	}
	if router == nil {
		return fmt.Errorf("%w: no driver runtime attached", backend.ErrNotAccepted)
	}
	return router.RouteSetting(ctx, name, v)
}

func (b *Backend) Record(_ context.Context, name value.Name) (backend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[name]
	if !ok {
		return backend.Record{}, fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}
	return rec, nil
}

func (b *Backend) Records(_ context.Context) ([]backend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]backend.Record, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec)
	}
	return out, nil
}

// Close releases the SQLite connection, the InfluxDB client (flushing
// pending writes), and every outstanding subscription.
func (b *Backend) Close() error {
	b.hub.CloseAll()
	if b.influx != nil {
		b.influx.Close()
	}
	return b.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
