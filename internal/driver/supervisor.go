package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

// Restart backoff bounds, per spec §4.3: exponential starting at 5s,
// capped at 5 min. A driver that stays up at least maxBackoff before
// failing again has its backoff reset to initialBackoff, grounded on the
// teacher's process.Manager restart-count/delay shape but driving a Go
// goroutine instead of an OS subprocess. initialBackoff is a variable so
// tests can shorten it.
var initialBackoff = 5 * time.Second

const (
	maxBackoff = 5 * time.Minute

	// routeSettingTimeout is RouteSetting's default wait, per spec §5.
	routeSettingTimeout = 2 * time.Second

	// shutdownGrace is how long Stop waits for driver goroutines to exit
	// cleanly before abandoning them (spec §5 "two-phase... 5s grace").
	shutdownGrace = 5 * time.Second
)

// Spec is one configured driver instance: the factory key, the
// device-name prefix, and the cfg sub-table passed to Init.
type Spec struct {
	Name   string
	Prefix value.Name
	Cfg    map[string]any
}

type instance struct {
	spec   Spec
	driver Driver
	env    *Env
}

// Supervisor hosts one goroutine per driver instance (spec §4.3),
// restarting on failure with exponential backoff and routing backend
// settings to the owning instance's inbox. It implements
// backend.SettingRouter.
type Supervisor struct {
	registry *Registry
	be       backend.Backend
	logger   *logging.Logger

	mu        sync.RWMutex
	instances []*instance
	inboxes   map[value.Name]chan SettingRequest

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewSupervisor creates a Supervisor over the given registry and
// backend. The backend's SetRouter (ephemeral) or equivalent must be
// pointed at the returned Supervisor for RouteSetting to reach drivers.
func NewSupervisor(registry *Registry, be backend.Backend, logger *logging.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		be:       be,
		logger:   logger,
		inboxes:  make(map[value.Name]chan SettingRequest),
	}
}

// Start initializes every configured instance in order (spec §4.3
// "initialized in configuration order"). Init failures are logged and
// that instance is skipped; they do not block the others. After every
// successful instance has registered its devices, a supervised goroutine
// is launched per instance. Start returns once all Inits have run; it
// does not wait for Run to return (Run is unbounded).
func (s *Supervisor) Start(ctx context.Context, specs []Spec) {
	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group

	var started []*instance
	for _, spec := range specs {
		spec := spec
		factory, ok := s.registry.Lookup(spec.Name)
		if !ok {
			s.logger.Error("unknown driver factory, skipping instance", "driver", spec.Name, "prefix", spec.Prefix)
			continue
		}

		d := factory()
		env := newEnv(spec.Prefix, string(spec.Prefix), spec.Cfg, s.be)

		if err := d.Init(ctx, env); err != nil {
			s.logger.Error("driver init failed, instance disabled", "driver", spec.Name, "prefix", spec.Prefix, "error", err)
			continue
		}

		inst := &instance{spec: spec, driver: d, env: env}

		s.mu.Lock()
		s.instances = append(s.instances, inst)
		env.mu.Lock()
		for name, ch := range env.inboxes {
			s.inboxes[name] = ch
		}
		env.mu.Unlock()
		s.mu.Unlock()
		started = append(started, inst)
	}

	for _, inst := range started {
		inst := inst
		group.Go(func() error {
			s.runInstance(runCtx, inst)
			return nil
		})
	}
}

// runInstance drives one instance's restart loop.
func (s *Supervisor) runInstance(ctx context.Context, inst *instance) {
	backoff := initialBackoff
	for {
		start := time.Now()
		err := inst.driver.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Error("driver exited, restarting",
			"driver", inst.spec.Name, "prefix", inst.spec.Prefix, "error", err, "backoff", backoff)

		if time.Since(start) >= maxBackoff {
			backoff = initialBackoff
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Stop cancels every driver goroutine and waits up to shutdownGrace for
// them to exit before abandoning them (spec §5's two-phase shutdown).
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.group.Wait() //nolint:errcheck // runInstance never returns a non-nil error
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.logger.Warn("driver shutdown grace period elapsed, abandoning remaining instances")
	}
}

// RouteSetting implements backend.SettingRouter: it finds the owning
// instance's inbox for name, enqueues the setting, and blocks for the
// driver's acknowledgement up to routeSettingTimeout.
func (s *Supervisor) RouteSetting(ctx context.Context, name value.Name, v value.Value) error {
	s.mu.RLock()
	inbox, ok := s.inboxes[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrUnknownDevice, name)
	}

	reply := make(chan SettingResult, 1)
	timeout := time.NewTimer(routeSettingTimeout)
	defer timeout.Stop()

	select {
	case inbox <- SettingRequest{Value: v, Reply: reply}:
	case <-timeout.C:
		return fmt.Errorf("%w: inbox full for %s", backend.ErrNotAccepted, name)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case res := <-reply:
		return res.Err
	case <-timeout.C:
		return fmt.Errorf("%w: timeout awaiting driver ack for %s", backend.ErrNotAccepted, name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Instances returns a snapshot of configured instance specs, for status
// reporting.
func (s *Supervisor) Instances() []Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Spec, len(s.instances))
	for i, inst := range s.instances {
		out[i] = inst.spec
	}
	return out
}
