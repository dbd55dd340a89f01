// drmemd is a hobbyist home-automation daemon: a supervised fleet of
// device drivers feeding a reactive logic engine through a shared
// backend fabric, with an optional durable (SQLite + InfluxDB) storage
// tier and a read-only status HTTP surface for operations visibility.
//
// For the wire protocol external clients use to query/subscribe/mutate
// devices, see the (out of scope here) client-server component; drmemd
// itself only needs to know whether to bind a listener for it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/drmemd/migrations"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/backend/durable"
	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/drivers/counter"
	"github.com/nerrad567/drmemd/internal/drivers/cycle"
	"github.com/nerrad567/drmemd/internal/drivers/latch"
	"github.com/nerrad567/drmemd/internal/drivers/mapper"
	"github.com/nerrad567/drmemd/internal/drivers/memory"
	"github.com/nerrad567/drmemd/internal/drivers/mqttsensor"
	"github.com/nerrad567/drmemd/internal/drivers/timer"
	"github.com/nerrad567/drmemd/internal/drivers/tod"
	"github.com/nerrad567/drmemd/internal/infrastructure/config"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/logic"
	"github.com/nerrad567/drmemd/internal/logic/eval"
	"github.com/nerrad567/drmemd/internal/observer"
	"github.com/nerrad567/drmemd/internal/statusapi"
	"github.com/nerrad567/drmemd/internal/value"

	"golang.org/x/sync/errgroup"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting drmemd", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	be, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}
	defer func() {
		log.Info("closing backend")
		if closeErr := closeBackend(); closeErr != nil {
			log.Error("error closing backend", "error", closeErr)
		}
	}()

	debug := observer.NewDebugServer(observer.NewHub(), log)
	if withDebug, ok := be.(interface {
		SetDebugServer(*observer.DebugServer)
	}); ok {
		withDebug.SetDebugServer(debug)
	}

	registry := buildDriverRegistry()
	supervisor := driver.NewSupervisor(registry, be, log)
	if withRouter, ok := be.(interface {
		SetRouter(backend.SettingRouter)
	}); ok {
		withRouter.SetRouter(supervisor)
	}

	specs, err := driverSpecs(cfg.Drivers)
	if err != nil {
		return fmt.Errorf("building driver instances: %w", err)
	}
	supervisor.Start(ctx, specs)
	defer func() {
		log.Info("stopping driver supervisor")
		supervisor.Stop()
	}()
	log.Info("driver supervisor started", "instances", len(specs))

	blocks, err := logic.CompileAll(cfg.Logic)
	if err != nil {
		return fmt.Errorf("compiling logic: %w", err)
	}

	logicGroup, logicCtx := errgroup.WithContext(ctx)
	haveGeo := cfg.Location.Latitude != 0 || cfg.Location.Longitude != 0
	for _, block := range blocks {
		block := block
		node, err := eval.NewNode(ctx, block, be, cfg.Location.Latitude, cfg.Location.Longitude, haveGeo, log)
		if err != nil {
			return fmt.Errorf("starting logic block %s: %w", block.Label, err)
		}
		logicGroup.Go(func() error {
			if err := node.Run(logicCtx); err != nil && logicCtx.Err() == nil {
				log.Error("logic block exited", "label", block.Label, "error", err)
			}
			return nil
		})
	}
	log.Info("logic engine started", "blocks", len(blocks))

	var status *statusapi.Server
	if cfg.StatusAPI.Enabled {
		status, err = statusapi.New(statusapi.Deps{
			Config:     cfg.StatusAPI,
			Logger:     log,
			Backend:    be,
			Supervisor: supervisor,
			Debug:      debug,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating status api: %w", err)
		}
		if err := status.Start(ctx); err != nil {
			return fmt.Errorf("starting status api: %w", err)
		}
		defer func() {
			log.Info("stopping status api")
			if closeErr := status.Close(); closeErr != nil {
				log.Error("error stopping status api", "error", closeErr)
			}
		}()
	} else {
		log.Info("status api disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	//nolint:errcheck // logic nodes never return a non-nil error; ctx cancellation stops the group
	logicGroup.Wait()

	log.Info("drmemd stopped")
	return nil
}

// openBackend opens either the ephemeral or durable backend per
// cfg.Backend.Driver, returning a uniform Close callback.
func openBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (backend.Backend, func() error, error) {
	switch cfg.Backend.Driver {
	case "durable":
		be, err := durable.Open(ctx, cfg.Backend.Durable, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("durable backend opened",
			"sqlite_path", cfg.Backend.Durable.SQLite.Path,
			"influxdb_enabled", cfg.Backend.Durable.InfluxDB.Enabled,
		)
		return be, be.Close, nil
	default:
		be := ephemeral.New()
		log.Info("ephemeral backend opened")
		return be, be.Close, nil
	}
}

// buildDriverRegistry registers every built-in driver plus the
// supplemental mqttsensor example driver, then seals the registry.
func buildDriverRegistry() *driver.Registry {
	registry := driver.NewRegistry()
	registry.MustRegister(counter.Name, counter.New)
	registry.MustRegister(tod.Name, tod.New)
	registry.MustRegister(mapper.Name, mapper.New)
	registry.MustRegister(latch.Name, latch.New)
	registry.MustRegister(cycle.Name, cycle.New)
	registry.MustRegister(timer.Name, timer.New)
	registry.MustRegister(memory.Name, memory.New)
	registry.MustRegister(mqttsensor.Name, mqttsensor.New)
	registry.Seal()
	return registry
}

// driverSpecs converts configured driver sections into driver.Spec,
// validating each prefix against the device naming grammar.
func driverSpecs(cfgs []config.DriverConfig) ([]driver.Spec, error) {
	specs := make([]driver.Spec, 0, len(cfgs))
	for _, d := range cfgs {
		prefix, err := value.ParseName(d.Prefix)
		if err != nil {
			return nil, fmt.Errorf("driver %s: prefix %q: %w", d.Name, d.Prefix, err)
		}
		specs = append(specs, driver.Spec{Name: d.Name, Prefix: prefix, Cfg: d.Cfg})
	}
	return specs, nil
}

func getConfigPath() string {
	if path := os.Getenv("DRMEMD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
