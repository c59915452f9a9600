package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bluewidget/bluewidget/internal/bluez"
	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
	"github.com/bluewidget/bluewidget/internal/infrastructure/logging"
	"github.com/bluewidget/bluewidget/internal/settings"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "BLUEWIDGET_CONFIG"
)

// backend is a gateway that owns a connection.
type backend interface {
	coordinator.Gateway
	AdapterPath() string
	BreakerState() string
	Close() error
}

// openBackend connects to bluetoothd. Tests replace it.
var openBackend = func(ctx context.Context, cfg *config.Config, log *logging.Logger) (backend, error) {
	gw, err := bluez.Open(ctx, bluez.Config{
		Adapter:         cfg.Bluez.Adapter,
		CallTimeout:     cfg.GetCallTimeout(),
		BreakerFailures: uint32(cfg.Bluez.BreakerFailures), //nolint:gosec // Validated >= 1
		BreakerTimeout:  cfg.GetBreakerTimeout(),
	}, log.With("component", "bluez"))
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath   string
	settingsPath string
}

// resolveConfigPath returns the --config flag, then BLUEWIDGET_CONFIG, then
// the default.
func (o *globalOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the daemon configuration and builds the logger. The
// terminal UI owns the screen, so console logging is discarded for it.
func (o *globalOptions) loadConfig(quietConsole bool) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(o.resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if quietConsole && cfg.Logging.Output != "file" {
		cfg.Logging.Output = "discard"
	}
	return cfg, logging.New(cfg.Logging, version), nil
}

// settingsStore opens and loads the per-user settings file.
func (o *globalOptions) settingsStore(cfg *config.Config, log *logging.Logger) (*settings.Store, error) {
	path := o.settingsPath
	if path == "" {
		path = cfg.Settings.Path
	}
	if path == "" {
		var err error
		if path, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}

	store := settings.NewStore(path)
	store.SetLogger(log.With("component", "settings"))
	store.Load()
	return store, nil
}

// core is the running coordinator and everything it owns.
type core struct {
	cfg      *config.Config
	log      *logging.Logger
	settings *settings.Store
	backend  backend
	coord    *coordinator.Coordinator
	fg       *coordinator.Foreground
}

// coreOptions carries the optional coordinator collaborators.
type coreOptions struct {
	metrics coordinator.Metrics
	audit   coordinator.AuditSink
}

// startCore opens the backend and starts the coordinator.
//
// Parameters:
//   - ctx: Context bounding backend startup and the command worker
//   - cfg: Loaded configuration
//   - log: Configured logger
//   - store: Loaded settings
//   - opts: Optional metrics and audit sinks
//
// Returns:
//   - *core: Running core; Close must be called
//   - error: wraps coordinator.ErrBackendUnavailable when bluetoothd is unreachable
func startCore(ctx context.Context, cfg *config.Config, log *logging.Logger, store *settings.Store, opts coreOptions) (*core, error) {
	gw, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	policy := device.DefaultPolicy()
	if name := cfg.Coordinator.PreferredDevice; name != "" {
		policy = device.NewPolicy(device.PreferredName(name), device.ConnectedFirst, device.PairedFirst, device.ByName)
	}

	coord := coordinator.New(gw, store, coordinator.Options{
		CallTimeout:         cfg.GetCallTimeout(),
		CommandQueueSize:    cfg.Coordinator.CommandQueueSize,
		ReportQueueSize:     cfg.Coordinator.ReportQueueSize,
		RefreshAfterCommand: cfg.Coordinator.RefreshAfterCommand,
		Policy:              &policy,
		Metrics:             opts.metrics,
		Audit:               opts.audit,
	})
	coord.SetLogger(log.With("component", "coordinator"))
	coord.Start(ctx)

	log.Info("coordinator started",
		"adapter", gw.AdapterPath(),
		"breaker", gw.BreakerState(),
		"functionality_enabled", store.FunctionalityEnabled(),
		"settings", store.Path(),
	)

	return &core{
		cfg:      cfg,
		log:      log,
		settings: store,
		backend:  gw,
		coord:    coord,
		fg:       coordinator.NewForeground(coord),
	}, nil
}

// Close stops the coordinator, then releases the backend.
func (c *core) Close() {
	if err := c.coord.Close(); err != nil {
		c.log.Error("error closing coordinator", "error", err)
	}
	if err := c.backend.Close(); err != nil {
		c.log.Error("error closing backend", "error", err)
	}
}

// backendError turns a startup failure into a clean message.
func backendError(err error) error {
	if errors.Is(err, coordinator.ErrBackendUnavailable) {
		return fmt.Errorf("bluetooth service unavailable (is bluetoothd running?): %w", err)
	}
	return err
}

// waitTimeout bounds how long a one-shot command waits for its outcome.
func waitTimeout(cfg *config.Config) time.Duration {
	return 3*cfg.GetCallTimeout() + 2*time.Second
}
