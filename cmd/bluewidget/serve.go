package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bluewidget/bluewidget/internal/api"
	"github.com/bluewidget/bluewidget/internal/audit"
	"github.com/bluewidget/bluewidget/internal/bridge"
	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
	"github.com/bluewidget/bluewidget/internal/infrastructure/database"
	"github.com/bluewidget/bluewidget/internal/infrastructure/influxdb"
	"github.com/bluewidget/bluewidget/internal/infrastructure/logging"
	"github.com/bluewidget/bluewidget/internal/infrastructure/mqtt"
	"github.com/bluewidget/bluewidget/internal/launcher"
	"github.com/bluewidget/bluewidget/internal/panel"
	"github.com/bluewidget/bluewidget/internal/schedule"
	"github.com/bluewidget/bluewidget/migrations"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with the HTTP API and MQTT bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

// serve runs the daemon until ctx is cancelled.
//
// Startup order: audit store, metrics, coordinator, schedule, MQTT bridge,
// HTTP API. Deferred Close calls run in reverse.
func serve(ctx context.Context, opts *globalOptions) error {
	cfg, log, err := opts.loadConfig(false)
	if err != nil {
		return err
	}
	log.Info("starting bluewidget",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	store, err := opts.settingsStore(cfg, log)
	if err != nil {
		return err
	}

	checks := make(map[string]api.HealthChecker)
	var coreOpts coreOptions

	// Command audit (optional)
	var (
		auditRepo *audit.SQLiteRepository
		auditDB   *database.DB
	)
	if cfg.Audit.Enabled {
		db, err := openAudit(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		auditRepo = audit.NewSQLiteRepository(db.DB)
		pruneAudit(ctx, auditRepo, cfg.Audit.RetentionDays, log)
		coreOpts.audit = auditRepo
		checks["database"] = db
		auditDB = db
	} else {
		log.Info("command audit disabled")
	}

	// Metrics (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		coreOpts.metrics = influxClient
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	c, err := startCore(ctx, cfg, log, store, coreOpts)
	if err != nil {
		return backendError(err)
	}
	defer c.Close()

	sched, err := startSchedule(c)
	if err != nil {
		return err
	}
	defer sched.Stop()

	go reloadOnHangup(ctx, c, sched)

	// MQTT bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startBridge(c)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT bridge disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		l := launcher.New()
		l.SetLogger(log.With("component", "launcher"))

		deps := api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log.With("component", "api"),
			Controller: c.coord,
			Foreground: c.fg,
			Launcher:   l,
			Checks:     checks,
			Version:    version,
			Backend:    c.backend,
		}
		if auditRepo != nil {
			deps.Audit = auditRepo
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if auditDB != nil {
			deps.DB = auditDB
		}
		if cfg.API.Panel.Enabled {
			deps.Panel = panel.Handler(cfg.API.Panel.Dir)
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	// Every subscriber is registered; start delivering.
	go c.fg.Run(ctx)
	c.coord.Refresh()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openDatabase opens the SQLite file named by cfg without migrating it.
func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openAudit opens the database and applies migrations.
func openAudit(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}

// pruneAudit removes entries older than the retention window. Failure is
// logged; the daemon still starts.
func pruneAudit(ctx context.Context, repo audit.Repository, days int, log *logging.Logger) {
	if days <= 0 {
		return
	}
	n, err := repo.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		log.Warn("pruning command audit failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("pruned command audit", "removed", n, "retention_days", days)
	}
}

// startSchedule starts periodic refresh at the settings interval.
func startSchedule(c *core) (*schedule.Scheduler, error) {
	sched, err := schedule.New(c.coord, c.settings.Current().RefreshEvery())
	if err != nil {
		return nil, fmt.Errorf("creating refresh schedule: %w", err)
	}
	sched.SetLogger(c.log.With("component", "schedule"))
	sched.Start()
	return sched, nil
}

// reloadOnHangup re-reads the settings file on SIGHUP and applies the new
// refresh interval. The simulation flag is read per command, so it takes
// effect immediately.
func reloadOnHangup(ctx context.Context, c *core, sched *schedule.Scheduler) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			s := c.settings.Reload()
			if err := sched.Reschedule(s.RefreshEvery()); err != nil {
				c.log.Warn("rescheduling refresh failed", "error", err)
			}
			c.log.Info("settings reloaded",
				"functionality_enabled", s.FunctionalityEnabled,
				"refresh_interval", sched.Interval().String(),
			)
		}
	}
}

// startBridge connects to the broker and wires the bridge to the core.
func startBridge(c *core) (*mqtt.Client, error) {
	client, err := mqtt.Connect(c.cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(c.log.With("component", "mqtt"))
	c.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", c.cfg.MQTT.Broker.Host, c.cfg.MQTT.Broker.Port),
		"client_id", c.cfg.MQTT.Broker.ClientID,
	)

	b, err := bridge.New(bridge.Options{
		Client:    client,
		Commander: c.coord,
		Topics:    client.Topics(),
		QoS:       client.QoS(),
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	b.SetLogger(c.log.With("component", "bridge"))
	if err := b.Start(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	b.Attach(c.fg)
	return client, nil
}
