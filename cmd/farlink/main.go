// Farlink Core - Remote Desktop Presence & Signaling
//
// This is the main entry point for the Farlink Core application.
// Farlink Core is the coordination server for a WebRTC remote-control
// fleet:
//   - Device registry with presence tracking (online/idle/offline)
//   - WebRTC signaling relay between devices and dashboards
//   - Append-only health journal with fleet summaries
//   - Server-guided reconnection scheduling
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/farlink-core/migrations"

	"github.com/nerrad567/farlink-core/internal/api"
	"github.com/nerrad567/farlink-core/internal/auth"
	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/health"
	signalcore "github.com/nerrad567/farlink-core/internal/signal"

	"github.com/nerrad567/farlink-core/internal/infrastructure/config"
	"github.com/nerrad567/farlink-core/internal/infrastructure/database"
	"github.com/nerrad567/farlink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/farlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/farlink-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Farlink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	store := device.NewSQLiteStore(db.DB)
	registry := device.NewRegistry(store)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	// Drain queued heartbeats into the registry until shutdown.
	go registry.Run(ctx)

	// Reconnection scheduler and connection registry depend on each
	// other: the scheduler's notifications go out over dashboard
	// connections, and admitting a device resets its pending schedule.
	// The conns pointer is assigned before any connection can exist,
	// so the closure never observes it nil.
	var conns *signalcore.Registry
	scheduler := signalcore.NewScheduler(
		cfg.Reconnect.MaxAttempts,
		time.Duration(cfg.Reconnect.InitialDelay)*time.Second,
		func(deviceID string, attempt int) {
			conns.BroadcastToDashboards(signalcore.NewReconnectAttempt(deviceID, attempt, time.Now()))
		},
	)
	scheduler.SetLogger(log)
	defer scheduler.Stop()

	conns = signalcore.NewRegistry(scheduler)
	conns.SetLogger(log)

	sigRouter := signalcore.NewRouter(conns, registry)

	// Health journal
	journal, err := health.NewJournal(cfg.Journal.Dir, cfg.Journal.SummaryCap)
	if err != nil {
		return fmt.Errorf("opening health journal: %w", err)
	}
	log.Info("health journal opened", "dir", cfg.Journal.Dir)

	// Presence monitor: sweeps the registry for silent devices and
	// mirrors every status transition to the journal and dashboards.
	thresholds := device.Thresholds{
		Idle:    time.Duration(cfg.Presence.IdleThreshold) * time.Second,
		Offline: time.Duration(cfg.Presence.OfflineThreshold) * time.Second,
	}
	monitor := health.NewMonitor(
		registry,
		journal,
		conns,
		thresholds,
		time.Duration(cfg.Presence.TickInterval)*time.Second,
	)
	monitor.SetLogger(log)

	// Connect to MQTT broker (optional presence bridge)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		// Status transitions go out as retained presence messages;
		// broker-side heartbeats feed back into the registry.
		monitor.SetPresencePublisher(mqttClient)
		if subErr := mqttClient.SubscribeHeartbeats(func(deviceID string) {
			registry.QueueHeartbeat(deviceID)
		}); subErr != nil {
			return fmt.Errorf("subscribing to MQTT heartbeats: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional fleet telemetry)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		monitor.SetSummaryWriter(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the presence sweep and journal retention loops.
	go monitor.Run(ctx)
	if cfg.Journal.RetentionDays > 0 {
		go monitor.RunRetention(ctx, time.Duration(cfg.Journal.RetentionDays)*24*time.Hour)
	}
	if cfg.Retention.Enabled {
		go runDeviceRetention(ctx, registry, time.Duration(cfg.Retention.HorizonDays)*24*time.Hour, log)
	}

	// Authentication
	keyring := auth.NewKeyring(cfg.Security.APIKeys.KeyHashes)
	authenticator := auth.NewAuthenticator(keyring, cfg.Security.JWT.Secret)

	// API server (HTTP + WebSocket signaling)
	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		Registry:      registry,
		Conns:         conns,
		Router:        sigRouter,
		Scheduler:     scheduler,
		Journal:       journal,
		Authenticator: authenticator,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: database: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting, closes WebSocket connections)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Reconnection scheduler
	// 5. Database

	log.Info("Farlink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FARLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FARLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// deviceRetentionInterval is how often the registry is swept for
// devices not seen within the retention horizon.
const deviceRetentionInterval = 24 * time.Hour

// runDeviceRetention periodically removes devices unseen for longer than
// the horizon. Runs until the context is cancelled.
func runDeviceRetention(ctx context.Context, registry *device.Registry, horizon time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(deviceRetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := registry.Cleanup(ctx, horizon)
			if err != nil {
				log.Error("device retention sweep failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				log.Info("device retention sweep removed devices",
					"count", len(removed),
					"devices", removed,
				)
			}
		}
	}
}
