// AirCore - Air Purifier Fleet Backend
//
// This is the main entry point for the AirCore service. AirCore receives
// periodic status readings from networked air purifiers, tracks per-device
// online/offline state, and maintains a durable command queue that devices
// drain when they report in. A JWT-secured HTTP API serves dashboards.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/electronicsideas/aircore/migrations"

	"github.com/electronicsideas/aircore/internal/api"
	"github.com/electronicsideas/aircore/internal/auth"
	"github.com/electronicsideas/aircore/internal/command"
	"github.com/electronicsideas/aircore/internal/device"
	"github.com/electronicsideas/aircore/internal/infrastructure/config"
	"github.com/electronicsideas/aircore/internal/infrastructure/database"
	"github.com/electronicsideas/aircore/internal/infrastructure/influxdb"
	"github.com/electronicsideas/aircore/internal/infrastructure/logging"
	"github.com/electronicsideas/aircore/internal/infrastructure/mqtt"
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
	log.Info("starting AirCore",
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

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	statusRepo := device.NewSQLiteStatusRepository(db.DB)
	readingRepo := device.NewSQLiteReadingRepository(db.DB)
	settingsRepo := device.NewSQLiteSettingsRepository(db.DB)
	queue := command.NewSQLiteQueue(db.DB)
	userRepo := auth.NewUserRepository(db.DB)

	// Seed admin account on first boot
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Ingest pipeline
	ingestor := device.NewIngestor(deviceRepo, readingRepo, statusRepo)
	ingestor.SetLogger(log)

	// Liveness monitor: 2-minute online window, 5-minute sweep cutoff
	monitor := device.NewMonitor(statusRepo,
		cfg.Monitor.OnlineWindow(),
		cfg.Monitor.StaleAfter(),
		cfg.Monitor.SweepInterval(),
	)
	monitor.SetLogger(log)
	go monitor.Run(ctx)
	log.Info("liveness monitor started",
		"online_window", cfg.Monitor.OnlineWindow(),
		"stale_after", cfg.Monitor.StaleAfter(),
	)

	checks := map[string]api.HealthChecker{
		"database": db,
	}

	// Connect to MQTT broker (optional ingest path)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if subErr := subscribeReadings(ctx, mqttClient, ingestor, log); subErr != nil {
			return fmt.Errorf("subscribing to readings: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional telemetry mirror)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		ingestor.SetTelemetry(influxClient)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub: created here so the ingest pipeline can broadcast
	// status updates before the API server starts.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	ingestor.SetOnStatus(func(st device.CurrentStatus) {
		hub.Broadcast(api.ChannelDeviceStatus, st)
	})

	// Start API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Devices:     deviceRepo,
		Status:      statusRepo,
		Readings:    readingRepo,
		Settings:    settingsRepo,
		Ingestor:    ingestor,
		Monitor:     monitor,
		Queue:       queue,
		Users:       userRepo,
		Checks:      checks,
		ExternalHub: hub,
		Version:     version,
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
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("AirCore stopped")
	return nil
}

// subscribeReadings wires the MQTT ingest path: every payload published to
// aircore/readings/{device_id} goes through the same pipeline as HTTP posts.
func subscribeReadings(ctx context.Context, client *mqtt.Client, ingestor *device.Ingestor, log *logging.Logger) error {
	topics := mqtt.Topics{}
	return client.Subscribe(topics.AllDeviceReadings(), 1, func(topic string, payload []byte) error {
		deviceID := mqtt.ReadingsDeviceID(topic)
		if deviceID == "" {
			return fmt.Errorf("unexpected readings topic %q", topic)
		}

		var in device.ReadingInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return fmt.Errorf("decoding reading from %q: %w", topic, err)
		}

		if _, err := ingestor.Ingest(ctx, deviceID, in, ""); err != nil {
			return fmt.Errorf("ingesting reading for %s: %w", deviceID, err)
		}

		log.Debug("reading ingested via mqtt", "device_id", deviceID)
		return nil
	})
}

// getConfigPath returns the configuration file path.
// Uses AIRCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AIRCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
