// Guessfleet coordinator.
//
// Runs the MQTT guessing game for a fleet of ESP32 devices: it issues
// challenges, scores guesses, records finished games, and serves a
// scoreboard API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/guessfleet/internal/api"
	"github.com/nerrad567/guessfleet/internal/coordinator"
	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/history"
	"github.com/nerrad567/guessfleet/internal/infrastructure/config"
	"github.com/nerrad567/guessfleet/internal/infrastructure/database"
	"github.com/nerrad567/guessfleet/internal/infrastructure/influxdb"
	"github.com/nerrad567/guessfleet/internal/infrastructure/logging"
	"github.com/nerrad567/guessfleet/internal/infrastructure/mqtt"
	"github.com/nerrad567/guessfleet/internal/telemetry"
	"github.com/nerrad567/guessfleet/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
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

// run wires every component, blocks until ctx is cancelled, then tears
// down in reverse order.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting guessfleet coordinator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, cfg.Database)
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

	applied, migrateErr := db.Migrate(ctx, migrations.FS)
	if migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, migrateErr := db.SchemaVersion(ctx)
	if migrateErr != nil {
		return fmt.Errorf("reading schema version: %w", migrateErr)
	}
	log.Info("database migrations complete", "applied", applied, "schema_version", schema)

	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo, 0, log.With("component", "history"))
	defer func() {
		log.Info("flushing game history")
		recorder.Close()
	}()

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
	publisher := mqtt.NewAsyncPublisher(mqttClient, qos, cfg.MQTT.PublishQueue, log.With("component", "publisher"))
	defer func() {
		publisher.Close()
		log.Info("outbound queue drained",
			"dropped", publisher.Dropped(),
			"failed", publisher.Failed(),
		)
	}()

	engineOpts := []game.Option{game.WithObserver(recorder)}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
		engineOpts = append(engineOpts, game.WithObserver(telemetry.NewObserver(influxClient, cfg.Coordinator.ID)))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	coord, err := coordinator.New(coordinator.Options{
		MQTT:          mqttClient,
		Publisher:     publisher,
		Rules:         game.RulesFromConfig(cfg.Game),
		Topics:        mqtt.NewTopics(cfg.Game.TopicRoot),
		QoS:           qos,
		Logger:        log.With("component", "coordinator"),
		EngineOptions: engineOpts,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	checks := healthChecks(db, mqttClient, influxClient)

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			Engine:   coord.Engine(),
			History:  historyRepo,
			Stats:    coord,
			Checks:   checks,
			Queues: map[string]api.DropCounter{
				"publisher": publisher,
				"history":   recorder,
			},
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if startErr := coord.Start(ctx); startErr != nil {
		return fmt.Errorf("starting coordinator: %w", startErr)
	}
	defer func() {
		log.Info("stopping coordinator")
		coord.Stop()
	}()

	for name, check := range checks {
		if checkErr := check(ctx); checkErr != nil {
			return fmt.Errorf("health check failed: %s: %w", name, checkErr)
		}
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"topic_root", cfg.Game.TopicRoot,
		"starting_hp", cfg.Game.StartingHP,
		"max_rounds", cfg.Game.MaxRounds,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up", "sessions", coord.Engine().Registry().Len())
	return nil
}

// getConfigPath returns GUESSFLEET_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("GUESSFLEET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthChecks collects the checks served by /health and run at startup.
func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"database": db.HealthCheck,
		"mqtt":     mqttClient.HealthCheck,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient.HealthCheck
	}
	return checks
}
