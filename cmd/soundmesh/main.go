// SoundMesh Core - Multiroom Speaker Coordinator
//
// This is the main entry point for the SoundMesh Core application.
// SoundMesh coordinates a fleet of network speakers on the local
// network: it tracks group topology, adapts polling to playback
// activity, fans volume and mute changes out across groups, and
// recovers speakers that move to a new address.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/soundmesh-core/migrations"

	"github.com/nerrad567/soundmesh-core/internal/api"
	"github.com/nerrad567/soundmesh-core/internal/control"
	"github.com/nerrad567/soundmesh-core/internal/group"
	"github.com/nerrad567/soundmesh-core/internal/history"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/config"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/database"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/logging"
	"github.com/nerrad567/soundmesh-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/soundmesh-core/internal/polling"
	"github.com/nerrad567/soundmesh-core/internal/recovery"
	"github.com/nerrad567/soundmesh-core/internal/speaker"
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
	log.Info("starting SoundMesh Core",
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

	// Seed the registry from stored speaker configuration
	store := speaker.NewSQLiteStore(db.DB)
	registry := speaker.NewRegistry()
	registry.SetLogger(log)
	if seedErr := speaker.SeedRegistry(ctx, store, registry); seedErr != nil {
		return fmt.Errorf("seeding speaker registry: %w", seedErr)
	}
	log.Info("speaker registry seeded", "speakers", registry.Count())

	groups := speaker.NewGroups(registry)

	// Connect to MQTT broker (optional; provisioning boundary)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, provisioning boundary inactive")
	}

	// Connect to InfluxDB (optional; state history)
	var influxClient *influxdb.Client
	recorder := history.NewRecorder(nil)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = history.NewRecorder(influxClient)
	} else {
		log.Info("InfluxDB disabled, state history inactive")
	}

	// Device control client, shared by polling and group fan-out
	controller := control.NewHTTPClient()

	// Missing-device resolver on the provisioning boundary
	var publisher recovery.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	} else {
		publisher = droppedPublisher{log: log}
	}
	resolver := recovery.NewResolver(groups, registry, publisher)
	resolver.SetLogger(log)
	resolver.SetStore(store)

	if mqttClient != nil {
		if subErr := mqttClient.Subscribe(recovery.TopicAddress, 1, resolver.HandleAddressUpdate); subErr != nil {
			return fmt.Errorf("subscribing to address updates: %w", subErr)
		}
		log.Info("subscribed to provisioning address updates", "topic", recovery.TopicAddress)
	}

	// Adaptive polling, one loop per speaker
	poller := polling.NewManager(polling.Config{
		BaseInterval:       cfg.GetBaseInterval(),
		IdleMultiplier:     cfg.Polling.IdleMultiplier,
		TopologyMultiplier: cfg.Polling.TopologyMultiplier,
		HealthMultiplier:   cfg.Polling.HealthMultiplier,
		IdleTimeout:        cfg.GetPollIdleTimeout(),
		MaxFailures:        cfg.Polling.MaxFailures,
		MaxBackoff:         cfg.GetMaxBackoff(),
		PollTimeout:        cfg.GetPollTimeout(),
	}, controller, registry, &reachabilityNotifier{resolver: resolver, recorder: recorder})
	poller.SetLogger(log)
	poller.SetStore(store)
	defer func() {
		log.Info("stopping polling")
		poller.Close()
	}()

	// Group fan-out coordinator
	coordinator := group.NewCoordinator(groups, registry, controller, controller, cfg.GetCommandTimeout())
	coordinator.SetLogger(log)

	// API server with an externally wired WebSocket hub so snapshot
	// events can be broadcast from the registry hook below
	hub := api.NewHub(cfg.API.WebSocket, log)
	go hub.Run(ctx)

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Registry:    registry,
		Groups:      groups,
		Coordinator: coordinator,
		Commander:   controller,
		Store:       store,
		Poller:      poller,
		Resolver:    resolver,
		Recorder:    recorder,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Every accepted snapshot flows to history, the WebSocket event
	// stream, and (when enabled) the per-speaker MQTT state topic
	topics := mqtt.Topics{}
	registry.OnSnapshot(func(sp speaker.Speaker) {
		recorder.RecordSnapshot(sp)
		hub.Broadcast("speaker.state_changed", sp)

		if mqttClient != nil {
			payload, marshalErr := json.Marshal(sp)
			if marshalErr != nil {
				log.Error("encoding speaker state", "speaker_id", sp.ID, "error", marshalErr)
				return
			}
			if pubErr := mqttClient.PublishRetained(topics.SpeakerState(sp.ID), payload); pubErr != nil {
				log.Warn("publishing speaker state", "speaker_id", sp.ID, "error", pubErr)
			}
		}
	})

	// Start polling loops for the seeded speakers, then the API
	poller.Start(ctx)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests)
	// 2. Polling loops
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("SoundMesh Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SOUNDMESH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SOUNDMESH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// reachabilityNotifier fans the poller's unreachability events out to
// the missing-device resolver and the history recorder.
type reachabilityNotifier struct {
	resolver *recovery.Resolver
	recorder *history.Recorder
}

func (n *reachabilityNotifier) SpeakerUnreachable(id string) {
	n.recorder.RecordReachability(id, false)
	n.resolver.SpeakerUnreachable(id)
}

// droppedPublisher stands in for MQTT when the broker is disabled.
// Missing-device notices are logged instead of published so an operator
// reading the logs still sees them.
type droppedPublisher struct {
	log *logging.Logger
}

func (p droppedPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	p.log.Warn("MQTT disabled, dropping provisioning message", "topic", topic, "payload", string(payload))
	return nil
}
