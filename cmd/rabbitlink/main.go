// rabbitlink keeps a resilient connection to an AMQP broker.
//
// It dials the broker with exponential backoff, opens a channel, watches the
// connection and reconnects after abnormal closes. Every lifecycle event is
// logged and, when configured, journalled to SQLite, mirrored to MQTT,
// recorded in InfluxDB and streamed over the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/rabbitlink/internal/api"
	"github.com/nerrad567/rabbitlink/internal/connmgr"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/config"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/database"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/logging"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/rabbitmq"
	"github.com/nerrad567/rabbitlink/internal/journal"
	"github.com/nerrad567/rabbitlink/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// statsInterval is how often manager stats are written to InfluxDB.
const statsInterval = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting rabbitlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	broker := rabbitmq.RedactURL(cfg.Broker.URL)
	manager := connmgr.New(
		cfg.Broker.URL,
		managerOptions(cfg),
		rabbitmq.NewDialer(log.Component("dialer")),
		log.Component("connmgr"),
	)
	manager.OnEvent(logEvent(log, broker))

	// Journal (optional)
	var (
		db          *database.DB
		journalRepo journal.Repository
	)
	if cfg.Journal.Enabled {
		db, err = openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		repo := journal.NewSQLiteRepository(db.DB)
		journalRepo = repo
		rec := journal.NewRecorder(repo, broker, manager.State, log)
		manager.OnEvent(rec.HandleEvent)
	} else {
		log.Info("journal disabled")
	}

	// MQTT status mirror (optional)
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

		mqttLog := log.Component("mqtt")
		mqttClient.SetLogger(mqttLog)
		mqttClient.SetOnConnect(func() {
			mqttLog.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			mqttLog.Warn("MQTT disconnected", "error", err)
		})

		status := mqtt.NewStatusPublisher(mqttClient, mqttClient.Topics(), mqttClient.ClientID(), byte(cfg.MQTT.QoS), mqttLog)
		manager.OnEvent(status.HandleEvent)

		ctl := mqtt.NewController(ctx, manager, status, mqttLog)
		if listenErr := ctl.Listen(mqttClient); listenErr != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", listenErr)
		}
		defer ctl.Wait()
	} else {
		log.Info("MQTT mirror disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, broker)
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
		manager.OnEvent(influxClient.HandleEvent)
		go reportStats(ctx, manager, influxClient, statsInterval)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Status and control API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Manager: manager,
			Journal: journalRepo,
			Broker:  broker,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		manager.OnEvent(apiServer.HandleEvent)
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Broker
	if err := manager.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown requested while connecting")
			return nil
		}
		return fmt.Errorf("connecting to broker: %w", err)
	}
	if lastErr := manager.LastError(); !manager.IsConnected() && lastErr != nil {
		return fmt.Errorf("connecting to broker: %w", lastErr)
	}

	if err := healthCheck(ctx, manager, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := manager.Disconnect(shutdownCtx); err != nil {
		log.Error("error disconnecting from broker", "error", err)
	}

	// Deferred calls run in reverse order: API, InfluxDB, MQTT, database.
	log.Info("rabbitlink stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RABBITLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RABBITLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// managerOptions maps the broker section of the configuration onto
// connection manager options. An unset randomization factor is drawn once
// at startup.
func managerOptions(cfg *config.Config) connmgr.Options {
	r := cfg.Broker.Reconnect

	factor := rand.Float64()
	if r.RandomizationFactor != nil {
		factor = *r.RandomizationFactor
	}

	return connmgr.Options{
		Connection:        cfg.Broker.Connection,
		UseConfirmChannel: connmgr.Bool(cfg.Broker.UseConfirmChannel),
		Reconnect: &connmgr.ReconnectOptions{
			FailAfter:       connmgr.Int(r.FailAfter),
			BackoffStrategy: connmgr.NewExponentialStrategy(cfg.GetInitialDelay(), cfg.GetMaxDelay(), factor),
		},
	}
}

// openJournal opens and migrates the database, then prunes expired entries.
func openJournal(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	applied, err := db.Migrator(migrations.FS()).Up(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	if retention := cfg.GetRetention(); retention > 0 {
		repo := journal.NewSQLiteRepository(db.DB)
		pruned, pruneErr := repo.Prune(ctx, time.Now().Add(-retention))
		if pruneErr != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("pruning journal: %w", pruneErr)
		}
		log.Info("journal pruned", "removed", pruned, "retention_days", cfg.Journal.RetentionDays)
	}

	return db, nil
}

// logEvent returns a handler that logs lifecycle events at operator level.
// The manager's own logger covers attempt-level detail at debug.
func logEvent(log *logging.Logger, broker string) connmgr.Handler {
	return func(ev connmgr.Event) {
		switch ev.Kind {
		case connmgr.EventRetry:
			if ev.Attempt > 0 {
				log.Info("retrying broker connection", "broker", broker, "attempt", ev.Attempt)
			}
		case connmgr.EventChannel:
			log.Info("broker connection ready", "broker", broker)
		case connmgr.EventConnectionError:
			log.Warn("broker connection error", "broker", broker, "error", ev.Err)
		case connmgr.EventDisconnected:
			log.Info("broker disconnected", "broker", broker)
		case connmgr.EventError:
			log.Error("giving up on broker connection", "broker", broker, "error", ev.Err)
		}
	}
}

// reportStats writes manager stats to InfluxDB until ctx is cancelled.
func reportStats(ctx context.Context, manager *connmgr.Manager, client *influxdb.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.WriteStats(manager.Stats())
		}
	}
}

// healthCheck verifies the broker and every enabled sink.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - manager: Connection manager to check
//   - db: Database (nil if the journal is disabled)
//   - mqttClient: MQTT client (nil if the mirror is disabled)
//   - influxClient: InfluxDB client (nil if disabled)
//   - apiServer: API server (nil if disabled)
//
// Returns:
//   - error: All failures joined, or nil if healthy
func healthCheck(ctx context.Context, manager *connmgr.Manager, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	var errs []error

	if err := manager.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("broker: %w", err))
	}
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api: %w", err))
		}
	}

	return errors.Join(errs...)
}
