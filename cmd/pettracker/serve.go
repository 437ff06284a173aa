package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/pettracker-core/internal/api"
	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/auth"
	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/home"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/database"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/logging"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pettracker-core/internal/notify"
	"github.com/nerrad567/pettracker-core/internal/protocol"
	"github.com/nerrad567/pettracker-core/internal/schema"
	"github.com/nerrad567/pettracker-core/internal/service"
	"github.com/nerrad567/pettracker-core/internal/twin"
	_ "github.com/nerrad567/pettracker-core/migrations"
)

// serve runs the core until ctx is cancelled. Returning an error lets main
// handle exit codes consistently.
func serve(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pet tracker core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(configPath, log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Without schemas no entity can be validated.
	schemas, err := schema.NewDefaultRegistry(cfg.Schema.Dir)
	if err != nil {
		return fmt.Errorf("loading schemas: %w", err)
	}
	log.Info("schemas loaded", "types", schemas.Types())

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	store := entity.NewStore(entity.NewSQLiteRepository(db.DB), schemas)
	store.SetLogger(log.Component("entity"))

	twins := twin.NewAggregator(store, service.NewEngine(cfg.Protocol.DefaultRoomName, nil))
	twins.SetLogger(log.Component("twin"))

	// Measurement export (optional)
	var (
		measurements protocol.MeasurementSink
		analytics    home.AnalyticsSink
	)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		measurements, analytics = influxClient, influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))

	trail := audit.NewSQLiteRepository(db.DB)
	hub := api.NewHub(cfg.API.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	handler, err := protocol.NewHandler(protocol.Deps{
		Twins:           twins,
		Store:           store,
		Publisher:       mqttClient,
		Notifier:        newNotifier(cfg.Notifier.Telegram, log.Component("notify")),
		Sink:            measurements,
		Events:          hub,
		Audit:           trail,
		Metrics:         protocol.NewMetrics(registry),
		Logger:          log.Component("protocol"),
		Topics:          mqttClient.Topics(),
		DefaultRoomName: cfg.Protocol.DefaultRoomName,
		DedupWindow:     cfg.DedupWindow(),
	})
	if err != nil {
		return fmt.Errorf("creating protocol handler: %w", err)
	}

	if err := subscribeTelemetry(ctx, mqttClient, handler, byte(cfg.MQTT.QoS)); err != nil {
		return err
	}
	if err := mqttClient.Start(ctx); err != nil {
		return fmt.Errorf("starting MQTT supervisor: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT supervisor started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"reconnect_interval", cfg.ReconnectInterval(),
	)

	manager, err := home.NewManager(home.Deps{
		Store:           store,
		Twins:           twins,
		Settings:        handler,
		Locks:           handler.Locks(),
		Sink:            analytics,
		Logger:          log.Component("home"),
		DefaultRoomName: cfg.Protocol.DefaultRoomName,
	})
	if err != nil {
		return fmt.Errorf("creating home manager: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.Component("api"),
		Homes:    manager,
		Registry: registry,
		Hub:      hub,
		Audit:    trail,
		MQTT:     mqttClient,
		DB:       db.DB,
		Twins:    twins,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API, MQTT, InfluxDB, database.
	return nil
}

// loadConfig reads the configuration file. A missing file at the default
// path falls back to built-in defaults; any other failure is fatal.
func loadConfig(path string, log *logging.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		log.Info("configuration loaded", "path", path)
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		log.Warn("configuration file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

// newNotifier returns the Telegram notifier, or a log-only notifier when
// Telegram is disabled.
func newNotifier(cfg config.TelegramConfig, log *logging.Logger) notify.Notifier {
	tg, err := notify.NewTelegram(cfg)
	if err != nil {
		if !errors.Is(err, notify.ErrDisabled) {
			log.Error("Telegram notifier unavailable, notifications will be logged", "error", err)
		}
		return notify.NewLog(log)
	}
	tg.SetLogger(log)
	log.Info("Telegram notifier enabled")
	return tg
}

// subscribeTelemetry routes both door telemetry streams to the handler.
func subscribeTelemetry(ctx context.Context, client *mqtt.Client, handler *protocol.Handler, qos byte) error {
	topics := client.Topics()
	for _, subtopic := range []string{mqtt.SubtopicPassingBy, mqtt.SubtopicPowerStatus} {
		err := client.Subscribe(topics.Telemetry(subtopic), qos, func(topic string, payload []byte) error {
			return handler.HandleMessage(ctx, topic, payload)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subtopic, err)
		}
	}
	return nil
}

// healthCheck verifies the storage connections. MQTT is left to the
// supervisor, which keeps retrying while the broker is down.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// migrate applies (or with down, rolls back one) migration and prints
// the resulting status to w.
func migrate(ctx context.Context, configPath string, down bool, w io.Writer) error {
	log := logging.Default()
	cfg, err := loadConfig(configPath, log)
	if err != nil {
		return err
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if down {
		err = db.MigrateDown(ctx)
	} else {
		err = db.Migrate(ctx)
	}
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, m := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// issueToken signs a token for subject with the configured secret and
// writes it to w. A zero ttl uses api.auth.token_ttl.
func issueToken(configPath, subject, customer string, ttl time.Duration, w io.Writer) error {
	cfg, err := loadConfig(configPath, logging.Default())
	if err != nil {
		return err
	}
	if cfg.API.Auth.JWTSecret == "" {
		return fmt.Errorf("api.auth.jwt_secret is not set (env PETTRACKER_JWT_SECRET)")
	}
	if ttl <= 0 {
		ttl = cfg.TokenTTL()
	}

	token, err := auth.IssueToken(subject, customer, cfg.API.Auth.JWTSecret, ttl, time.Now())
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	fmt.Fprintln(w, token)
	return nil
}
