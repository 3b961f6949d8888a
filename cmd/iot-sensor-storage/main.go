package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/diwise/iot-sensor-storage/internal/pkg/application/coordinator"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/events"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/ingestion"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/pool"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/queue"
	"github.com/diwise/iot-sensor-storage/internal/pkg/application/retention"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/images"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/localsettings"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/router"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/legacy"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/storage/primary"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/tracing"
	"github.com/rs/zerolog"
)

const serviceName string = "iot-sensor-storage"

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		controlPort:   "8000",
		enableTracing: "false",

		configurationFile: "/opt/diwise/config/config.yaml",
		dataDir:           "/var/lib/diwise/sensors",
		legacyEngine:      "sqlite",
		logLevel:          "info",
		debugMode:         "false",
	}
}

func main() {
	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	serviceVersion := version()
	ctx, logger := logging.NewLogger(ctx, serviceName, serviceVersion, flags[logLevel])
	logger.Info().Msg("starting up ...")

	if flags[enableTracing] == "true" {
		cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
		exitIf(err, logger, "failed to init tracing")
		defer cleanup()
	}

	cfg, err := loadConfiguration(ctx, flags[configurationFile])
	exitIf(err, logger, "could not load configuration")

	a, err := initialize(ctx, flags, cfg)
	exitIf(err, logger, "failed to initialize storage")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = a.run(ctx, net.JoinHostPort(flags[listenAddress], flags[controlPort]))
	exitIf(err, logger, "control server failed")
}

type app struct {
	legacy  storage.Backend
	primary storage.Backend

	coordinator coordinator.StorageCoordinator
	pool        pool.PersistencePool
	queue       queue.QueuedRequestStore
	ingester    *ingestion.Ingester
	retention   *retention.Service

	metrics *metrics.StorageMetrics
	handler http.Handler
}

func initialize(ctx context.Context, flags flagMap, cfg *appConfig) (*app, error) {
	dir := flags[dataDir]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	legacyBackend, err := legacy.New(newLegacyConnector(ctx, flags))
	if err != nil {
		return nil, fmt.Errorf("open legacy storage: %w", err)
	}

	primaryBackend, err := primary.New(ctx, filepath.Join(dir, "primary.duckdb"))
	if err != nil {
		legacyBackend.Close()
		return nil, fmt.Errorf("open primary storage: %w", err)
	}

	a := &app{legacy: legacyBackend, primary: primaryBackend}

	local, err := localsettings.New(filepath.Join(dir, "local.yaml"))
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	imgs, err := images.New(filepath.Join(dir, "images"))
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	publisher, err := events.New(cfg.events())
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	reg := metrics.NewRegistry()
	a.metrics = metrics.NewStorageMetrics(reg)

	a.coordinator = coordinator.New(legacyBackend, primaryBackend, flags[debugMode] == "true")
	a.pool = pool.New(legacyBackend, primaryBackend, local, imgs,
		pool.WithPublisher(publisher),
		pool.WithMetrics(a.metrics),
		pool.WithFanOut(cfg.FanOut),
	)
	a.queue = queue.New(legacyBackend, primaryBackend, a.metrics, cfg.FanOut)
	a.ingester = ingestion.New(a.pool, cfg.Ingestion, a.metrics)
	a.retention = retention.New(a.coordinator, a.pool, cfg.Retention, a.metrics)

	r := router.New(serviceName)
	router.Control(r, a.health, metrics.Handler(reg))
	a.handler = r

	return a, nil
}

func newLegacyConnector(ctx context.Context, flags flagMap) database.ConnectorFunc {
	if flags[legacyEngine] == "postgres" {
		return database.NewPostgreSQLConnector(ctx, database.LoadConfigFromEnv(ctx))
	}
	return database.NewSQLiteConnector(ctx, filepath.Join(flags[dataDir], "legacy.db"))
}

func (a *app) health(ctx context.Context) error {
	_, err := a.coordinator.StoredSensorsCount(ctx)
	return err
}

// run serves the control endpoints and the retention loop until ctx is cancelled.
func (a *app) run(ctx context.Context, addr string) error {
	log := logging.GetLoggerFromContext(ctx)

	if pending, err := a.queue.All(ctx); err == nil {
		a.metrics.QueueDepth(len(pending))
		log.Info().Int("queued", len(pending)).Msg("cloud requests waiting for replay")
	}

	a.retention.Start(ctx)

	server := &http.Server{Addr: addr, Handler: a.handler, ReadHeaderTimeout: 5 * time.Second}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("control server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	server.Shutdown(shutdownCtx)
	a.retention.Stop()
	a.close(shutdownCtx)

	log.Info().Msg("shut down")

	return err
}

// close waits for pending ingestion writes before the engines are closed.
func (a *app) close(ctx context.Context) {
	if a.ingester != nil {
		a.ingester.Stop()
	}

	log := logging.GetLoggerFromContext(ctx)
	for _, b := range []storage.Backend{a.legacy, a.primary} {
		if err := b.Close(); err != nil {
			log.Error().Err(err).Str("backend", b.Kind().String()).Msg("failed to close storage")
		}
	}
}

func loadConfiguration(ctx context.Context, path string) (*appConfig, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log := logging.GetLoggerFromContext(ctx)
		log.Warn().Str("path", path).Msg("no configuration file, using defaults")
		cfg := defaultConfig()
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}

	return parseExternalConfigFile(f)
}

func parseExternalConfig(ctx context.Context, flags flagMap) (context.Context, flagMap) {
	// Allow environment variables to override certain defaults
	envOrDef := func(name string, def string) string {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		return def
	}

	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[controlPort] = envOrDef("CONTROL_PORT", flags[controlPort])
	flags[enableTracing] = envOrDef("ENABLE_TRACING", flags[enableTracing])
	flags[configurationFile] = envOrDef("CONFIG_FILE", flags[configurationFile])
	flags[dataDir] = envOrDef("DATA_DIR", flags[dataDir])
	flags[legacyEngine] = envOrDef("LEGACY_ENGINE", flags[legacyEngine])
	flags[logLevel] = envOrDef("LOG_LEVEL", flags[logLevel])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "storage configuration file", apply(configurationFile))
	flag.Func("data", "directory holding the databases and local state", apply(dataDir))
	flag.Func("legacy", "legacy storage engine, sqlite or postgres", apply(legacyEngine))
	flag.Func("debug", "log invalid queries as errors", apply(debugMode))
	flag.Parse()

	return ctx, flags
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Error().Err(err).Msg(msg)
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}
