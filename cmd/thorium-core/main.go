// Command thorium-core runs the simulator entity store and its broadcast hub
// behind an HTTP and WebSocket server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thorium-sim/thorium-core/internal/config"
	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/handlers"
	"github.com/thorium-sim/thorium-core/internal/hub"
	"github.com/thorium-sim/thorium-core/internal/influx"
	"github.com/thorium-sim/thorium-core/internal/journal"
	"github.com/thorium-sim/thorium-core/internal/logging"
	"github.com/thorium-sim/thorium-core/internal/monitor"
	"github.com/thorium-sim/thorium-core/internal/server"
	"github.com/thorium-sim/thorium-core/internal/store"
)

// set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "thorium-core"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	envErr := godotenv.Load()
	cfgErr := config.Load(*configDir)

	sessionStart := time.Now()
	logCfg := config.GetLoggingConfig()
	logManager, zl, err := setupLogging(logCfg, sessionStart)
	if err != nil {
		return err
	}
	defer logManager.Close()

	logger := logManager.Logger()
	slog.SetDefault(logger)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("Failed to load .env file", "error", envErr)
	}
	if cfgErr != nil {
		logger.Warn("Using default configuration", "error", cfgErr)
	}
	logger.Info("Starting", "app", appName, "version", Version, "buildDate", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := store.New()

	hubOpts := []hub.Option{
		hub.WithLogger(logger.With("component", "hub")),
		hub.WithBufferSize(config.GetHubConfig().BufferSize),
	}
	if rc := config.GetRedisConfig(); rc.Enabled {
		client, err := hub.NewRedisClient(ctx, hub.RedisConfig{
			URL:      rc.URL,
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
		})
		if err != nil {
			logger.Error("Redis mirror disabled", "error", err)
		} else {
			hubOpts = append(hubOpts, hub.WithSink(hub.NewRedisSink(client, rc.Prefix, logger.With("component", "redis"))))
			logger.Info("Mirroring snapshots to Redis", "prefix", rc.Prefix)
		}
	}
	h := hub.New(s, hubOpts...)
	defer h.Close()

	d, err := dispatcher.New(
		logging.NewDispatcherLogger(zl.With().Str("component", "dispatcher").Logger()),
		h,
	)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	handlers.NewService(s, logger.With("component", "handlers")).RegisterHandlers(d)
	logger.Info("Commands registered", "count", d.Commands())

	eg, ctx := errgroup.WithContext(ctx)

	deps := server.Dependencies{Dispatcher: d, Hub: h, Logger: logger}
	var jrnl *journal.Journal

	if jc := config.GetJournalConfig(); jc.Enabled {
		jlog := zl.With().Str("component", "journal").Logger()
		db, err := journal.Open(jc, jlog)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		j, err := journal.New(db, journal.Options{
			BatchSize:     jc.BatchSize,
			FlushInterval: jc.FlushInterval,
			QueueLimit:    jc.QueueLimit,
		}, jlog)
		if err != nil {
			return err
		}
		d.Observe(j)
		deps.Journal = j
		jrnl = j
		eg.Go(func() error { return j.Run(ctx) })
	}

	if ic := config.GetInfluxConfig(); ic.Enabled {
		m, err := influx.Connect(ctx, ic, zl.With().Str("component", "influx").Logger())
		if err != nil {
			logger.Error("InfluxDB metrics disabled", "error", err)
		} else {
			d.Observe(m)
			defer m.Close()
		}
	}

	monDeps := monitor.Dependencies{
		Store:      s,
		Hub:        h,
		Logger:     logger.With("component", "monitor"),
		StatusFile: config.GetMonitorConfig().StatusFile,
	}
	if jrnl != nil {
		monDeps.Journal = jrnl
	}
	mon := monitor.NewService(monDeps)
	deps.Monitor = mon
	if interval := config.GetMonitorConfig().Interval; interval > 0 {
		mon.Start(interval)
		defer mon.Stop()
	}

	srv := server.New(config.GetServerConfig(), deps)
	eg.Go(func() error { return srv.ListenAndServe(ctx) })

	err = eg.Wait()
	logger.Info("Shutting down")
	return err
}

// setupLogging builds the slog manager and the zerolog logger used by the
// journal, influx and dispatcher. Both write to the session log file when a
// log directory is configured.
func setupLogging(cfg config.LoggingConfig, start time.Time) (*logging.SlogManager, zerolog.Logger, error) {
	var file io.WriteCloser
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, zerolog.Logger{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = logging.NewFileWriter(logging.LogFilePath(cfg.Dir, appName, start))
	}

	var extra []slog.Handler
	if cfg.GraylogEnabled {
		gh, err := logging.NewGELFHandler(cfg.GraylogAddress, appName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			extra = append(extra, gh)
		}
	}

	manager := logging.NewSlogManager()
	var zw io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if file != nil {
		manager.Setup(file, cfg.Level, extra...)
		zw = zerolog.MultiLevelWriter(zw, file)
	} else {
		manager.Setup(nil, cfg.Level, extra...)
	}

	return manager, logging.NewZerolog(zw, cfg.Level), nil
}
