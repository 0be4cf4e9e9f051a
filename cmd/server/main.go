package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/socassist/risk-engine/internal/admin"
	"github.com/socassist/risk-engine/internal/calibration"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/eval"
	"github.com/socassist/risk-engine/internal/events"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/observability"
	"github.com/socassist/risk-engine/internal/scheduler"
	"github.com/socassist/risk-engine/internal/scoring"
	"github.com/socassist/risk-engine/internal/settings"
	"github.com/socassist/risk-engine/internal/store"
	"github.com/socassist/risk-engine/internal/transport/grpcapi"
	"github.com/socassist/risk-engine/internal/transport/httpapi"
)

const calibrationTimeout = 5 * time.Minute

type publisher interface {
	calibration.Publisher
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "risk-engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := settings.FromEnv()
	if err != nil {
		return err
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	logger.Info("starting risk engine",
		"db", cfg.DBPath,
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
	)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	current, err := activeOrBootstrap(ctx, st, cfg, logger)
	if err != nil {
		return err
	}

	led, err := ledger.NewStore(st.DB())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	engine := scoring.NewEngine(current, logger, metrics)

	var pub publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		logger.Info("kafka publisher created", "topic", cfg.KafkaTopic)
	}
	defer pub.Close()

	runner := calibration.NewRunner(led, st, engine,
		calibration.WithConfig(cfg.Calibration),
		calibration.WithLogger(logger),
		calibration.WithPublisher(pub),
		calibration.WithRecorder(metrics),
	)
	editor := admin.NewService(st, engine, eval.NewEvalHarness(eval.DefaultEvalConfig()), logger)

	grpcServer := grpcapi.NewServer(grpcapi.NewHandler(engine, led, runner, logger), cfg.GRPCAddr, logger)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Engine:     engine,
			Incidents:  led,
			Calibrator: runner,
			Editor:     editor,
			Versions:   st,
			Audit:      st.DB(),
			Metrics:    metrics.Handler(),
			Logger:     logger,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var sched *scheduler.Scheduler
	if cfg.CalibrationCron != "" {
		sched, err = scheduler.New(cfg.CalibrationCron, runner, calibrationTimeout, logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Start()
	}()
	go func() {
		logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("scheduler shutdown error", "error", err)
		}
	}
	grpcServer.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("risk engine stopped")
	return nil
}

// activeOrBootstrap returns the active configuration, importing the JSONC
// documents as the first version on an empty database.
func activeOrBootstrap(ctx context.Context, st *store.Store, cfg settings.Settings, logger *slog.Logger) (*config.Snapshot, error) {
	cur, err := st.Current(ctx)
	if err == nil {
		logger.Info("active configuration loaded", "version", cur.ID)
		return cur.Snapshot, nil
	}
	if !errors.Is(err, store.ErrNoActiveVersion) {
		return nil, fmt.Errorf("load active configuration: %w", err)
	}

	logger.Info("no active configuration, importing files",
		"engine", cfg.EngineConfig,
		"questions", cfg.QuestionsConfig,
	)
	snap, err := config.LoadFiles(cfg.EngineConfig, cfg.QuestionsConfig)
	if err != nil {
		return nil, fmt.Errorf("load configuration files: %w", err)
	}
	if res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(snap); !res.Passed {
		return nil, fmt.Errorf("initial configuration rejected: %s", res.Reason)
	}
	id, err := st.CreateInitial(ctx, snap, "imported from "+cfg.EngineConfig)
	if err != nil {
		return nil, fmt.Errorf("store initial configuration: %w", err)
	}
	logger.Info("initial configuration stored", "version", id)
	return snap.WithVersion(id), nil
}
