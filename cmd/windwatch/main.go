package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/windwatch/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/windwatch/internal/adapter/kafka"
	"github.com/couchcryptid/windwatch/internal/config"
	"github.com/couchcryptid/windwatch/internal/forecast"
	"github.com/couchcryptid/windwatch/internal/observability"
	"github.com/couchcryptid/windwatch/internal/pipeline"
)

// lockCheckInterval is how often the lock schedule is advanced when no
// prediction requests arrive.
const lockCheckInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store forecast.StateStore = &forecast.MemoryStore{}
	if cfg.LockStatePath != "" {
		store = forecast.NewFileStore(cfg.LockStatePath)
		logger.Info("lock state persisted", "path", cfg.LockStatePath)
	} else {
		logger.Info("lock state kept in memory")
	}

	clock := clockwork.NewRealClock()
	svc, err := forecast.NewService(ctx, cfg.Criteria.Katabatic, cfg.Criteria.Lock, store, clock, metrics, logger)
	if err != nil {
		logger.Error("failed to create forecast service", "error", err)
		os.Exit(1)
	}

	history := pipeline.NewStationHistory(cfg.HistoryMaxStations, cfg.HistoryRetention)
	alarms := pipeline.NewAlarmTracker(pipeline.LogAlarms(logger), pipeline.CountAlarms(metrics))

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(cfg.Criteria.Alarm, cfg.Criteria.Transmission, history, alarms, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, svc, history, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start station pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	go advanceLock(ctx, svc, clock)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// advanceLock moves the lock schedule forward so the morning snapshot is
// frozen at the lock time even if nobody asks for a prediction then.
func advanceLock(ctx context.Context, svc *forecast.Service, clock clockwork.Clock) {
	ticker := clock.NewTicker(lockCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			svc.Lock(ctx)
		}
	}
}
