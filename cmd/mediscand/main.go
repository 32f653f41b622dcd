package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/export"
	"github.com/mediscan/mediscan/internal/extract"
	"github.com/mediscan/mediscan/internal/pipeline"
	"github.com/mediscan/mediscan/internal/pipeline/async"
	"github.com/mediscan/mediscan/internal/reference"
	"github.com/mediscan/mediscan/internal/reminder"
	"github.com/mediscan/mediscan/internal/repository"
	"github.com/mediscan/mediscan/internal/server"
)

func main() {
	var (
		httpAddr = flag.String("http", "", "listen address (overrides HTTP_ADDR)")
		dbPath   = flag.String("db", "", "sqlite database path (overrides DB_DRIVER/DB_PATH)")
		refPath  = flag.String("reference", "", "reference set JSON path (overrides MEDISCAN_REFERENCE_PATH)")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.Database.Driver = repository.DriverSQLite
		cfg.Database.Path = *dbPath
	}
	if *refPath != "" {
		cfg.Extract.ReferencePath = *refPath
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var refSet *reference.Set
	if cfg.Extract.ReferencePath != "" {
		refSet, err = reference.Load(cfg.Extract.ReferencePath)
		if err != nil {
			logger.Error("loading reference set", "path", cfg.Extract.ReferencePath, "error", err)
			os.Exit(1)
		}
		logger.Info("reference set loaded", "path", cfg.Extract.ReferencePath, "entries", refSet.Len())
	}
	extractor := extract.New(extract.FromAppConfig(cfg.Extract), refSet)

	scans := repository.NewScanRepository(db, logger)
	medicines := repository.NewMedicineRepository(db, logger)
	reminders := repository.NewReminderRepository(db, logger)

	svc := pipeline.NewService(extractor, scans, medicines, logger)
	queue := async.NewQueue(svc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	sched := reminder.NewScheduler(medicines, reminders, reminder.Config{
		DefaultTime:    cfg.Reminder.DefaultTime,
		ExpirySoonDays: cfg.Extract.ExpirySoonDays,
	}, logger)
	exporter := export.NewService(medicines, cfg.Extract.ExpirySoonDays, logger)

	srv := server.New(cfg.Server, server.Deps{
		DB:        db,
		Pipeline:  svc,
		Queue:     queue,
		Scans:     scans,
		Medicines: medicines,
		Scheduler: sched,
		Exporter:  exporter,
		SoonDays:  cfg.Extract.ExpirySoonDays,
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stop intake first, then the listener, then the store.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
