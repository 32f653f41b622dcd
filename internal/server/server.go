// Package server exposes the scan pipeline, record store, reminders,
// and export over an HTTP API under /api/v1.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/export"
	"github.com/mediscan/mediscan/internal/pipeline"
	"github.com/mediscan/mediscan/internal/pipeline/async"
	"github.com/mediscan/mediscan/internal/reminder"
	"github.com/mediscan/mediscan/internal/repository"
)

// Deps bundles the services the HTTP layer fronts. SoonDays is the
// default window for the expiring-records endpoints.
type Deps struct {
	DB        *repository.DB
	Pipeline  *pipeline.Service
	Queue     *async.Queue
	Scans     repository.ScanRepository
	Medicines repository.MedicineRepository
	Scheduler *reminder.Scheduler
	Exporter  *export.Service
	SoonDays  int
}

type Server struct {
	cfg    common.ServerConfig
	deps   Deps
	logger *slog.Logger
	router *gin.Engine
	http   *http.Server
}

// New builds the router and the http.Server. The returned server does
// not listen until Start is called.
func New(cfg common.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.SoonDays <= 0 {
		deps.SoonDays = 7
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(requestLogger(logger))
	router.Use(recoveryMiddleware(logger))
	router.Use(gzip.Gzip(gzip.BestSpeed))
	s.registerRoutes(router)
	s.router = router

	s.http = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealthz)

	api := router.Group("/api/v1")

	scanLimit := scanRateLimiter(s.cfg.ScanRateLimit, s.cfg.ScanRateBurst)
	scans := api.Group("/scans")
	{
		scans.POST("", scanLimit, s.handleSubmitScan)
		scans.GET("", s.handleScanHistory)
		scans.GET("/:id", s.handleGetScan)
	}

	records := api.Group("/records")
	{
		records.GET("", s.handleListRecords)
		records.GET("/expiring", s.handleExpiring)
		records.GET("/expired", s.handleExpired)
		records.GET("/:id", s.handleGetRecord)
		records.DELETE("/:id", s.handleDeleteRecord)
		records.POST("/:id/reminders", s.handleCreateReminder)
		records.GET("/:id/compliance", s.handleCompliance)
	}

	reminders := api.Group("/reminders")
	{
		reminders.GET("/due", s.handleDueReminders)
		reminders.POST("/:id/events", s.handleDoseEvent)
	}

	api.GET("/alerts/expiry", s.handleExpiryAlerts)
	api.GET("/stats", s.handleStats)
	api.GET("/export/xlsx", s.handleExportXLSX)
}

// Handler returns the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http.listen", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http.shutdown")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(c *gin.Context) {
	if err := s.deps.DB.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
		s.logger.Warn("http.healthz.failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "driver": s.deps.DB.Driver()})
}
