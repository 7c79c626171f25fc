// Command server runs the living-map backend: the HTTP API, the fanout
// worker that drains the notification queue, and the maintenance loop.
//
//	@title			Living Map API
//	@version		1.0
//	@description	Prayer sharing over a living map: prayers anchored to places, eternal memorial connections, viewport queries, and proximity notifications.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lucentmaps/livingmap-backend/internal/config"
	httpapi "github.com/lucentmaps/livingmap-backend/internal/http"
	"github.com/lucentmaps/livingmap-backend/internal/observability"
	"github.com/lucentmaps/livingmap-backend/internal/repo"
	"github.com/lucentmaps/livingmap-backend/internal/sysutil"
	"github.com/lucentmaps/livingmap-backend/internal/worker"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting livingmap-backend")

	// Tracing first so everything below is instrumented.
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Storage.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed, continuing without")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	svcs := httpapi.NewServices(db, cfg)

	// HTTP transport.
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svcs, cfg)

	srv := &http.Server{
		Addr:              ":" + strings.TrimPrefix(cfg.Port, ":"),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	// Background loops.
	fw := worker.NewFanoutWorker(svcs.Queue, svcs.Fanout)
	fw.PollInterval = cfg.WorkerPollInterval
	fw.BatchSize = cfg.WorkerBatchSize
	go fw.Run(ctx)

	mnt := &worker.Maintenance{
		Queue:    svcs.Queue,
		Notif:    svcs.Notif,
		Prayer:   svcs.Prayer,
		Interval: cfg.MaintenanceInterval,
	}
	go mnt.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
