package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/smart-finance/internal/api/handlers"
	"github.com/dvloznov/smart-finance/internal/api/middleware"
	"github.com/dvloznov/smart-finance/internal/app"
	"github.com/dvloznov/smart-finance/internal/config"
	"github.com/dvloznov/smart-finance/internal/logger"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file read before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	cfg.LogSummary(log)

	ctx := logger.WithContext(context.Background(), log)

	deps, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close dependencies")
		}
	}()

	// Sync jobs enqueued through the API run in-process.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := deps.Queue.Start(workerCtx, deps.Pipeline.HandleJob); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	router := handlers.Router{
		Transactions: handlers.NewTransactionsHandler(deps.Store, deps.Pipeline, log),
		Sync:         handlers.NewSyncHandler(deps.Pipeline, deps.Queue, log),
		Settings:     handlers.NewSettingsHandler(deps.Settings, log),
		Reports:      handlers.NewReportsHandler(deps.Reports, log),
		Jobs:         handlers.NewJobsHandler(deps.JobStore, log),
	}

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.TelegramAuth(deps.Identity)(router.Mux()),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := deps.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := deps.Queue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
