package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/smart-finance/internal/app"
	"github.com/dvloznov/smart-finance/internal/config"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/internal/pipeline"
	"github.com/dvloznov/smart-finance/internal/scheduler"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file read before the environment")
	once := flag.Bool("once", false, "Run one sync round and one report round, then exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	cfg.LogSummary(log)

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	deps, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close dependencies")
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid time zone")
	}

	sched, err := scheduler.New(scheduler.Config{
		SyncSchedule:   cfg.Sync.Schedule,
		ReportSchedule: cfg.Report.Schedule,
		SyncDays:       cfg.Sync.Days,
		Location:       loc,
	}, deps.Settings, deps.Queue, deps.Reports, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	log.Info().Msg("Starting worker service")

	if err := deps.Queue.Start(ctx, deps.Pipeline.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	if *once {
		syncAll(ctx, deps, cfg.Sync.Days)
		if _, err := sched.RunReports(ctx); err != nil {
			log.Error().Err(err).Msg("Report round failed")
		}
	} else {
		sched.Start()
		log.Info().Msg("Worker service started, waiting for jobs...")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if !*once {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Scheduler did not stop in time")
		}
	}

	if err := deps.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	if err := deps.Queue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

// syncAll runs the sync pipeline inline for every auto-sync user. A failed
// user is logged and skipped.
func syncAll(ctx context.Context, deps *app.Deps, days int) {
	log := logger.FromContext(ctx)

	users, err := deps.Settings.AutoSyncUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list auto-sync users")
		return
	}

	for _, user := range users {
		userLog := logger.WithUser(log, user)
		res, err := deps.Pipeline.Sync(logger.WithContext(ctx, userLog), user, pipeline.SyncRequest{Days: days})
		if err != nil {
			userLog.Error().Err(err).Msg("Sync failed")
			continue
		}
		userLog.Info().
			Int("added", len(res.Added)).
			Int("count", res.Count).
			Bool("local_only", res.Persistence.LocalOnly).
			Msg("Sync completed")
	}
}
