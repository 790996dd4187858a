// Package scheduler runs periodic bank syncs and monthly report delivery.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-finance/internal/jobs"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/internal/report"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultSyncSchedule   = "@every 6h"
	DefaultReportSchedule = "0 9 1 * *"
)

// UserLister returns the users that opted into scheduled work.
type UserLister interface {
	AutoSyncUsers(ctx context.Context) ([]string, error)
}

// Reporter delivers the report of one month.
type Reporter interface {
	SendMonthly(ctx context.Context, user, month string) error
}

// Config holds the cron expressions. An empty expression disables the job.
type Config struct {
	SyncSchedule   string
	ReportSchedule string
	SyncDays       int
	Location       *time.Location
}

// Scheduler owns a cron runner.
type Scheduler struct {
	cron      *cron.Cron
	users     UserLister
	publisher jobs.Publisher
	reporter  Reporter
	syncDays  int
	log       zerolog.Logger
	now       func() time.Time
}

// New registers the configured jobs. reporter may be nil to disable reports.
func New(cfg Config, users UserLister, publisher jobs.Publisher, reporter Reporter, log zerolog.Logger) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		users:     users,
		publisher: publisher,
		reporter:  reporter,
		syncDays:  cfg.SyncDays,
		log:       log,
		now:       func() time.Time { return time.Now().In(loc) },
	}

	if cfg.SyncSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.SyncSchedule, func() { s.runJob("sync", s.RunSync) }); err != nil {
			return nil, fmt.Errorf("New: sync schedule %q: %w", cfg.SyncSchedule, err)
		}
	}
	if cfg.ReportSchedule != "" && reporter != nil {
		if _, err := s.cron.AddFunc(cfg.ReportSchedule, func() { s.runJob("report", s.RunReports) }); err != nil {
			return nil, fmt.Errorf("New: report schedule %q: %w", cfg.ReportSchedule, err)
		}
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("entries", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runJob(name string, run func(context.Context) (int, error)) {
	log := s.log.With().Str("schedule", name).Logger()
	ctx := logger.WithContext(context.Background(), log)

	n, err := run(ctx)
	if err != nil {
		log.Error().Err(err).Int("processed", n).Msg("Scheduled run failed")
		return
	}
	log.Info().Int("processed", n).Msg("Scheduled run finished")
}

// RunSync publishes a sync job for every auto-sync user and returns how many
// were queued.
func (s *Scheduler) RunSync(ctx context.Context) (int, error) {
	users, err := s.users.AutoSyncUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("RunSync: %w", err)
	}

	queued := 0
	for _, user := range users {
		job := &jobs.SyncJob{UserID: user, Days: s.syncDays, Trigger: jobs.TriggerSchedule}
		if err := s.publisher.PublishSync(ctx, job); err != nil {
			return queued, fmt.Errorf("RunSync: %s: %w", user, err)
		}
		queued++
	}
	return queued, nil
}

// RunReports sends last month's report to every auto-sync user. A failure
// for one user does not stop the others.
func (s *Scheduler) RunReports(ctx context.Context) (int, error) {
	users, err := s.users.AutoSyncUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("RunReports: %w", err)
	}

	month := report.PreviousMonth(s.now())
	sent := 0
	var firstErr error
	for _, user := range users {
		if err := s.reporter.SendMonthly(ctx, user, month); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("user_id", user).Msg("Monthly report failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	if firstErr != nil {
		return sent, fmt.Errorf("RunReports: %w", firstErr)
	}
	return sent, nil
}
