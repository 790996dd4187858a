// Package app builds the dependency graph shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/smart-finance/internal/config"
	"github.com/dvloznov/smart-finance/internal/extractor"
	"github.com/dvloznov/smart-finance/internal/gcsuploader"
	infraBQ "github.com/dvloznov/smart-finance/internal/infra/bigquery"
	infraMongo "github.com/dvloznov/smart-finance/internal/infra/mongo"
	infraPG "github.com/dvloznov/smart-finance/internal/infra/postgres"
	infraRedis "github.com/dvloznov/smart-finance/internal/infra/redis"
	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/jobs/inmemory"
	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/dvloznov/smart-finance/internal/monobank"
	"github.com/dvloznov/smart-finance/internal/notify"
	"github.com/dvloznov/smart-finance/internal/pipeline"
	"github.com/dvloznov/smart-finance/internal/report"
	"github.com/dvloznov/smart-finance/internal/settings"
	"github.com/dvloznov/smart-finance/internal/store"
	"github.com/rs/zerolog"
)

// Options adjusts how the graph is built.
type Options struct {
	// Offline selects the rules extractor even when a model key is set.
	Offline bool
}

// Deps holds the services built from configuration.
type Deps struct {
	Config    *config.Config
	Log       zerolog.Logger
	KV        kv.Store
	Remote    store.Remote
	Store     *store.Store
	Settings  *settings.Service
	Extractor extractor.Extractor
	Syncer    *monobank.Syncer
	Pipeline  *pipeline.Service
	Notifier  notify.Notifier
	Reports   *report.Service
	Identity  *identity.Validator
	JobStore  *inmemory.Store
	Queue     *inmemory.Queue

	closers []func() error
}

// Build opens every backend named in cfg. Close releases them.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*Deps, error) {
	d := &Deps{Config: cfg, Log: log}

	if err := d.build(ctx, opts); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) build(ctx context.Context, opts Options) error {
	cfg := d.Config

	local, err := d.openKV(ctx)
	if err != nil {
		return err
	}
	d.KV = local

	remote, err := d.openRemote(ctx)
	if err != nil {
		return err
	}
	d.Remote = remote
	d.Store = store.New(local, remote)
	d.Settings = settings.NewService(local, cfg.Currency.DefaultUSDRate)

	d.Extractor, err = d.newExtractor(ctx, opts.Offline)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("build: timezone: %w", err)
	}
	client := monobank.NewClient(cfg.Monobank.BaseURL, cfg.Monobank.Timeout)
	d.Syncer = monobank.NewSyncer(client, monobank.NewNormalizer(cfg.Monobank.FallbackRate, loc))

	d.Pipeline = pipeline.NewService(d.Store, d.Extractor, d.Syncer, d.Settings).
		WithConfidence(cfg.Sync.Confidence)

	d.Notifier = notify.Noop{}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("build: telegram: %w", err)
		}
		d.Notifier = tg
	}

	var archiver *report.Archiver
	if cfg.Report.GCSBucket != "" {
		bucket, err := gcsuploader.NewBucket(ctx, cfg.Report.GCSBucket)
		if err != nil {
			return fmt.Errorf("build: report bucket: %w", err)
		}
		d.closers = append(d.closers, bucket.Close)
		archiver = report.NewArchiver(bucket)
	}
	d.Reports = report.NewService(d.Store, d.Notifier, archiver)

	d.JobStore = inmemory.NewStore()
	d.Queue = inmemory.NewQueue(cfg.Jobs.QueueSize, d.JobStore).WithWorkers(cfg.Jobs.Workers)

	d.Identity = identity.NewValidator(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge)
	if !d.Identity.Verifying() {
		d.Log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, initData signatures are not checked")
	}
	return nil
}

func (d *Deps) openKV(ctx context.Context) (kv.Store, error) {
	cfg := d.Config.KV
	switch cfg.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "redis":
		r, err := infraRedis.NewStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("openKV: %w", err)
		}
		d.closers = append(d.closers, r.Close)
		return r, nil
	default:
		f, err := kv.NewFile(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("openKV: %w", err)
		}
		return f, nil
	}
}

// openRemote returns nil when no remote backend is configured.
func (d *Deps) openRemote(ctx context.Context) (store.Remote, error) {
	cfg := d.Config.Store
	switch cfg.Backend {
	case "postgres":
		repo, err := infraPG.Open(cfg.Postgres.DSN, cfg.Postgres.Migrate)
		if err != nil {
			return nil, fmt.Errorf("openRemote: %w", err)
		}
		d.closers = append(d.closers, repo.Close)
		return repo, nil
	case "mongo":
		repo, err := infraMongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("openRemote: %w", err)
		}
		d.closers = append(d.closers, func() error { return repo.Close(context.Background()) })
		return repo, nil
	case "bigquery":
		repo, err := infraBQ.NewTransactionRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, fmt.Errorf("openRemote: %w", err)
		}
		d.closers = append(d.closers, repo.Close)
		return repo, nil
	}
	d.Log.Info().Msg("No remote store configured, transactions stay in the local cache")
	return nil, nil
}

func (d *Deps) newExtractor(ctx context.Context, offline bool) (extractor.Extractor, error) {
	cfg := d.Config.Gemini
	if offline {
		return extractor.NewRules(), nil
	}
	if cfg.APIKey == "" {
		d.Log.Warn().Msg("GEMINI_API_KEY not set, using the rules extractor")
		return extractor.NewRules(), nil
	}
	g, err := extractor.NewGemini(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("newExtractor: %w", err)
	}
	return g, nil
}

// Close releases every opened backend, last opened first.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
