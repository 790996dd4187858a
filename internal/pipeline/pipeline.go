// Package pipeline turns chat messages and bank statements into stored
// transactions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/extractor"
	"github.com/dvloznov/smart-finance/internal/jobs"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/internal/reconcile"
	"github.com/dvloznov/smart-finance/internal/store"
	"github.com/google/uuid"
)

// ChatResult is the outcome of adding a transaction from text.
type ChatResult struct {
	Transaction domain.Transaction
	Rule        extractor.Rule
	*store.Result
}

// SyncRequest selects what to import. Empty Token and AccountID fall back to
// the saved settings.
type SyncRequest struct {
	Token     string
	AccountID string
	Days      int
}

// SyncResult is the outcome of a bank sync.
type SyncResult struct {
	Added     []domain.Transaction
	Count     int
	Relabeled int
	*store.Result
}

// Service wires the extractor, the bank and the store into pipelines.
type Service struct {
	store      TransactionStore
	extractor  extractor.Extractor
	fetcher    StatementFetcher
	settings   SettingsSource
	confidence float64

	locks *keyedMutex
	newID func() string
	now   func() time.Time
}

// NewService creates a pipeline service. fetcher may be nil when bank sync
// is not available.
func NewService(st TransactionStore, ext extractor.Extractor, fetcher StatementFetcher, settings SettingsSource) *Service {
	return &Service{
		store:      st,
		extractor:  ext,
		fetcher:    fetcher,
		settings:   settings,
		confidence: reconcile.DefaultConfidence,
		locks:      newKeyedMutex(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// WithConfidence sets the minimum classifier score for category suggestions.
func (s *Service) WithConfidence(c float64) *Service {
	s.confidence = c
	return s
}

// NewChatPipeline creates the pipeline that stores a transaction from text.
func (s *Service) NewChatPipeline() *Pipeline {
	return NewPipeline(
		&SnapshotStep{Store: s.store},
		&ExtractStep{Extractor: s.extractor},
		&ApplyPolicyStep{},
		&ReconcileCategoryStep{},
		&ConvertBuildStep{NewID: s.newID, Now: s.now},
		&PersistStep{Store: s.store},
	)
}

// NewSyncPipeline creates the bank import pipeline. The snapshot is read
// after the fetch, right before the write.
func (s *Service) NewSyncPipeline() *Pipeline {
	return NewPipeline(
		&FetchStatementStep{Fetcher: s.fetcher},
		&SnapshotStep{Store: s.store},
		&SuggestCategoriesStep{Confidence: s.confidence},
		&DedupStep{},
		&PersistBatchStep{Store: s.store},
	)
}

// Parse extracts a transaction from text without storing it. existing is the
// caller's collection, used for the category vocabulary. A nil result means
// nothing was recognized.
func (s *Service) Parse(ctx context.Context, text string, existing []domain.Transaction) (*domain.ParsedTransaction, error) {
	state := &PipelineState{Text: text, Existing: existing}
	p := NewPipeline(
		&ExtractStep{Extractor: s.extractor},
		&ApplyPolicyStep{},
		&ReconcileCategoryStep{},
	)
	if err := p.Execute(ctx, state); err != nil {
		if errors.Is(err, domain.ErrNoResult) {
			return nil, nil
		}
		return nil, fmt.Errorf("Parse: %w", err)
	}
	return state.Parsed, nil
}

// AddFromText extracts, converts and stores one transaction.
func (s *Service) AddFromText(ctx context.Context, user, text string) (*ChatResult, error) {
	cfg, err := s.settings.Load(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("AddFromText: settings: %w", err)
	}

	state := &PipelineState{User: user, Text: text, Rate: cfg.USDRate}
	if err := s.NewChatPipeline().Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("AddFromText: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", state.Transaction.ID).
		Str("type", string(state.Transaction.Type)).
		Bool("local_only", state.Result.Persistence.LocalOnly).
		Msg("Stored transaction from text")

	return &ChatResult{Transaction: state.Transaction, Rule: state.Rule, Result: state.Result}, nil
}

// Sync imports new bank statement lines for user. Syncs of one user run one
// at a time.
func (s *Service) Sync(ctx context.Context, user string, req SyncRequest) (*SyncResult, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("Sync: bank sync: %w", domain.ErrUpstreamUnavailable)
	}

	if req.Token == "" {
		cfg, err := s.settings.Load(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("Sync: settings: %w", err)
		}
		req.Token = cfg.MonobankToken
		if req.AccountID == "" {
			req.AccountID = cfg.AccountID
		}
	}
	if req.Token == "" {
		return nil, fmt.Errorf("Sync: token: %w", domain.ErrInputMissing)
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	state := &PipelineState{User: user, Token: req.Token, AccountID: req.AccountID, Days: req.Days}
	if err := s.NewSyncPipeline().Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("Sync: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("fetched", len(state.Fetched)).
		Int("added", len(state.Fresh)).
		Int("relabeled", state.Relabeled).
		Bool("local_only", state.Result.Persistence.LocalOnly).
		Msg("Bank sync finished")

	return &SyncResult{
		Added:     state.Fresh,
		Count:     len(state.Fresh),
		Relabeled: state.Relabeled,
		Result:    state.Result,
	}, nil
}

// HandleJob runs a queued sync job and records its outcome on the job.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	sj, ok := job.(*jobs.SyncJob)
	if !ok {
		return fmt.Errorf("HandleJob: unsupported job type %s: %w", job.GetType(), domain.ErrInputMissing)
	}

	res, err := s.Sync(ctx, sj.UserID, SyncRequest{Token: sj.Token, AccountID: sj.AccountID, Days: sj.Days})
	if err != nil {
		return err
	}
	sj.Added = res.Count
	sj.LocalOnly = res.Persistence.LocalOnly
	return nil
}
