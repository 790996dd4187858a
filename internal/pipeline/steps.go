package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-finance/internal/currency"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/extractor"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/internal/mcc"
	"github.com/dvloznov/smart-finance/internal/reconcile"
	"github.com/dvloznov/smart-finance/internal/store"
)

// PipelineStep represents a single step in a pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	User string
	Rate float64

	// Chat path.
	Text        string
	Parsed      *domain.ParsedTransaction
	Rule        extractor.Rule
	Transaction domain.Transaction

	// Sync path.
	Token     string
	AccountID string
	Days      int
	Fetched   []domain.Transaction
	Fresh     []domain.Transaction
	Relabeled int

	// Existing is the stored collection read by SnapshotStep.
	Existing    []domain.Transaction
	Persistence store.Persistence
	Result      *store.Result
}

// SnapshotStep reads the stored collection.
type SnapshotStep struct {
	Store TransactionStore
}

func (s *SnapshotStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Store.List(ctx, state.User)
	if err != nil {
		return fmt.Errorf("SnapshotStep: %w", err)
	}
	state.Existing = res.Transactions
	state.Persistence = res.Persistence
	return nil
}

// ExtractStep asks the extractor for one transaction, offering the categories
// already in use.
type ExtractStep struct {
	Extractor extractor.Extractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	parsed, err := s.Extractor.Extract(ctx, state.Text, extractor.Vocabulary(state.Existing))
	if err != nil {
		return fmt.Errorf("ExtractStep: %w", err)
	}
	if parsed == nil {
		return fmt.Errorf("ExtractStep: %w", domain.ErrNoResult)
	}
	state.Parsed = parsed
	return nil
}

// ApplyPolicyStep enforces the deterministic type rules over the model's answer.
type ApplyPolicyStep struct{}

func (s *ApplyPolicyStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Rule = extractor.ApplyPolicy(state.Text, state.Parsed)
	if state.Rule != extractor.RuleNone {
		log := logger.FromContext(ctx)
		log.Debug().
			Str("rule", string(state.Rule)).
			Str("type", string(state.Parsed.Type)).
			Msg("Type decided by policy")
	}
	return nil
}

// ReconcileCategoryStep maps the extracted category onto the spelling the
// user already has.
type ReconcileCategoryStep struct{}

func (s *ReconcileCategoryStep) Execute(ctx context.Context, state *PipelineState) error {
	p := state.Parsed
	if p.Category == "" {
		p.Category = mcc.Fallback(p.Type)
		return nil
	}
	p.Category, _ = reconcile.FromTransactions(state.Existing).Reconcile(p.Category)
	return nil
}

// ConvertBuildStep converts the parsed amount into the base currency and
// builds the record to store.
type ConvertBuildStep struct {
	NewID func() string
	Now   func() time.Time
}

func (s *ConvertBuildStep) Execute(ctx context.Context, state *PipelineState) error {
	p := state.Parsed
	conv, err := currency.Convert(p.Amount, p.Currency, state.Rate)
	if err != nil {
		return fmt.Errorf("ConvertBuildStep: %w", err)
	}

	date := p.Date
	if date == "" {
		date = s.Now().Format(domain.DateLayout)
	}
	description := p.Description
	if description == "" {
		description = state.Text
	}

	tx := domain.Normalize(domain.Transaction{
		ID:               s.NewID(),
		Amount:           currency.Round2(conv.Amount),
		OriginalAmount:   conv.OriginalAmount,
		OriginalCurrency: conv.OriginalCurrency,
		Category:         p.Category,
		Description:      description,
		Date:             date,
		Type:             p.Type,
	})
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("ConvertBuildStep: %w", err)
	}
	state.Transaction = tx
	return nil
}

// PersistStep stores the built transaction.
type PersistStep struct {
	Store TransactionStore
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Store.Create(ctx, state.User, state.Transaction)
	if err != nil {
		return fmt.Errorf("PersistStep: %w", err)
	}
	state.Result = res
	return nil
}

// FetchStatementStep pulls the bank statement window.
type FetchStatementStep struct {
	Fetcher StatementFetcher
}

func (s *FetchStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := s.Fetcher.Fetch(ctx, state.Token, state.AccountID, state.Days)
	if err != nil {
		return fmt.Errorf("FetchStatementStep: %w", err)
	}
	state.Fetched = txs
	return nil
}

// SuggestCategoriesStep replaces MCC fallback labels with categories learned
// from the user's history.
type SuggestCategoriesStep struct {
	Confidence float64
}

func (s *SuggestCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	cl := reconcile.NewClassifier(state.Existing, s.Confidence)
	state.Relabeled = cl.Relabel(state.Fetched)
	return nil
}

// DedupStep drops statement lines that are already stored.
type DedupStep struct{}

func (s *DedupStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Fresh = reconcile.FilterNew(state.Existing, state.Fetched)
	log := logger.FromContext(ctx)
	log.Debug().
		Int("fetched", len(state.Fetched)).
		Int("fresh", len(state.Fresh)).
		Msg("Deduplicated statement")
	return nil
}

// PersistBatchStep stores the new lines in one call. With nothing new the
// snapshot stands as the result.
type PersistBatchStep struct {
	Store TransactionStore
}

func (s *PersistBatchStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Fresh) == 0 {
		state.Result = &store.Result{Transactions: state.Existing, Persistence: state.Persistence}
		return nil
	}
	res, err := s.Store.CreateBatch(ctx, state.User, state.Fresh)
	if err != nil {
		return fmt.Errorf("PersistBatchStep: %w", err)
	}
	state.Result = res
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
