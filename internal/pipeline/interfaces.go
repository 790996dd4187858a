package pipeline

import (
	"context"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/settings"
	"github.com/dvloznov/smart-finance/internal/store"
)

// TransactionStore is the part of store.Store the pipelines write through.
type TransactionStore interface {
	List(ctx context.Context, user string) (*store.Result, error)
	Create(ctx context.Context, user string, tx domain.Transaction) (*store.Result, error)
	CreateBatch(ctx context.Context, user string, txs []domain.Transaction) (*store.Result, error)
}

// StatementFetcher returns a normalized bank statement window.
// monobank.Syncer implements it.
type StatementFetcher interface {
	Fetch(ctx context.Context, token, accountID string, days int) ([]domain.Transaction, error)
}

// SettingsSource provides the per-user settings passed into each run.
type SettingsSource interface {
	Load(ctx context.Context, user string) (settings.Settings, error)
}
