package monobank

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/logger"
)

const (
	DefaultSyncDays = 30
	MinSyncDays     = 1
	MaxSyncDays     = 365
)

// StatementSource is the subset of the bank API the syncer needs.
type StatementSource interface {
	ClientInfo(ctx context.Context, token string) (*ClientInfo, error)
	Statement(ctx context.Context, token, account string, from, to time.Time) ([]StatementItem, error)
}

// Syncer fetches a statement window and normalizes it.
type Syncer struct {
	source     StatementSource
	normalizer *Normalizer
	now        func() time.Time
}

// NewSyncer wires a source and a normalizer together.
func NewSyncer(source StatementSource, normalizer *Normalizer) *Syncer {
	return &Syncer{source: source, normalizer: normalizer, now: time.Now}
}

// ClampDays keeps a requested window inside [MinSyncDays, MaxSyncDays].
// Zero selects DefaultSyncDays.
func ClampDays(days int) int {
	switch {
	case days == 0:
		return DefaultSyncDays
	case days < MinSyncDays:
		return MinSyncDays
	case days > MaxSyncDays:
		return MaxSyncDays
	}
	return days
}

// Fetch returns the normalized statement of accountID for the last days.
// An empty accountID selects the first account of the client.
func (s *Syncer) Fetch(ctx context.Context, token, accountID string, days int) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)

	if token == "" {
		return nil, fmt.Errorf("Fetch: token: %w", domain.ErrInputMissing)
	}

	if accountID == "" {
		info, err := s.source.ClientInfo(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("Fetch: %w", err)
		}
		if len(info.Accounts) == 0 {
			return nil, fmt.Errorf("Fetch: %w", domain.ErrNoAccounts)
		}
		accountID = info.Accounts[0].ID
	}

	days = ClampDays(days)
	to := s.now()
	from := to.Add(-time.Duration(days) * 24 * time.Hour)

	items, err := s.source.Statement(ctx, token, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	txs, err := s.normalizer.NormalizeAll(items)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	log.Info().
		Str("account_id", accountID).
		Int("days", days).
		Int("lines", len(items)).
		Msg("Fetched Monobank statement")

	return txs, nil
}
