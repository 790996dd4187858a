package monobank

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStatementSource is a mock implementation of StatementSource for testing.
type MockStatementSource struct {
	ClientInfoFunc func(ctx context.Context, token string) (*ClientInfo, error)
	StatementFunc  func(ctx context.Context, token, account string, from, to time.Time) ([]StatementItem, error)
}

func (m *MockStatementSource) ClientInfo(ctx context.Context, token string) (*ClientInfo, error) {
	return m.ClientInfoFunc(ctx, token)
}

func (m *MockStatementSource) Statement(ctx context.Context, token, account string, from, to time.Time) ([]StatementItem, error) {
	return m.StatementFunc(ctx, token, account, from, to)
}

func TestClampDays(t *testing.T) {
	assert.Equal(t, 30, ClampDays(0))
	assert.Equal(t, 1, ClampDays(-5))
	assert.Equal(t, 7, ClampDays(7))
	assert.Equal(t, 365, ClampDays(1000))
}

func TestSyncer_Fetch_UsesFirstAccountAndWindow(t *testing.T) {
	now := time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC)
	var gotAccount string
	var gotFrom, gotTo time.Time

	source := &MockStatementSource{
		ClientInfoFunc: func(ctx context.Context, token string) (*ClientInfo, error) {
			return &ClientInfo{Accounts: []Account{{ID: "first"}, {ID: "second"}}}, nil
		},
		StatementFunc: func(ctx context.Context, token, account string, from, to time.Time) ([]StatementItem, error) {
			gotAccount, gotFrom, gotTo = account, from, to
			return []StatementItem{{ID: "a", Time: now.Unix(), Amount: -15000, MCC: 5411}}, nil
		},
	}

	s := NewSyncer(source, NewNormalizer(0, time.UTC))
	s.now = func() time.Time { return now }

	txs, err := s.Fetch(context.Background(), "token", "", 30)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "first", gotAccount)
	assert.Equal(t, now, gotTo)
	assert.Equal(t, now.Add(-30*24*time.Hour), gotFrom)
	assert.Equal(t, "mono_a", txs[0].ID)
}

func TestSyncer_Fetch_Errors(t *testing.T) {
	s := NewSyncer(&MockStatementSource{
		ClientInfoFunc: func(ctx context.Context, token string) (*ClientInfo, error) {
			return &ClientInfo{}, nil
		},
	}, NewNormalizer(0, time.UTC))

	_, err := s.Fetch(context.Background(), "", "", 30)
	assert.ErrorIs(t, err, domain.ErrInputMissing)

	_, err = s.Fetch(context.Background(), "token", "", 30)
	assert.ErrorIs(t, err, domain.ErrNoAccounts)
}
