package settings

import (
	"context"
	"testing"

	"github.com/dvloznov/smart-finance/internal/currency"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RateDefault(t *testing.T) {
	s := NewService(kv.NewMemory(), 0)
	rate, err := s.Rate(context.Background(), "tg_1")
	require.NoError(t, err)
	assert.Equal(t, currency.DefaultUSDRate, rate)
}

func TestService_SetRate(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s := NewService(store, 41.5)

	rate, err := s.SetRate(ctx, "tg_1", "42,25")
	require.NoError(t, err)
	assert.Equal(t, 42.25, rate)

	raw, err := store.Get(ctx, "smart_finance_usd_rate:tg_1")
	require.NoError(t, err)
	assert.Equal(t, "42.25", string(raw))

	for _, bad := range []string{"", "abc", "0", "-3", "NaN"} {
		_, err := s.SetRate(ctx, "tg_1", bad)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, bad)
	}

	rate, err = s.Rate(ctx, "tg_1")
	require.NoError(t, err)
	assert.Equal(t, 42.25, rate)

	other, err := s.Rate(ctx, "tg_2")
	require.NoError(t, err)
	assert.Equal(t, 41.5, other)
}

func TestService_CorruptRateFallsBack(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, RateKey, []byte("oops")))

	rate, err := NewService(store, 41.5).Rate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 41.5, rate)
}

func TestService_SetMonobank(t *testing.T) {
	ctx := context.Background()
	s := NewService(kv.NewMemory(), 41.5)

	require.NoError(t, s.SetMonobank(ctx, "tg_2", "tok-2", "", true))
	require.NoError(t, s.SetMonobank(ctx, "tg_1", " tok-1 ", "acc", true))

	got, err := s.Load(ctx, "tg_1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.MonobankToken)
	assert.Equal(t, "acc", got.AccountID)
	assert.True(t, got.AutoSync)
	assert.True(t, got.HasToken())
	assert.Equal(t, 41.5, got.USDRate)

	users, err := s.AutoSyncUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tg_1", "tg_2"}, users)

	require.NoError(t, s.SetMonobank(ctx, "tg_1", "", "", true))
	got, err = s.Load(ctx, "tg_1")
	require.NoError(t, err)
	assert.False(t, got.HasToken())
	assert.False(t, got.AutoSync)

	users, err = s.AutoSyncUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tg_2"}, users)
}

func TestService_AutoSyncNeedsIdentity(t *testing.T) {
	err := NewService(kv.NewMemory(), 0).SetMonobank(context.Background(), "", "tok", "", true)
	assert.ErrorIs(t, err, domain.ErrIdentityUnresolved)
}
