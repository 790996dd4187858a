package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTx() Transaction {
	return Transaction{
		ID:          "tx-1",
		Amount:      150,
		Category:    "Продукты",
		Description: "АТБ",
		Date:        "2025-03-14",
		Type:        Expense,
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{name: "valid", mutate: func(*Transaction) {}},
		{name: "missing id", mutate: func(tx *Transaction) { tx.ID = " " }, wantErr: ErrInputMissing},
		{name: "missing category", mutate: func(tx *Transaction) { tx.Category = "" }, wantErr: ErrInputMissing},
		{name: "bad date", mutate: func(tx *Transaction) { tx.Date = "14.03.2025" }, wantErr: ErrInputMissing},
		{name: "bad type", mutate: func(tx *Transaction) { tx.Type = "TRANSFER" }, wantErr: ErrInputMissing},
		{
			name: "original currency equal to base",
			mutate: func(tx *Transaction) {
				tx.OriginalCurrency = UAH
				tx.OriginalAmount = Float(10)
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "original currency without amount",
			mutate:  func(tx *Transaction) { tx.OriginalCurrency = USD },
			wantErr: ErrInvalidAmount,
		},
		{
			name: "valid foreign",
			mutate: func(tx *Transaction) {
				tx.OriginalCurrency = USD
				tx.OriginalAmount = Float(200)
				tx.Amount = 8300
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTx()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNormalize(t *testing.T) {
	tx := validTx()
	tx.Amount = -150
	tx.Type = "expense"
	tx.OriginalCurrency = "uah"
	tx.OriginalAmount = Float(-150)

	got := Normalize(tx)

	assert.Equal(t, 150.0, got.Amount)
	assert.Equal(t, Expense, got.Type)
	assert.Empty(t, got.OriginalCurrency)
	assert.Nil(t, got.OriginalAmount)
}

func TestNormalize_InfersTypeFromSign(t *testing.T) {
	tx := validTx()
	tx.Type = ""
	tx.Amount = -20
	assert.Equal(t, Expense, Normalize(tx).Type)

	tx.Amount = 20
	assert.Equal(t, Income, Normalize(tx).Type)
}

func TestTransaction_Signed(t *testing.T) {
	tx := validTx()
	assert.Equal(t, -150.0, tx.Signed())
	tx.Type = Income
	assert.Equal(t, 150.0, tx.Signed())
}

func TestParseCurrency(t *testing.T) {
	cur, ok := ParseCurrency(" usd ")
	require.True(t, ok)
	assert.Equal(t, USD, cur)

	_, ok = ParseCurrency("EUR")
	assert.False(t, ok)
}

func TestUserMessage_DistinctPerKind(t *testing.T) {
	kinds := []error{
		ErrInputMissing,
		ErrUpstreamAuth,
		ErrUpstreamRateLimited,
		ErrUpstreamUnavailable,
		ErrMalformedResponse,
		ErrInvalidAmount,
	}
	seen := map[string]bool{}
	for _, kind := range kinds {
		msg := UserMessage(fmt.Errorf("wrapped: %w", kind))
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message for %v", kind)
		seen[msg] = true
	}
	assert.Equal(t, "Внутренняя ошибка сервера.", UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}
