package mcc

import (
	"testing"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		code int
		typ  domain.TransactionType
		want string
	}{
		{5411, domain.Expense, "Продукты"},
		{5499, domain.Income, "Продукты"},
		{5814, domain.Expense, "Ресторан"},
		{4121, domain.Expense, "Такси"},
		{4112, domain.Expense, "Транспорт"},
		{5912, domain.Expense, "Аптека"},
		{8021, domain.Expense, "Врач"},
		{4814, domain.Expense, "Коммуналка"},
		{5399, domain.Expense, "Покупки"},
		{7833, domain.Expense, "Кино"},
		{7922, domain.Expense, "Развлечения"},
		{5541, domain.Expense, "Бензин"},
		{4829, domain.Income, "Income"},
		{4829, domain.Expense, "Expense"},
		{0, domain.Expense, "Expense"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Category(tt.code, tt.typ), "code %d type %s", tt.code, tt.typ)
	}
}

func TestKnown_CoversTable(t *testing.T) {
	known := map[string]bool{}
	for _, label := range Known() {
		known[label] = true
	}
	for code, label := range categories {
		assert.True(t, known[label], "label of %d missing from Known", code)
	}
	assert.True(t, IsFallback(Fallback(domain.Income)))
	assert.False(t, IsFallback("Продукты"))
}
