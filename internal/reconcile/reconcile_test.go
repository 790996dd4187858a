package reconcile

import (
	"testing"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/mcc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(id, category, description string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		Amount:      10,
		Category:    category,
		Description: description,
		Date:        "2025-03-14",
		Type:        domain.Expense,
	}
}

func TestFilterNew(t *testing.T) {
	existing := []domain.Transaction{tx("mono_a", "Продукты", ""), tx("mono_b", "Такси", "")}
	incoming := []domain.Transaction{tx("mono_b", "Такси", ""), tx("mono_c", "Кафе", ""), tx("mono_c", "Кафе", ""), tx("mono_d", "Кафе", "")}

	fresh := FilterNew(existing, incoming)
	require.Len(t, fresh, 2)
	assert.Equal(t, "mono_c", fresh[0].ID)
	assert.Equal(t, "mono_d", fresh[1].ID)
}

func TestFilterNew_Idempotent(t *testing.T) {
	incoming := []domain.Transaction{tx("mono_a", "Продукты", ""), tx("mono_b", "Такси", "")}

	first := FilterNew(nil, incoming)
	assert.Len(t, first, 2)

	stored := Merge(nil, first)
	second := FilterNew(stored, incoming)
	assert.Empty(t, second)
}

func TestMerge(t *testing.T) {
	merged := Merge([]domain.Transaction{tx("old", "", "")}, []domain.Transaction{tx("new1", "", ""), tx("new2", "", "")})
	ids := make([]string, 0, len(merged))
	for _, m := range merged {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"new1", "new2", "old"}, ids)
}

func TestCategories_Reconcile(t *testing.T) {
	c := NewCategories([]string{"Продукты", "продукты", "  Кафе  и  бары ", ""})
	assert.Equal(t, 2, c.Len())

	got, ok := c.Reconcile("ПРОДУКТЫ")
	assert.True(t, ok)
	assert.Equal(t, "Продукты", got)

	got, ok = c.Reconcile("кафе и бары")
	assert.True(t, ok)
	assert.Equal(t, "Кафе  и  бары", got)

	got, ok = c.Reconcile(" Аптека ")
	assert.False(t, ok)
	assert.Equal(t, "Аптека", got)
}

func TestFromTransactions(t *testing.T) {
	c := FromTransactions([]domain.Transaction{tx("1", "Такси", ""), tx("2", "такси", ""), tx("3", "Еда", "")})
	assert.Equal(t, 2, c.Len())
}

func history() []domain.Transaction {
	return []domain.Transaction{
		tx("1", "Продукты", "Сільпо"),
		tx("2", "Продукты", "Сільпо Київ"),
		tx("3", "Продукты", "АТБ маркет"),
		tx("4", "Такси", "Uber trip"),
		tx("5", "Такси", "Bolt ride"),
		tx("6", "Такси", "Uber"),
		tx("7", mcc.FallbackExpense, "Сільпо"),
	}
}

func TestClassifier_Suggest(t *testing.T) {
	c := NewClassifier(history(), 0)

	got, ok := c.Suggest(domain.Expense, "СІЛЬПО")
	require.True(t, ok)
	assert.Equal(t, "Продукты", got)

	got, ok = c.Suggest(domain.Expense, "Uber")
	require.True(t, ok)
	assert.Equal(t, "Такси", got)

	_, ok = c.Suggest(domain.Expense, "")
	assert.False(t, ok)
}

func TestClassifier_TooFewClasses(t *testing.T) {
	c := NewClassifier([]domain.Transaction{tx("1", "Продукты", "Сільпо"), tx("2", mcc.FallbackExpense, "Uber")}, 0.8)
	_, ok := c.Suggest(domain.Expense, "Сільпо")
	assert.False(t, ok)

	var nilClassifier *Classifier
	_, ok = nilClassifier.Suggest(domain.Expense, "Сільпо")
	assert.False(t, ok)
}

func TestClassifier_Relabel(t *testing.T) {
	c := NewClassifier(history(), 0.8)

	txs := []domain.Transaction{
		tx("mono_1", mcc.FallbackExpense, "Сільпо"),
		tx("mono_2", "Аптека", "Uber"),
		tx("mono_3", mcc.FallbackIncome, ""),
	}
	changed := c.Relabel(txs)
	assert.Equal(t, 1, changed)
	assert.Equal(t, "Продукты", txs[0].Category)
	assert.Equal(t, "Аптека", txs[1].Category)
	assert.Equal(t, mcc.FallbackIncome, txs[2].Category)
}

func TestClassifier_SuggestsWithinType(t *testing.T) {
	salary := func(id, category, description string) domain.Transaction {
		r := tx(id, category, description)
		r.Type = domain.Income
		return r
	}
	records := append(history(),
		salary("8", "Зарплата", "ТОВ Ромашка зарплата"),
		salary("9", "Зарплата", "ТОВ Ромашка аванс"),
		salary("10", "Кэшбэк", "Cashback Monobank кешбек"),
	)
	c := NewClassifier(records, 0.8)

	_, ok := c.Suggest(domain.Income, "Uber")
	assert.False(t, ok)

	got, ok := c.Suggest(domain.Income, "ТОВ Ромашка")
	require.True(t, ok)
	assert.Equal(t, "Зарплата", got)

	refund := salary("mono_r", mcc.FallbackIncome, "Uber refund")
	txs := []domain.Transaction{refund, tx("mono_e", mcc.FallbackExpense, "Uber")}
	assert.Equal(t, 1, c.Relabel(txs))
	assert.Equal(t, mcc.FallbackIncome, txs[0].Category)
	assert.Equal(t, "Такси", txs[1].Category)
}

func TestClassifier_TypeWithOneCategory(t *testing.T) {
	income := tx("1", "Зарплата", "ТОВ Ромашка")
	income.Type = domain.Income
	c := NewClassifier(append(history(), income), 0.8)

	_, ok := c.Suggest(domain.Income, "ТОВ Ромашка")
	assert.False(t, ok)

	_, ok = c.Suggest(domain.Expense, "Сільпо")
	assert.True(t, ok)
}
