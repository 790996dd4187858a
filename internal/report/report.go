// Package report aggregates transactions into totals and monthly summaries
// and renders them as CSV.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// MonthLayout is the YYYY-MM form used in report requests.
const MonthLayout = "2006-01"

// Totals are sums over a set of transactions in the base currency.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// CategoryShare is one row of the expense breakdown.
type CategoryShare struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Percent  float64 `json:"percent"`
}

// Monthly is the report for one calendar month.
type Monthly struct {
	Month        string               `json:"month"`
	Totals       Totals               `json:"totals"`
	Count        int                  `json:"count"`
	Breakdown    []CategoryShare      `json:"breakdown"`
	Transactions []domain.Transaction `json:"transactions"`
}

// ComputeTotals sums income and expense magnitudes.
func ComputeTotals(txs []domain.Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount).Abs()
		if tx.Type == domain.Expense {
			expense = expense.Add(amount)
		} else {
			income = income.Add(amount)
		}
	}
	return Totals{
		Income:  income.InexactFloat64(),
		Expense: expense.InexactFloat64(),
		Balance: income.Sub(expense).InexactFloat64(),
	}
}

// ParseMonth validates a YYYY-MM string.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseMonth: %q: %w", month, domain.ErrInputMissing)
	}
	return t, nil
}

// PreviousMonth returns the YYYY-MM of the month before now.
func PreviousMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0).Format(MonthLayout)
}

// BuildMonthly filters txs to month and summarizes them. The breakdown lists
// expense categories by amount, largest first.
func BuildMonthly(txs []domain.Transaction, month string) (*Monthly, error) {
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	month = strings.TrimSpace(month)

	var inMonth []domain.Transaction
	for _, tx := range txs {
		if strings.HasPrefix(tx.Date, month+"-") {
			inMonth = append(inMonth, tx)
		}
	}

	totals := ComputeTotals(inMonth)
	return &Monthly{
		Month:        month,
		Totals:       totals,
		Count:        len(inMonth),
		Breakdown:    breakdown(inMonth, totals.Expense),
		Transactions: inMonth,
	}, nil
}

func breakdown(txs []domain.Transaction, totalExpense float64) []CategoryShare {
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, tx := range txs {
		if tx.Type != domain.Expense {
			continue
		}
		if _, ok := sums[tx.Category]; !ok {
			order = append(order, tx.Category)
		}
		sums[tx.Category] = sums[tx.Category].Add(decimal.NewFromFloat(tx.Amount).Abs())
	}

	shares := make([]CategoryShare, 0, len(order))
	total := decimal.NewFromFloat(totalExpense)
	for _, cat := range order {
		share := CategoryShare{Category: cat, Amount: sums[cat].InexactFloat64()}
		if total.IsPositive() {
			share.Percent = sums[cat].Div(total).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		shares = append(shares, share)
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Amount > shares[j].Amount
	})
	return shares
}

// Summary renders a short plain-text digest for chat notifications.
func Summary(m *Monthly) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Отчёт за %s\n", m.Month)
	fmt.Fprintf(&b, "Доходы: %.2f ₴\n", m.Totals.Income)
	fmt.Fprintf(&b, "Расходы: %.2f ₴\n", m.Totals.Expense)
	fmt.Fprintf(&b, "Баланс: %.2f ₴\n", m.Totals.Balance)
	fmt.Fprintf(&b, "Транзакций: %d\n", m.Count)
	for i, s := range m.Breakdown {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "• %s: %.2f ₴ (%.1f%%)\n", s.Category, s.Amount, s.Percent)
	}
	return b.String()
}
