package monobank

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/currency"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/mcc"
	"github.com/shopspring/decimal"
)

const (
	// IDPrefix marks bank-sourced records so they never collide with chat ids.
	IDPrefix = "mono_"

	// DefaultFallbackRate converts USD lines during sync. It is not the
	// user-configured rate.
	DefaultFallbackRate = 40.0

	defaultDescription = "Транзакция Monobank"
)

// Normalizer turns statement lines into canonical transactions.
type Normalizer struct {
	FallbackRate float64
	Location     *time.Location
}

// NewNormalizer returns a normalizer with the given USD rate and calendar
// location. Zero values select the defaults.
func NewNormalizer(fallbackRate float64, loc *time.Location) *Normalizer {
	if fallbackRate <= 0 {
		fallbackRate = DefaultFallbackRate
	}
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{FallbackRate: fallbackRate, Location: loc}
}

// Normalize converts one statement line.
func (n *Normalizer) Normalize(item StatementItem) (domain.Transaction, error) {
	if strings.TrimSpace(item.ID) == "" {
		return domain.Transaction{}, fmt.Errorf("statement line without id: %w", domain.ErrMalformedResponse)
	}
	if item.Time <= 0 {
		return domain.Transaction{}, fmt.Errorf("statement line %s: missing time: %w", item.ID, domain.ErrMalformedResponse)
	}

	txType := domain.Income
	if item.Amount < 0 {
		txType = domain.Expense
	}

	magnitude := math.Abs(currency.FromMinorUnits(item.Amount))

	tx := domain.Transaction{
		ID:          IDPrefix + item.ID,
		Amount:      magnitude,
		Category:    mcc.Category(item.MCC, txType),
		Description: strings.TrimSpace(item.Description),
		Date:        time.Unix(item.Time, 0).In(n.Location).Format(domain.DateLayout),
		Type:        txType,
	}
	if tx.Description == "" {
		tx.Description = defaultDescription
	}

	// A zero USD line (holds, reversals) keeps no original amount.
	if item.CurrencyCode == CurrencyCodeUSD && magnitude > 0 {
		converted, _ := decimal.NewFromFloat(magnitude).Mul(decimal.NewFromFloat(n.FallbackRate)).Float64()
		tx.Amount = converted
		tx.OriginalAmount = domain.Float(magnitude)
		tx.OriginalCurrency = domain.USD
	}

	return tx, nil
}

// NormalizeAll converts a whole statement. One malformed line fails the
// batch and nothing is returned.
func (n *Normalizer) NormalizeAll(items []StatementItem) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(items))
	for i, item := range items {
		tx, err := n.Normalize(item)
		if err != nil {
			return nil, fmt.Errorf("NormalizeAll: line %d: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}
