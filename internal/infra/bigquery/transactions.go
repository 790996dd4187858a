package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionRow mirrors one row of the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, magnitude in UAH

	OriginalAmount   *big.Rat            `bigquery:"original_amount"`   // NULLABLE NUMERIC
	OriginalCurrency bigquery.NullString `bigquery:"original_currency"` // NULLABLE

	Category    string `bigquery:"category"`    // REQUIRED
	Description string `bigquery:"description"` // REQUIRED, may be empty
	Type        string `bigquery:"type"`        // REQUIRED INCOME|EXPENSE

	CreatedTS time.Time `bigquery:"created_ts"`
}

// rowFromTransaction converts a canonical record for user.
func rowFromTransaction(user string, tx domain.Transaction, now time.Time) (*TransactionRow, error) {
	date, err := civil.ParseDate(tx.Date)
	if err != nil {
		return nil, fmt.Errorf("rowFromTransaction: date %q: %w", tx.Date, err)
	}
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          user,
		TransactionDate: date,
		Amount:          decimal.NewFromFloat(tx.Amount).Rat(),
		Category:        tx.Category,
		Description:     tx.Description,
		Type:            string(tx.Type),
		CreatedTS:       now.UTC(),
	}
	if tx.OriginalAmount != nil && tx.OriginalCurrency != "" {
		row.OriginalAmount = decimal.NewFromFloat(*tx.OriginalAmount).Rat()
		row.OriginalCurrency = bigquery.NullString{StringVal: string(tx.OriginalCurrency), Valid: true}
	}
	return row, nil
}

// toTransaction converts a row back to the canonical record.
func (r *TransactionRow) toTransaction() domain.Transaction {
	tx := domain.Transaction{
		ID:          r.TransactionID,
		Amount:      ratToFloat(r.Amount),
		Category:    r.Category,
		Description: r.Description,
		Date:        r.TransactionDate.String(),
		Type:        domain.TransactionType(r.Type),
	}
	if r.OriginalCurrency.Valid && r.OriginalAmount != nil {
		tx.OriginalCurrency = domain.Currency(r.OriginalCurrency.StringVal)
		tx.OriginalAmount = domain.Float(ratToFloat(r.OriginalAmount))
	}
	return domain.Normalize(tx)
}

func ratToFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}
