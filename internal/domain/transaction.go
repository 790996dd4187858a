package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on every transaction.
const DateLayout = "2006-01-02"

// TransactionType says whether money came in or went out.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Currency is an ISO 4217 alphabetic code.
type Currency string

const (
	UAH Currency = "UAH"
	USD Currency = "USD"

	// BaseCurrency is what every stored amount is denominated in.
	BaseCurrency = UAH
)

// ParseCurrency accepts any casing and surrounding spaces.
func ParseCurrency(s string) (Currency, bool) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case UAH:
		return UAH, true
	case USD:
		return USD, true
	}
	return "", false
}

// Transaction is the canonical record both the chat and the bank paths produce.
// Amount is always a magnitude in BaseCurrency; the direction lives in Type.
type Transaction struct {
	ID               string          `json:"id"`
	Amount           float64         `json:"amount"`
	OriginalAmount   *float64        `json:"originalAmount,omitempty"`
	OriginalCurrency Currency        `json:"originalCurrency,omitempty"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	Date             string          `json:"date"`
	Type             TransactionType `json:"type"`
}

// ParsedTransaction is what the free-text extractor returns, before any
// currency conversion.
type ParsedTransaction struct {
	Amount      float64         `json:"amount"`
	Currency    Currency        `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Type        TransactionType `json:"type"`
}

// Validate checks the invariants every persisted transaction must hold.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInputMissing)
	}
	if strings.TrimSpace(t.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInputMissing)
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInputMissing, t.Date)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInputMissing, t.Type)
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return fmt.Errorf("%w: amount is not a finite number", ErrInvalidAmount)
	}
	if t.OriginalCurrency != "" {
		if t.OriginalCurrency == BaseCurrency {
			return fmt.Errorf("%w: original currency equals base currency", ErrInvalidAmount)
		}
		if t.OriginalAmount == nil || *t.OriginalAmount <= 0 || math.IsInf(*t.OriginalAmount, 0) {
			return fmt.Errorf("%w: original amount must be a positive number", ErrInvalidAmount)
		}
	}
	return nil
}

// Signed returns the amount with expenses negative.
func (t Transaction) Signed() float64 {
	if t.Type == Expense {
		return -math.Abs(t.Amount)
	}
	return math.Abs(t.Amount)
}

// Normalize converts a possibly signed record into magnitude plus type.
// A negative amount with no type is read as an expense. Original currency
// equal to the base currency is dropped.
func Normalize(t Transaction) Transaction {
	if t.Type == "" {
		if t.Amount < 0 {
			t.Type = Expense
		} else {
			t.Type = Income
		}
	}
	t.Type = TransactionType(strings.ToUpper(string(t.Type)))
	t.Amount = math.Abs(t.Amount)

	if t.OriginalCurrency != "" {
		if cur, ok := ParseCurrency(string(t.OriginalCurrency)); ok {
			t.OriginalCurrency = cur
		}
	}
	if t.OriginalCurrency == BaseCurrency {
		t.OriginalCurrency = ""
		t.OriginalAmount = nil
	}
	if t.OriginalAmount != nil {
		v := math.Abs(*t.OriginalAmount)
		t.OriginalAmount = &v
	}
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
	return t
}

// Float returns a pointer to v, for OriginalAmount literals.
func Float(v float64) *float64 {
	return &v
}

// IDs returns the set of identifiers present in txs.
func IDs(txs []Transaction) map[string]struct{} {
	ids := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		ids[tx.ID] = struct{}{}
	}
	return ids
}
