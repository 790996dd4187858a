package postgres

import (
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// TransactionModel is the gorm mapping of the transactions table.
type TransactionModel struct {
	ID               string    `gorm:"primaryKey;size:128"`
	UserID           string    `gorm:"size:64;not null;index"`
	Amount           float64   `gorm:"type:numeric(14,2);not null"`
	OriginalAmount   *float64  `gorm:"type:numeric(14,2)"`
	OriginalCurrency *string   `gorm:"type:varchar(3)"`
	Category         string    `gorm:"not null"`
	Description      string    `gorm:"not null"`
	Date             time.Time `gorm:"type:date;not null;index"`
	Type             string    `gorm:"type:varchar(7);not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName overrides the default pluralized name.
func (TransactionModel) TableName() string {
	return "transactions"
}

func modelFromTransaction(user string, tx domain.Transaction) (TransactionModel, error) {
	date, err := time.Parse(domain.DateLayout, tx.Date)
	if err != nil {
		return TransactionModel{}, err
	}
	m := TransactionModel{
		ID:          tx.ID,
		UserID:      user,
		Amount:      tx.Amount,
		Category:    tx.Category,
		Description: tx.Description,
		Date:        date,
		Type:        string(tx.Type),
	}
	if tx.OriginalAmount != nil && tx.OriginalCurrency != "" {
		v := *tx.OriginalAmount
		cur := string(tx.OriginalCurrency)
		m.OriginalAmount = &v
		m.OriginalCurrency = &cur
	}
	return m, nil
}

func (m TransactionModel) toTransaction() domain.Transaction {
	tx := domain.Transaction{
		ID:          m.ID,
		Amount:      m.Amount,
		Category:    m.Category,
		Description: m.Description,
		Date:        m.Date.Format(domain.DateLayout),
		Type:        domain.TransactionType(m.Type),
	}
	if m.OriginalAmount != nil && m.OriginalCurrency != nil {
		tx.OriginalAmount = domain.Float(*m.OriginalAmount)
		tx.OriginalCurrency = domain.Currency(*m.OriginalCurrency)
	}
	return domain.Normalize(tx)
}
