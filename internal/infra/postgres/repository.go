// Package postgres stores transactions in PostgreSQL through gorm.
package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/smart-finance/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TransactionRepository implements store.Remote.
type TransactionRepository struct {
	db *gorm.DB
}

// Open connects with dsn and, when migrate is set, creates or updates the
// transactions table.
func Open(dsn string, migrate bool) (*TransactionRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if migrate {
		if err := db.AutoMigrate(&TransactionModel{}); err != nil {
			return nil, fmt.Errorf("Open: migrate: %w", err)
		}
	}
	return NewTransactionRepository(db), nil
}

// NewTransactionRepository wraps an open gorm handle.
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Close closes the underlying connection pool.
func (r *TransactionRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Name implements store.Remote.
func (r *TransactionRepository) Name() string {
	return "postgres"
}

// List implements store.Remote.
func (r *TransactionRepository) List(ctx context.Context, user string) ([]domain.Transaction, error) {
	var models []TransactionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", user).
		Order("date desc").
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(models))
	for _, m := range models {
		txs = append(txs, m.toTransaction())
	}
	return txs, nil
}

// Insert implements store.Remote.
func (r *TransactionRepository) Insert(ctx context.Context, user string, txs ...domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	models := make([]TransactionModel, 0, len(txs))
	for _, tx := range txs {
		m, err := modelFromTransaction(user, tx)
		if err != nil {
			return fmt.Errorf("Insert: %s: %w", tx.ID, err)
		}
		models = append(models, m)
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Update implements store.Remote.
func (r *TransactionRepository) Update(ctx context.Context, user string, tx domain.Transaction) error {
	m, err := modelFromTransaction(user, tx)
	if err != nil {
		return fmt.Errorf("Update: %s: %w", tx.ID, err)
	}
	res := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("id = ? AND user_id = ?", tx.ID, user).
		Updates(map[string]interface{}{
			"amount":            m.Amount,
			"original_amount":   m.OriginalAmount,
			"original_currency": m.OriginalCurrency,
			"category":          m.Category,
			"description":       m.Description,
			"date":              m.Date,
			"type":              m.Type,
		})
	if res.Error != nil {
		return fmt.Errorf("Update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("Update: %s: %w", tx.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete implements store.Remote.
func (r *TransactionRepository) Delete(ctx context.Context, user, id string) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, user).
		Delete(&TransactionModel{}).Error
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}
