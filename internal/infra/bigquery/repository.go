// Package bigquery stores transactions in a BigQuery table through DML
// statements with named parameters.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/smart-finance/internal/domain"
)

// DefaultDataset is used when no dataset is configured.
const DefaultDataset = "finance"

// TransactionRepository implements store.Remote on BigQuery. It holds a
// shared client to avoid creating a new connection for each operation.
type TransactionRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

// NewTransactionRepository creates a repository with its own client.
func NewTransactionRepository(ctx context.Context, projectID, datasetID string) (*TransactionRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: creating client: %w", err)
	}
	return NewTransactionRepositoryWithClient(client, projectID, datasetID), nil
}

// NewTransactionRepositoryWithClient wraps an existing client.
func NewTransactionRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *TransactionRepository {
	if datasetID == "" {
		datasetID = DefaultDataset
	}
	return &TransactionRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		now:       time.Now,
	}
}

// Close closes the BigQuery client connection.
func (r *TransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Name implements store.Remote.
func (r *TransactionRepository) Name() string {
	return "bigquery"
}

// List implements store.Remote.
func (r *TransactionRepository) List(ctx context.Context, user string) ([]domain.Transaction, error) {
	rows, err := r.listRows(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return toTransactions(rows), nil
}

// Insert implements store.Remote. The batch goes out as a single INSERT so
// it is visible to the next read, which the streaming inserter is not.
func (r *TransactionRepository) Insert(ctx context.Context, user string, txs ...domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	now := r.now()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		row, err := rowFromTransaction(user, tx, now)
		if err != nil {
			return fmt.Errorf("Insert: %w", err)
		}
		rows = append(rows, row)
	}

	sql, params := r.insertSQL(rows)
	q := r.client.Query(sql)
	q.Parameters = params
	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Update implements store.Remote.
func (r *TransactionRepository) Update(ctx context.Context, user string, tx domain.Transaction) error {
	row, err := rowFromTransaction(user, tx, r.now())
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	n, err := runDML(ctx, r.updateQuery(row))
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Update: %s: %w", tx.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete implements store.Remote.
func (r *TransactionRepository) Delete(ctx context.Context, user, id string) error {
	if _, err := runDML(ctx, r.deleteQuery(user, id)); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}
