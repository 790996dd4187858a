package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/smart-finance/internal/domain"
	"google.golang.org/api/iterator"
)

const transactionsTable = "transactions"

// transactionColumns is the insert column order used by insertSQL.
var transactionColumns = []string{
	"transaction_id",
	"user_id",
	"transaction_date",
	"amount",
	"original_amount",
	"original_currency",
	"category",
	"description",
	"type",
	"created_ts",
}

func (r *TransactionRepository) table() string {
	return "`" + r.projectID + "." + r.datasetID + "." + transactionsTable + "`"
}

// listRows returns every row of user ordered newest first.
func (r *TransactionRepository) listRows(ctx context.Context, user string) ([]*TransactionRow, error) {
	q := r.client.Query(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			amount,
			original_amount,
			original_currency,
			category,
			description,
			type,
			created_ts
		FROM ` + r.table() + `
		WHERE user_id = @user_id
		ORDER BY transaction_date DESC, created_ts DESC
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: user},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("listRows: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listRows: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// insertSQL builds one multi-row INSERT with numbered parameters.
func (r *TransactionRepository) insertSQL(rows []*TransactionRow) (string, []bigquery.QueryParameter) {
	var b strings.Builder
	b.WriteString("INSERT INTO " + r.table() + " (" + strings.Join(transactionColumns, ", ") + ") VALUES ")

	params := make([]bigquery.QueryParameter, 0, len(rows)*len(transactionColumns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		names := make([]string, len(transactionColumns))
		for j, col := range transactionColumns {
			names[j] = fmt.Sprintf("@%s_%d", col, i)
			if col == "original_amount" {
				names[j] = "CAST(" + names[j] + " AS NUMERIC)"
			}
		}
		b.WriteString("(" + strings.Join(names, ", ") + ")")

		params = append(params,
			bigquery.QueryParameter{Name: fmt.Sprintf("transaction_id_%d", i), Value: row.TransactionID},
			bigquery.QueryParameter{Name: fmt.Sprintf("user_id_%d", i), Value: row.UserID},
			bigquery.QueryParameter{Name: fmt.Sprintf("transaction_date_%d", i), Value: row.TransactionDate},
			bigquery.QueryParameter{Name: fmt.Sprintf("amount_%d", i), Value: row.Amount},
			bigquery.QueryParameter{Name: fmt.Sprintf("original_amount_%d", i), Value: originalAmountParam(row)},
			bigquery.QueryParameter{Name: fmt.Sprintf("original_currency_%d", i), Value: row.OriginalCurrency},
			bigquery.QueryParameter{Name: fmt.Sprintf("category_%d", i), Value: row.Category},
			bigquery.QueryParameter{Name: fmt.Sprintf("description_%d", i), Value: row.Description},
			bigquery.QueryParameter{Name: fmt.Sprintf("type_%d", i), Value: row.Type},
			bigquery.QueryParameter{Name: fmt.Sprintf("created_ts_%d", i), Value: row.CreatedTS},
		)
	}
	return b.String(), params
}

// originalAmountParam renders the optional NUMERIC as a decimal string; the
// statements cast it back so NULL survives the round trip.
func originalAmountParam(row *TransactionRow) bigquery.NullString {
	if row.OriginalAmount == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: row.OriginalAmount.FloatString(6), Valid: true}
}

func (r *TransactionRepository) updateQuery(row *TransactionRow) *bigquery.Query {
	q := r.client.Query(`
		UPDATE ` + r.table() + `
		SET
			transaction_date = @transaction_date,
			amount = @amount,
			original_amount = CAST(@original_amount AS NUMERIC),
			original_currency = @original_currency,
			category = @category,
			description = @description,
			type = @type
		WHERE transaction_id = @transaction_id
		  AND user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "user_id", Value: row.UserID},
		{Name: "transaction_date", Value: row.TransactionDate},
		{Name: "amount", Value: row.Amount},
		{Name: "original_amount", Value: originalAmountParam(row)},
		{Name: "original_currency", Value: row.OriginalCurrency},
		{Name: "category", Value: row.Category},
		{Name: "description", Value: row.Description},
		{Name: "type", Value: row.Type},
	}
	return q
}

func (r *TransactionRepository) deleteQuery(user, id string) *bigquery.Query {
	q := r.client.Query(`
		DELETE FROM ` + r.table() + `
		WHERE transaction_id = @transaction_id
		  AND user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
		{Name: "user_id", Value: user},
	}
	return q
}

// runDML runs a DML statement and waits for the job to finish.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics == nil {
		return 0, nil
	}
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}

func toTransactions(rows []*TransactionRow) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toTransaction())
	}
	return out
}
