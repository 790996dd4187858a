package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (*TransactionRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewTransactionRepository(db), mock
}

func usdTx() domain.Transaction {
	return domain.Transaction{
		ID:               "c0ffee",
		Amount:           8300,
		OriginalAmount:   domain.Float(200),
		OriginalCurrency: domain.USD,
		Category:         "Переводы",
		Description:      "Миша",
		Date:             "2025-03-14",
		Type:             domain.Income,
	}
}

func TestTransactionRepository_Insert(t *testing.T) {
	require := require.New(t)
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectCommit()

	second := usdTx()
	second.ID = "beef"
	err := repo.Insert(context.Background(), "tg_1", usdTx(), second)
	require.NoError(err)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnError(errors.New("insert error"))
	mock.ExpectRollback()

	err = repo.Insert(context.Background(), "tg_1", usdTx())
	require.Error(err)

	require.NoError(repo.Insert(context.Background(), "tg_1"))
	require.NoError(mock.ExpectationsWereMet())
}

func TestTransactionRepository_Insert_BadDate(t *testing.T) {
	repo, _ := newMockRepo(t)
	tx := usdTx()
	tx.Date = "yesterday"
	assert.Error(t, repo.Insert(context.Background(), "tg_1", tx))
}

func TestTransactionRepository_List(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "amount", "original_amount", "original_currency", "category", "description", "date", "type", "created_at", "updated_at"}).
		AddRow("c0ffee", "tg_1", 8300.0, 200.0, "USD", "Переводы", "Миша", day, "INCOME", now, now).
		AddRow("mono_1", "tg_1", 150.0, nil, nil, "Продукты", "Сільпо", day.AddDate(0, 0, -1), "EXPENSE", now, now)
	mock.ExpectQuery(`SELECT \* FROM "transactions" WHERE user_id = \$1 ORDER BY date desc,created_at desc`).
		WithArgs("tg_1").
		WillReturnRows(rows)

	txs, err := repo.List(context.Background(), "tg_1")
	require.NoError(err)
	require.Len(txs, 2)

	assert.Equal(usdTx(), txs[0])
	assert.Equal("2025-03-13", txs[1].Date)
	assert.Nil(txs[1].OriginalAmount)
	assert.Equal(domain.Expense, txs[1].Type)

	mock.ExpectQuery(`SELECT \* FROM "transactions"`).WillReturnError(errors.New("connection reset"))
	_, err = repo.List(context.Background(), "tg_1")
	require.Error(err)
}

func TestTransactionRepository_Update(t *testing.T) {
	require := require.New(t)
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "transactions" SET (.+) WHERE id = \$\d+ AND user_id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(repo.Update(context.Background(), "tg_1", usdTx()))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "transactions" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	err := repo.Update(context.Background(), "tg_1", usdTx())
	require.ErrorIs(err, domain.ErrNotFound)

	require.NoError(mock.ExpectationsWereMet())
}

func TestTransactionRepository_Delete(t *testing.T) {
	require := require.New(t)
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "transactions" WHERE id = \$1 AND user_id = \$2`).
		WithArgs("c0ffee", "tg_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(repo.Delete(context.Background(), "tg_1", "c0ffee"))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "transactions"`).
		WillReturnError(errors.New("delete error"))
	mock.ExpectRollback()
	require.Error(repo.Delete(context.Background(), "tg_1", "c0ffee"))
}

func TestModelRoundTrip(t *testing.T) {
	m, err := modelFromTransaction("tg_1", usdTx())
	require.NoError(t, err)
	assert.Equal(t, "tg_1", m.UserID)
	require.NotNil(t, m.OriginalCurrency)
	assert.Equal(t, "USD", *m.OriginalCurrency)
	assert.Equal(t, usdTx(), m.toTransaction())
	assert.Equal(t, "postgres", (&TransactionRepository{}).Name())
}
