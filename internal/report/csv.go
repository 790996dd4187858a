package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/gcsuploader"
)

var csvHeader = []string{"Date", "Type", "Category", "Description", "Amount", "OriginalAmount", "OriginalCurrency"}

// WriteCSV writes one row per transaction after a header row.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for _, tx := range txs {
		original := ""
		if tx.OriginalAmount != nil {
			original = strconv.FormatFloat(*tx.OriginalAmount, 'f', 2, 64)
		}
		row := []string{
			tx.Date,
			string(tx.Type),
			tx.Category,
			tx.Description,
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
			original,
			string(tx.OriginalCurrency),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteCSV: %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Archiver stores monthly CSV exports in object storage.
type Archiver struct {
	storage gcsuploader.ObjectStorage
}

// NewArchiver creates an archiver over storage.
func NewArchiver(storage gcsuploader.ObjectStorage) *Archiver {
	return &Archiver{storage: storage}
}

// ObjectName is where the export of user for month is stored.
func ObjectName(user, month string) string {
	return fmt.Sprintf("reports/%s/%s.csv", user, month)
}

// Archive uploads the CSV of m and returns the object URI.
func (a *Archiver) Archive(ctx context.Context, user string, m *Monthly) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, m.Transactions); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}
	uri, err := a.storage.Upload(ctx, ObjectName(user, m.Month), "text/csv", &buf)
	if err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}
	return uri, nil
}

// Fetch downloads the archived export of user for month.
func (a *Archiver) Fetch(ctx context.Context, user, month string) ([]byte, error) {
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	data, err := a.storage.Download(ctx, ObjectName(user, month))
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}
