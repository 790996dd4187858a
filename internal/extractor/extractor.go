// Package extractor turns a free-text chat message into a structured
// transaction, either through a language model or through local rules.
package extractor

import (
	"context"
	"strings"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// Extractor recognizes one transaction in free text. A nil result with a nil
// error means nothing usable was found and the user should rephrase.
type Extractor interface {
	Extract(ctx context.Context, text string, known []string) (*domain.ParsedTransaction, error)
}

// Vocabulary returns the distinct categories used in txs, compared
// case-insensitively. The first spelling wins and order is preserved.
func Vocabulary(txs []domain.Transaction) []string {
	labels := make([]string, 0, len(txs))
	for _, tx := range txs {
		labels = append(labels, tx.Category)
	}
	return DedupCategories(labels)
}

// DedupCategories removes empty and case-insensitive duplicate labels.
func DedupCategories(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		key := strings.ToLower(label)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, label)
	}
	return out
}
