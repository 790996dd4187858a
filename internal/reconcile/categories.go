package reconcile

import (
	"strings"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// Categories is the vocabulary of labels a user already has.
type Categories struct {
	byKey map[string]string
}

// NewCategories indexes labels by their normalized form. The first spelling
// of a label wins.
func NewCategories(labels []string) *Categories {
	c := &Categories{byKey: make(map[string]string, len(labels))}
	for _, label := range labels {
		key := normalizeCategory(label)
		if key == "" {
			continue
		}
		if _, ok := c.byKey[key]; !ok {
			c.byKey[key] = strings.TrimSpace(label)
		}
	}
	return c
}

// FromTransactions builds the vocabulary from a stored collection.
func FromTransactions(txs []domain.Transaction) *Categories {
	labels := make([]string, 0, len(txs))
	for _, tx := range txs {
		labels = append(labels, tx.Category)
	}
	return NewCategories(labels)
}

// Reconcile returns the stored spelling of label when it matches an existing
// category, otherwise label trimmed. ok reports whether a match was found.
func (c *Categories) Reconcile(label string) (string, bool) {
	if existing, found := c.byKey[normalizeCategory(label)]; found {
		return existing, true
	}
	return strings.TrimSpace(label), false
}

// Len is the number of distinct categories.
func (c *Categories) Len() int {
	return len(c.byKey)
}

// normalizeCategory normalizes a category name for comparison.
// Converts to uppercase, trims and collapses inner whitespace.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
