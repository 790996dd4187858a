// Package reconcile matches incoming transactions against the stored
// collection: id based de-duplication and category reconciliation.
package reconcile

import "github.com/dvloznov/smart-finance/internal/domain"

// FilterNew returns the incoming records whose id is neither in existing nor
// repeated earlier in incoming. Order of incoming is kept.
func FilterNew(existing, incoming []domain.Transaction) []domain.Transaction {
	seen := domain.IDs(existing)
	fresh := make([]domain.Transaction, 0, len(incoming))
	for _, tx := range incoming {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		fresh = append(fresh, tx)
	}
	return fresh
}

// Merge prepends fresh records to existing, newest first.
func Merge(existing, fresh []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(existing)+len(fresh))
	out = append(out, fresh...)
	return append(out, existing...)
}
