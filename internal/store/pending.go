package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/dvloznov/smart-finance/internal/logger"
)

// PendingKey is the key/value key of changes the remote has not seen yet.
const PendingKey = "smart_finance_pending_v1"

const (
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
)

// pendingOp is a change recorded while the remote was unreachable.
type pendingOp struct {
	Op  string               `json:"op"`
	Txs []domain.Transaction `json:"txs,omitempty"`
	ID  string               `json:"id,omitempty"`
}

// applyTo returns txs with the change applied.
func (op pendingOp) applyTo(txs []domain.Transaction) []domain.Transaction {
	switch op.Op {
	case opInsert:
		ids := domain.IDs(op.Txs)
		next := make([]domain.Transaction, 0, len(txs)+len(op.Txs))
		next = append(next, op.Txs...)
		for _, tx := range txs {
			if _, replaced := ids[tx.ID]; !replaced {
				next = append(next, tx)
			}
		}
		return next
	case opUpdate:
		next := make([]domain.Transaction, len(txs))
		copy(next, txs)
		for _, tx := range op.Txs {
			if idx := indexOf(next, tx.ID); idx >= 0 {
				next[idx] = tx
			} else {
				next = append([]domain.Transaction{tx}, next...)
			}
		}
		return next
	case opDelete:
		next := make([]domain.Transaction, 0, len(txs))
		for _, tx := range txs {
			if tx.ID != op.ID {
				next = append(next, tx)
			}
		}
		return next
	}
	return txs
}

// replay sends op to the remote. known holds the ids the remote already has:
// those records are updated, the rest are inserted.
func replay(ctx context.Context, r Remote, user string, op pendingOp, known map[string]struct{}) error {
	switch op.Op {
	case opInsert, opUpdate:
		var fresh []domain.Transaction
		for _, tx := range op.Txs {
			if _, ok := known[tx.ID]; ok {
				if err := r.Update(ctx, user, tx); err != nil && !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				continue
			}
			fresh = append(fresh, tx)
		}
		if len(fresh) == 0 {
			return nil
		}
		if err := r.Insert(ctx, user, fresh...); err != nil {
			return err
		}
		for _, tx := range fresh {
			known[tx.ID] = struct{}{}
		}
		return nil
	case opDelete:
		if _, ok := known[op.ID]; !ok {
			return nil
		}
		if err := r.Delete(ctx, user, op.ID); err != nil {
			return err
		}
		delete(known, op.ID)
		return nil
	}
	return fmt.Errorf("replay: unknown op %q", op.Op)
}

// flush replays the user's pending changes onto remote, the collection just
// listed from the remote. It returns the collection with every pending change
// applied and, when some could not be sent, the reason they stay pending.
func (s *Store) flush(ctx context.Context, user string, remote []domain.Transaction) ([]domain.Transaction, string, error) {
	ops, err := s.loadPending(ctx, user)
	if err != nil || len(ops) == 0 {
		return remote, "", err
	}

	known := domain.IDs(remote)
	sent := 0
	reason := ""
	for _, op := range ops {
		if err := replay(ctx, s.remote, user, op, known); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().
				Err(err).
				Str("backend", s.remote.Name()).
				Str("op", op.Op).
				Int("pending", len(ops)-sent).
				Msg("Remote store failed, keeping pending changes")
			reason = remoteReason(s.remote.Name(), op.Op, err)
			break
		}
		sent++
	}
	if sent > 0 {
		log := logger.FromContext(ctx)
		log.Info().
			Str("backend", s.remote.Name()).
			Int("sent", sent).
			Int("pending", len(ops)-sent).
			Msg("Replayed local changes to remote store")
	}

	txs := remote
	for _, op := range ops {
		txs = op.applyTo(txs)
	}
	if sent > 0 {
		if err := s.savePending(ctx, user, ops[sent:]); err != nil {
			return nil, "", err
		}
	}
	return txs, reason, nil
}

// deferOp records op for the next reachable snapshot.
func (s *Store) deferOp(ctx context.Context, user string, op pendingOp) error {
	if op.Op == opInsert && len(op.Txs) == 0 {
		return nil
	}
	ops, err := s.loadPending(ctx, user)
	if err != nil {
		return err
	}
	return s.savePending(ctx, user, append(ops, op))
}

func (s *Store) loadPending(ctx context.Context, user string) ([]pendingOp, error) {
	var ops []pendingOp
	if _, err := kv.GetJSON(ctx, s.local, kv.UserKey(PendingKey, user), &ops); err != nil {
		return nil, fmt.Errorf("loadPending: %w", err)
	}
	return ops, nil
}

func (s *Store) savePending(ctx context.Context, user string, ops []pendingOp) error {
	if ops == nil {
		ops = []pendingOp{}
	}
	if err := kv.SetJSON(ctx, s.local, kv.UserKey(PendingKey, user), ops); err != nil {
		return fmt.Errorf("savePending: %w", err)
	}
	return nil
}
