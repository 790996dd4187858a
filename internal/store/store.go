// Package store keeps a user's transactions in a remote backend when one is
// reachable and always mirrors them in a local key/value cache.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/dvloznov/smart-finance/internal/logger"
)

// LocalKey is the key/value key of the cached collection.
const LocalKey = "smart_finance_transactions_v1"

// LocalBackend names the key/value cache in a Persistence result.
const LocalBackend = "local"

const (
	ReasonIdentityUnresolved = "user identity unresolved"
	ReasonNotConfigured      = "remote store not configured"
)

// Remote is a durable transaction backend scoped by user.
type Remote interface {
	Name() string
	List(ctx context.Context, user string) ([]domain.Transaction, error)
	Insert(ctx context.Context, user string, txs ...domain.Transaction) error
	Update(ctx context.Context, user string, tx domain.Transaction) error
	Delete(ctx context.Context, user, id string) error
}

// Persistence says where the last operation was durably recorded.
type Persistence struct {
	Backend   string `json:"backend"`
	LocalOnly bool   `json:"localOnly"`
	Reason    string `json:"reason,omitempty"`
}

// Persisted reports a successful remote write or read.
func Persisted(backend string) Persistence {
	return Persistence{Backend: backend}
}

// LocalOnly reports that only the local cache was used.
func LocalOnly(reason string) Persistence {
	return Persistence{Backend: LocalBackend, LocalOnly: true, Reason: reason}
}

// Result is the collection after an operation plus how it was persisted.
type Result struct {
	Transactions []domain.Transaction `json:"transactions"`
	Persistence  Persistence          `json:"persistence"`
}

// Store combines the local cache with an optional remote.
type Store struct {
	local  kv.Store
	remote Remote

	// mu serializes read-modify-write cycles on the local cache.
	mu sync.Mutex
}

// New creates a store. remote may be nil.
func New(local kv.Store, remote Remote) *Store {
	return &Store{local: local, remote: remote}
}

// List returns the user's transactions, newest first.
func (s *Store) List(ctx context.Context, user string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, p, err := s.snapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Result{Transactions: sortByDate(txs), Persistence: p}, nil
}

// Create stores one transaction.
func (s *Store) Create(ctx context.Context, user string, tx domain.Transaction) (*Result, error) {
	return s.CreateBatch(ctx, user, []domain.Transaction{tx})
}

// CreateBatch stores txs in one remote call. Every record is validated
// before anything is written.
func (s *Store) CreateBatch(ctx context.Context, user string, txs []domain.Transaction) (*Result, error) {
	batch := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx = domain.Normalize(tx)
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("CreateBatch: %s: %w", tx.ID, err)
		}
		batch = append(batch, tx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, snap, err := s.snapshot(ctx, user)
	if err != nil {
		return nil, err
	}

	p, err := s.remoteWrite(ctx, user, snap, pendingOp{Op: opInsert, Txs: batch}, func(r Remote) error {
		if len(batch) == 0 {
			return nil
		}
		return r.Insert(ctx, user, batch...)
	})
	if err != nil {
		return nil, err
	}

	ids := domain.IDs(batch)
	next := make([]domain.Transaction, 0, len(current)+len(batch))
	next = append(next, batch...)
	for _, tx := range current {
		if _, replaced := ids[tx.ID]; !replaced {
			next = append(next, tx)
		}
	}
	if err := s.saveLocal(ctx, user, next); err != nil {
		return nil, err
	}
	return &Result{Transactions: sortByDate(next), Persistence: p}, nil
}

// Update replaces the record with tx.ID. An unknown id is domain.ErrNotFound.
func (s *Store) Update(ctx context.Context, user string, tx domain.Transaction) (*Result, error) {
	tx = domain.Normalize(tx)
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, snap, err := s.snapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	idx := indexOf(current, tx.ID)
	if idx < 0 {
		return nil, fmt.Errorf("Update: %s: %w", tx.ID, domain.ErrNotFound)
	}

	p, err := s.remoteWrite(ctx, user, snap, pendingOp{Op: opUpdate, Txs: []domain.Transaction{tx}}, func(r Remote) error {
		return r.Update(ctx, user, tx)
	})
	if err != nil {
		return nil, err
	}

	next := make([]domain.Transaction, len(current))
	copy(next, current)
	next[idx] = tx
	if err := s.saveLocal(ctx, user, next); err != nil {
		return nil, err
	}
	return &Result{Transactions: sortByDate(next), Persistence: p}, nil
}

// Delete removes the record with id. An unknown id is domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, user, id string) (*Result, error) {
	if id == "" {
		return nil, fmt.Errorf("Delete: id: %w", domain.ErrInputMissing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, snap, err := s.snapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	if indexOf(current, id) < 0 {
		return nil, fmt.Errorf("Delete: %s: %w", id, domain.ErrNotFound)
	}

	p, err := s.remoteWrite(ctx, user, snap, pendingOp{Op: opDelete, ID: id}, func(r Remote) error {
		return r.Delete(ctx, user, id)
	})
	if err != nil {
		return nil, err
	}

	next := make([]domain.Transaction, 0, len(current))
	for _, tx := range current {
		if tx.ID != id {
			next = append(next, tx)
		}
	}
	if err := s.saveLocal(ctx, user, next); err != nil {
		return nil, err
	}
	return &Result{Transactions: sortByDate(next), Persistence: p}, nil
}

// unavailable returns the reason the remote cannot be used for user, or "".
func (s *Store) unavailable(user string) string {
	if s.remote == nil {
		return ReasonNotConfigured
	}
	if user == "" {
		return ReasonIdentityUnresolved
	}
	return ""
}

// snapshot reads the remote collection when possible, replays changes made
// while it was unreachable and refreshes the cache. Otherwise it returns the
// cache. The result is local-only while any change is still pending.
func (s *Store) snapshot(ctx context.Context, user string) ([]domain.Transaction, Persistence, error) {
	if reason := s.unavailable(user); reason != "" {
		txs, err := s.loadLocal(ctx, user)
		return txs, LocalOnly(reason), err
	}

	remote, err := s.remote.List(ctx, user)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("backend", s.remote.Name()).
			Str("op", "list").
			Msg("Remote store failed, using local cache")
		txs, lerr := s.loadLocal(ctx, user)
		return txs, LocalOnly(remoteReason(s.remote.Name(), "list", err)), lerr
	}

	txs := make([]domain.Transaction, 0, len(remote))
	for _, tx := range remote {
		txs = append(txs, domain.Normalize(tx))
	}
	txs, reason, err := s.flush(ctx, user, txs)
	if err != nil {
		return nil, Persistence{}, err
	}
	if err := s.saveLocal(ctx, user, txs); err != nil {
		return nil, Persistence{}, err
	}
	if reason != "" {
		return txs, LocalOnly(reason), nil
	}
	return txs, Persisted(s.remote.Name()), nil
}

// remoteWrite sends a change to the remote. When the remote is down, or
// earlier changes are still pending, op is queued for the next snapshot.
func (s *Store) remoteWrite(ctx context.Context, user string, snap Persistence, op pendingOp, write func(Remote) error) (Persistence, error) {
	if reason := s.unavailable(user); reason != "" {
		return LocalOnly(reason), nil
	}
	if snap.LocalOnly {
		if err := s.deferOp(ctx, user, op); err != nil {
			return Persistence{}, err
		}
		return snap, nil
	}
	if err := write(s.remote); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("backend", s.remote.Name()).
			Str("op", op.Op).
			Msg("Remote store failed, keeping change locally")
		if err := s.deferOp(ctx, user, op); err != nil {
			return Persistence{}, err
		}
		return LocalOnly(remoteReason(s.remote.Name(), op.Op, err)), nil
	}
	return Persisted(s.remote.Name()), nil
}

func (s *Store) loadLocal(ctx context.Context, user string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if _, err := kv.GetJSON(ctx, s.local, kv.UserKey(LocalKey, user), &txs); err != nil {
		return nil, fmt.Errorf("loadLocal: %w", err)
	}
	for i := range txs {
		txs[i] = domain.Normalize(txs[i])
	}
	return txs, nil
}

func (s *Store) saveLocal(ctx context.Context, user string, txs []domain.Transaction) error {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	if err := kv.SetJSON(ctx, s.local, kv.UserKey(LocalKey, user), txs); err != nil {
		return fmt.Errorf("saveLocal: %w", err)
	}
	return nil
}

func remoteReason(backend, op string, err error) string {
	return fmt.Sprintf("%s %s failed: %v", backend, op, err)
}

func indexOf(txs []domain.Transaction, id string) int {
	for i, tx := range txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

// sortByDate returns a copy ordered by date, newest first. Records on the
// same day keep their relative order.
func sortByDate(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}
