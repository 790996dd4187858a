package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory Remote that can be switched into failure.
type fakeRemote struct {
	byUser map[string][]domain.Transaction
	err    error
	calls  []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{byUser: make(map[string][]domain.Transaction)}
}

func (f *fakeRemote) Name() string { return "fake" }

func (f *fakeRemote) List(ctx context.Context, user string) ([]domain.Transaction, error) {
	f.calls = append(f.calls, "list")
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Transaction(nil), f.byUser[user]...), nil
}

func (f *fakeRemote) Insert(ctx context.Context, user string, txs ...domain.Transaction) error {
	f.calls = append(f.calls, "insert")
	if f.err != nil {
		return f.err
	}
	f.byUser[user] = append(append([]domain.Transaction(nil), txs...), f.byUser[user]...)
	return nil
}

func (f *fakeRemote) Update(ctx context.Context, user string, tx domain.Transaction) error {
	f.calls = append(f.calls, "update")
	if f.err != nil {
		return f.err
	}
	for i, existing := range f.byUser[user] {
		if existing.ID == tx.ID {
			f.byUser[user][i] = tx
		}
	}
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, user, id string) error {
	f.calls = append(f.calls, "delete")
	if f.err != nil {
		return f.err
	}
	kept := f.byUser[user][:0]
	for _, tx := range f.byUser[user] {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	f.byUser[user] = kept
	return nil
}

func sample(id, date string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		Amount:      100,
		Category:    "Продукты",
		Description: "Сільпо",
		Date:        date,
		Type:        domain.Expense,
	}
}

func ids(txs []domain.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func TestStore_CreateThenList(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(kv.NewMemory(), remote)

	res, err := s.Create(ctx, "tg_1", sample("a", "2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, Persisted("fake"), res.Persistence)
	assert.Equal(t, []string{"a"}, ids(res.Transactions))

	_, err = s.Create(ctx, "tg_1", sample("b", "2025-03-12"))
	require.NoError(t, err)

	res, err = s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(res.Transactions))
	assert.False(t, res.Persistence.LocalOnly)

	other, err := s.List(ctx, "tg_2")
	require.NoError(t, err)
	assert.Empty(t, other.Transactions)
}

func TestStore_RemoteFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(kv.NewMemory(), remote)

	_, err := s.Create(ctx, "tg_1", sample("a", "2025-03-10"))
	require.NoError(t, err)

	remote.err = errors.New("connection refused")

	res, err := s.Create(ctx, "tg_1", sample("b", "2025-03-11"))
	require.NoError(t, err)
	assert.True(t, res.Persistence.LocalOnly)
	assert.Equal(t, LocalBackend, res.Persistence.Backend)
	assert.Contains(t, res.Persistence.Reason, "connection refused")
	assert.Equal(t, []string{"b", "a"}, ids(res.Transactions))

	res, err = s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.True(t, res.Persistence.LocalOnly)
	assert.Equal(t, []string{"b", "a"}, ids(res.Transactions))
}

func TestStore_IdentityUnresolvedSkipsRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(kv.NewMemory(), remote)

	res, err := s.Create(ctx, "", sample("a", "2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, LocalOnly(ReasonIdentityUnresolved), res.Persistence)
	assert.Empty(t, remote.calls)

	res, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(res.Transactions))
}

func TestStore_NoRemote(t *testing.T) {
	s := New(kv.NewMemory(), nil)
	res, err := s.Create(context.Background(), "tg_1", sample("a", "2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, LocalOnly(ReasonNotConfigured), res.Persistence)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(kv.NewMemory(), remote)

	_, err := s.CreateBatch(ctx, "tg_1", []domain.Transaction{sample("a", "2025-03-10"), sample("b", "2025-03-11")})
	require.NoError(t, err)

	edited := sample("a", "2025-03-10")
	edited.Amount = -250
	edited.Type = ""
	edited.Category = "Кафе"
	res, err := s.Update(ctx, "tg_1", edited)
	require.NoError(t, err)
	assert.False(t, res.Persistence.LocalOnly)
	require.Len(t, res.Transactions, 2)
	got := res.Transactions[1]
	assert.Equal(t, 250.0, got.Amount)
	assert.Equal(t, domain.Expense, got.Type)
	assert.Equal(t, "Кафе", got.Category)
	assert.Equal(t, "Кафе", remote.byUser["tg_1"][0].Category)

	_, err = s.Update(ctx, "tg_1", sample("missing", "2025-03-10"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err = s.Delete(ctx, "tg_1", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(res.Transactions))
	assert.Len(t, remote.byUser["tg_1"], 1)

	_, err = s.Delete(ctx, "tg_1", "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Delete(ctx, "tg_1", "")
	assert.ErrorIs(t, err, domain.ErrInputMissing)
}

func TestStore_ValidationErrors(t *testing.T) {
	s := New(kv.NewMemory(), newFakeRemote())

	bad := sample("a", "14.03.2025")
	_, err := s.Create(context.Background(), "tg_1", bad)
	assert.ErrorIs(t, err, domain.ErrInputMissing)

	bad = sample("", "2025-03-14")
	_, err = s.CreateBatch(context.Background(), "tg_1", []domain.Transaction{sample("ok", "2025-03-14"), bad})
	assert.ErrorIs(t, err, domain.ErrInputMissing)

	res, err := s.List(context.Background(), "tg_1")
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
}

func TestStore_ListPrefersRemoteAndRefreshesCache(t *testing.T) {
	ctx := context.Background()
	local := kv.NewMemory()
	remote := newFakeRemote()
	remote.byUser["tg_1"] = []domain.Transaction{sample("r1", "2025-03-01"), sample("r2", "2025-03-05")}
	s := New(local, remote)

	res, err := s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, ids(res.Transactions))

	var cached []domain.Transaction
	found, err := kv.GetJSON(ctx, local, "smart_finance_transactions_v1:tg_1", &cached)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, cached, 2)
}

func TestSortByDate_Stable(t *testing.T) {
	in := []domain.Transaction{sample("x", "2025-03-01"), sample("y", "2025-03-02"), sample("z", "2025-03-01")}
	assert.Equal(t, []string{"y", "x", "z"}, ids(sortByDate(in)))
}

func TestStore_LocalOnlyChangesReachRemoteAfterRecovery(t *testing.T) {
	ctx := context.Background()
	local := kv.NewMemory()
	remote := newFakeRemote()
	s := New(local, remote)

	_, err := s.CreateBatch(ctx, "tg_1", []domain.Transaction{sample("a", "2025-03-10"), sample("c", "2025-03-09")})
	require.NoError(t, err)

	remote.err = errors.New("connection refused")

	res, err := s.Create(ctx, "tg_1", sample("b", "2025-03-11"))
	require.NoError(t, err)
	require.True(t, res.Persistence.LocalOnly)

	edited := sample("a", "2025-03-10")
	edited.Category = "Кафе"
	_, err = s.Update(ctx, "tg_1", edited)
	require.NoError(t, err)

	_, err = s.Delete(ctx, "tg_1", "c")
	require.NoError(t, err)

	remote.err = nil

	res, err = s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.Equal(t, Persisted("fake"), res.Persistence)
	assert.Equal(t, []string{"b", "a"}, ids(res.Transactions))
	assert.Equal(t, "Кафе", res.Transactions[1].Category)

	assert.ElementsMatch(t, []string{"a", "b"}, ids(remote.byUser["tg_1"]))
	for _, tx := range remote.byUser["tg_1"] {
		if tx.ID == "a" {
			assert.Equal(t, "Кафе", tx.Category)
		}
	}

	var pending []pendingOp
	_, err = kv.GetJSON(ctx, local, "smart_finance_pending_v1:tg_1", &pending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A second read must not resend anything.
	remote.calls = nil
	res, err = s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(res.Transactions))
	assert.Equal(t, []string{"list"}, remote.calls)
}

func TestStore_PendingChangesSurviveFailedReplay(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(kv.NewMemory(), remote)

	remote.err = errors.New("timeout")
	_, err := s.Create(ctx, "tg_1", sample("a", "2025-03-10"))
	require.NoError(t, err)

	remote.err = nil
	flaky := &flakyInsertRemote{fakeRemote: remote, err: errors.New("write rejected")}
	s.remote = flaky

	res, err := s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.True(t, res.Persistence.LocalOnly)
	assert.Contains(t, res.Persistence.Reason, "write rejected")
	assert.Equal(t, []string{"a"}, ids(res.Transactions))
	assert.Empty(t, remote.byUser["tg_1"])

	flaky.err = nil
	res, err = s.List(ctx, "tg_1")
	require.NoError(t, err)
	assert.False(t, res.Persistence.LocalOnly)
	assert.Equal(t, []string{"a"}, ids(remote.byUser["tg_1"]))
}

// flakyInsertRemote lists normally but rejects inserts while err is set.
type flakyInsertRemote struct {
	*fakeRemote
	err error
}

func (f *flakyInsertRemote) Insert(ctx context.Context, user string, txs ...domain.Transaction) error {
	if f.err != nil {
		return f.err
	}
	return f.fakeRemote.Insert(ctx, user, txs...)
}
