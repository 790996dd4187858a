package report

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	res *store.Result
	err error
}

func (f *fakeLister) List(ctx context.Context, user string) (*store.Result, error) {
	return f.res, f.err
}

type fakeNotifier struct {
	texts []string
	docs  []string
	err   error
}

func (f *fakeNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	f.docs = append(f.docs, name)
	return nil
}

func TestService_SendMonthly(t *testing.T) {
	lister := &fakeLister{res: &store.Result{Transactions: fixture()}}
	notifier := &fakeNotifier{}
	storage := &fakeStorage{}
	s := NewService(lister, notifier, NewArchiver(storage))

	require.NoError(t, s.SendMonthly(context.Background(), "tg_42", "2025-03"))
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "Отчёт за 2025-03")
	assert.Equal(t, []string{"2025-03.csv"}, notifier.docs)
	assert.Equal(t, "reports/tg_42/2025-03.csv", storage.name)
}

func TestService_SendMonthly_EmptyMonth(t *testing.T) {
	notifier := &fakeNotifier{}
	s := NewService(&fakeLister{res: &store.Result{Transactions: fixture()}}, notifier, nil)

	require.NoError(t, s.SendMonthly(context.Background(), "tg_42", "2020-01"))
	assert.Empty(t, notifier.texts)
}

func TestService_SendMonthly_Errors(t *testing.T) {
	ctx := context.Background()

	s := NewService(&fakeLister{err: errors.New("kv down")}, nil, nil)
	assert.Error(t, s.SendMonthly(ctx, "tg_42", "2025-03"))

	s = NewService(&fakeLister{res: &store.Result{Transactions: fixture()}}, &fakeNotifier{}, nil)
	assert.Error(t, s.SendMonthly(ctx, "local", "2025-03"))

	s = NewService(&fakeLister{res: &store.Result{Transactions: fixture()}}, &fakeNotifier{err: errors.New("blocked")}, nil)
	assert.Error(t, s.SendMonthly(ctx, "tg_42", "2025-03"))

	storage := &fakeStorage{err: errors.New("forbidden")}
	s = NewService(&fakeLister{res: &store.Result{Transactions: fixture()}}, &fakeNotifier{}, NewArchiver(storage))
	assert.NoError(t, s.SendMonthly(ctx, "tg_42", "2025-03"))
}

func TestService_Archived(t *testing.T) {
	lister := &fakeLister{res: &store.Result{Transactions: fixture()}}
	storage := &fakeStorage{}
	s := NewService(lister, &fakeNotifier{}, NewArchiver(storage))

	require.NoError(t, s.SendMonthly(context.Background(), "tg_42", "2025-03"))

	data, err := s.Archived(context.Background(), "tg_42", "2025-03")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = NewService(lister, nil, nil).Archived(context.Background(), "tg_42", "2025-03")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
