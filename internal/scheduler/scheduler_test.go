package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dvloznov/smart-finance/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users []string
	err   error
}

func (f fakeUsers) AutoSyncUsers(ctx context.Context) ([]string, error) {
	return f.users, f.err
}

type fakePublisher struct {
	published []*jobs.SyncJob
	err       error
}

func (f *fakePublisher) PublishSync(ctx context.Context, job *jobs.SyncJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeReporter struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeReporter) SendMonthly(ctx context.Context, user, month string) error {
	f.calls = append(f.calls, user+"@"+month)
	if f.fail[user] {
		return errors.New("blocked")
	}
	return nil
}

func quiet() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestNew_Schedules(t *testing.T) {
	s, err := New(Config{SyncSchedule: DefaultSyncSchedule, ReportSchedule: DefaultReportSchedule}, fakeUsers{}, &fakePublisher{}, &fakeReporter{}, quiet())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s, err = New(Config{SyncSchedule: DefaultSyncSchedule, ReportSchedule: DefaultReportSchedule}, fakeUsers{}, &fakePublisher{}, nil, quiet())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)

	_, err = New(Config{SyncSchedule: "every now and then"}, fakeUsers{}, &fakePublisher{}, nil, quiet())
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(Config{SyncSchedule: DefaultSyncSchedule}, fakeUsers{}, &fakePublisher{}, nil, quiet())
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_RunSync(t *testing.T) {
	pub := &fakePublisher{}
	s, err := New(Config{SyncDays: 7}, fakeUsers{users: []string{"tg_1", "tg_2"}}, pub, nil, quiet())
	require.NoError(t, err)

	n, err := s.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.published, 2)
	assert.Equal(t, "tg_1", pub.published[0].UserID)
	assert.Equal(t, 7, pub.published[0].Days)
	assert.Equal(t, jobs.TriggerSchedule, pub.published[0].Trigger)

	s.publisher = &fakePublisher{err: errors.New("queue is closed")}
	_, err = s.RunSync(context.Background())
	assert.Error(t, err)

	s.users = fakeUsers{err: errors.New("kv down")}
	_, err = s.RunSync(context.Background())
	assert.Error(t, err)
}

func TestScheduler_RunReports(t *testing.T) {
	rep := &fakeReporter{fail: map[string]bool{"tg_2": true}}
	s, err := New(Config{}, fakeUsers{users: []string{"tg_1", "tg_2", "tg_3"}}, &fakePublisher{}, rep, quiet())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC) }

	n, err := s.RunReports(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"tg_1@2025-03", "tg_2@2025-03", "tg_3@2025-03"}, rep.calls)
}
