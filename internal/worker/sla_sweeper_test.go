package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository/memory"
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
)

type countingFlagger struct {
	calls   atomic.Int32
	flagged int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *countingFlagger) FlagBreaches(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.flagged, f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	released int
	err      error
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func TestRunOnce_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	flagger := &countingFlagger{flagged: 3}
	sweeper := NewSLASweeper(flagger, nil, metrics, zap.NewNop(), SweeperConfig{})

	flagged, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, flagged)

	flagger.err = errors.New("db down")
	_, err = sweeper.RunOnce(context.Background())
	assert.Error(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Sweeps.Runs)
	assert.Equal(t, int64(1), snap.Sweeps.Failures)
	assert.Equal(t, int64(6), snap.Sweeps.Flagged)
}

func TestRunOnce_NoOverlapInProcess(t *testing.T) {
	flagger := &countingFlagger{block: make(chan struct{}), started: make(chan struct{}, 1)}
	sweeper := NewSLASweeper(flagger, nil, nil, zap.NewNop(), SweeperConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := sweeper.RunOnce(context.Background())
		done <- err
	}()
	<-flagger.started

	_, err := sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(flagger.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), flagger.calls.Load())
}

func TestRunOnce_SharedLock(t *testing.T) {
	locker := &fakeLocker{}
	metrics := observability.NewMetrics()
	flagger := &countingFlagger{}
	sweeper := NewSLASweeper(flagger, locker, metrics, zap.NewNop(), SweeperConfig{})

	_, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)

	locker.held = true
	_, err = sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Equal(t, int32(1), flagger.calls.Load())
	assert.Equal(t, int64(1), metrics.Snapshot().Sweeps.Skipped)

	locker.held = false
	locker.err = errors.New("redis unreachable")
	_, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err, "an unreachable lock does not stop the sweep")
	assert.Equal(t, int32(2), flagger.calls.Load())
}

func TestRunOnce_Timeout(t *testing.T) {
	flagger := &countingFlagger{block: make(chan struct{})}
	sweeper := NewSLASweeper(flagger, nil, nil, zap.NewNop(), SweeperConfig{Timeout: 20 * time.Millisecond})

	_, err := sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	flagger := &countingFlagger{}
	sweeper := NewSLASweeper(flagger, nil, nil, zap.NewNop(), SweeperConfig{Interval: time.Hour})

	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Start(context.Background()), "second start is a no-op")

	assert.Eventually(t, func() bool { return flagger.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sweeper.Stop())
	require.NoError(t, sweeper.Stop())
	assert.Equal(t, int32(1), flagger.calls.Load())
}

func TestStop_CancelsInFlightPass(t *testing.T) {
	flagger := &countingFlagger{block: make(chan struct{}), started: make(chan struct{}, 1)}
	sweeper := NewSLASweeper(flagger, nil, nil, zap.NewNop(), SweeperConfig{Interval: time.Hour, Timeout: time.Hour})

	require.NoError(t, sweeper.Start(context.Background()))
	select {
	case <-flagger.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never started")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- sweeper.Stop() }()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestSweeper_FlagsOverdueTickets(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		HistoryRepo: store.History(),
		Clock:       clock,
	})

	critical := domain.PriorityCritical
	ctx := context.Background()
	ticket, err := svc.CreateTicket(ctx, domain.Actor{ID: 1}, service.TicketCreateInput{
		Title: "Outage", Description: "Site down", CategoryID: 1, PriorityID: &critical,
	})
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(8*time.Hour + time.Minute)
	mu.Unlock()

	sweeper := NewSLASweeper(svc, &fakeLocker{}, nil, zap.NewNop(), SweeperConfig{})
	flagged, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	got, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, got.SLA.Breached)

	flagged, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, flagged)
}
