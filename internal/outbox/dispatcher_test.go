package outbox

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Test fakes
// ============================================

type fakeRepo struct {
	due []Event

	SentIDs   []int64
	FailedIDs []int64
	DeadIDs   []int64
	NextTimes []time.Time
}

func (f *fakeRepo) ClaimDue(_ context.Context, limit int) ([]Event, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeRepo) MarkSent(_ context.Context, id int64) error {
	f.SentIDs = append(f.SentIDs, id)
	return nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, id int64, nextAttempt time.Time, _ string) error {
	f.FailedIDs = append(f.FailedIDs, id)
	f.NextTimes = append(f.NextTimes, nextAttempt)
	return nil
}

func (f *fakeRepo) MarkDead(_ context.Context, id int64, _ string) error {
	f.DeadIDs = append(f.DeadIDs, id)
	return nil
}

type fakePublisher struct {
	err  error
	Keys []string
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.Keys = append(f.Keys, key)
	return nil
}

func newTestDispatcher(repo *fakeRepo, pub *fakePublisher) *Dispatcher {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewDispatcher(repo, pub, log)
}

// ============================================
// DispatchOnce Tests
// ============================================

func TestDispatcher_PublishesAndMarksSent(t *testing.T) {
	repo := &fakeRepo{due: []Event{
		{ID: 1, EventType: "order.placed", AggregateID: "order-1", Attempts: 1},
		{ID: 2, EventType: "order.placed", AggregateID: "order-2", Attempts: 1},
	}}
	pub := &fakePublisher{}

	err := newTestDispatcher(repo, pub).DispatchOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"order-1", "order-2"}, pub.Keys)
	assert.Equal(t, []int64{1, 2}, repo.SentIDs)
	assert.Empty(t, repo.FailedIDs)
	assert.Empty(t, repo.DeadIDs)
}

func TestDispatcher_PublishFailureSchedulesRetry(t *testing.T) {
	repo := &fakeRepo{due: []Event{{ID: 1, AggregateID: "order-1", Attempts: 1}}}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	d := newTestDispatcher(repo, pub)

	before := time.Now()
	err := d.DispatchOnce(context.Background())

	require.NoError(t, err, "a publish failure is handled, not propagated")
	assert.Empty(t, repo.SentIDs)
	require.Equal(t, []int64{1}, repo.FailedIDs)

	// First retry is scheduled one initial-backoff step out.
	next := repo.NextTimes[0]
	assert.WithinDuration(t, before.Add(d.InitialBackoff), next, time.Second)
}

func TestDispatcher_BackoffDoublesPerAttempt(t *testing.T) {
	d := newTestDispatcher(&fakeRepo{}, &fakePublisher{})

	assert.Equal(t, d.InitialBackoff, d.backoff(1))
	assert.Equal(t, 2*d.InitialBackoff, d.backoff(2))
	assert.Equal(t, 8*d.InitialBackoff, d.backoff(4))
}

func TestDispatcher_DeadLettersAfterMaxAttempts(t *testing.T) {
	pub := &fakePublisher{}
	repo := &fakeRepo{due: []Event{{ID: 7, AggregateID: "order-7", Attempts: 11}}}
	d := newTestDispatcher(repo, pub)
	d.MaxAttempts = 10

	err := d.DispatchOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{7}, repo.DeadIDs)
	assert.Empty(t, pub.Keys, "dead events are not published")
}

func TestDispatcher_HonorsBatchSize(t *testing.T) {
	var due []Event
	for i := int64(1); i <= 10; i++ {
		due = append(due, Event{ID: i, AggregateID: "order", Attempts: 1})
	}
	repo := &fakeRepo{due: due}
	pub := &fakePublisher{}
	d := newTestDispatcher(repo, pub)
	d.BatchSize = 3

	require.NoError(t, d.DispatchOnce(context.Background()))
	assert.Len(t, repo.SentIDs, 3)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	repo := &fakeRepo{}
	d := newTestDispatcher(repo, &fakePublisher{})
	d.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
