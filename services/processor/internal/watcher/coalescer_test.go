package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/staging"
)

const waitFor = 2 * time.Second

// gatedRunner blocks every pass until release is signalled.
type gatedRunner struct {
	release   chan struct{}
	started   chan struct{}
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	ctxErrs   atomic.Int32
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{release: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (r *gatedRunner) Run(ctx context.Context) (*models.RunSummary, error) {
	r.calls.Add(1)
	n := r.active.Add(1)
	for {
		old := r.maxActive.Load()
		if n <= old || r.maxActive.CompareAndSwap(old, n) {
			break
		}
	}
	r.started <- struct{}{}
	<-r.release
	if ctx.Err() != nil {
		r.ctxErrs.Add(1)
	}
	r.active.Add(-1)
	return &models.RunSummary{}, nil
}

func waitStarted(t *testing.T, r *gatedRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(waitFor):
		t.Fatal("run did not start")
	}
}

func runState(c *Coalescer) RunState {
	s, _ := c.State()
	return s
}

func TestCoalescerSingleFollowUp(t *testing.T) {
	t.Parallel()

	r := newGatedRunner()
	c := New(nil, r)

	assert.Equal(t, StateIdle, runState(c))

	c.Notify()
	waitStarted(t, r)
	assert.Equal(t, StateRunning, runState(c))

	c.Notify()
	assert.Equal(t, StateRunningWithPending, runState(c))
	c.Notify()
	c.Notify()
	assert.Equal(t, StateRunningWithPending, runState(c))

	r.release <- struct{}{}
	waitStarted(t, r)
	assert.Equal(t, StateRunning, runState(c))

	r.release <- struct{}{}
	c.Wait()

	assert.Equal(t, StateIdle, runState(c))
	assert.Equal(t, int32(2), r.calls.Load())
	assert.Equal(t, int32(1), r.maxActive.Load())
}

func TestCoalescerIdleAfterSingleRun(t *testing.T) {
	t.Parallel()

	r := newGatedRunner()
	c := New(nil, r)

	c.Notify()
	waitStarted(t, r)
	r.release <- struct{}{}
	c.Wait()

	assert.Equal(t, StateIdle, runState(c))
	assert.Equal(t, int32(1), r.calls.Load())

	c.Notify()
	waitStarted(t, r)
	r.release <- struct{}{}
	c.Wait()
	assert.Equal(t, int32(2), r.calls.Load())
}

type fakeFeed struct {
	events chan models.ChangeEvent
	closed atomic.Bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan models.ChangeEvent, 4)}
}

func (f *fakeFeed) Events() <-chan models.ChangeEvent { return f.events }

func (f *fakeFeed) Close() error {
	f.closed.Store(true)
	return nil
}

// scriptedSource hands out one scripted result per WatchInserts call and
// then blocks until ctx is done.
type scriptedSource struct {
	mu      sync.Mutex
	results []any // *fakeFeed or error
	calls   int
}

func (s *scriptedSource) WatchInserts(ctx context.Context) (staging.Feed, error) {
	s.mu.Lock()
	s.calls++
	var next any
	if len(s.results) > 0 {
		next, s.results = s.results[0], s.results[1:]
	}
	s.mu.Unlock()

	switch v := next.(type) {
	case *fakeFeed:
		return v, nil
	case error:
		return nil, v
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCoalescerReconnects(t *testing.T) {
	t.Parallel()

	first := newFakeFeed()
	second := newFakeFeed()
	src := &scriptedSource{results: []any{errors.New("no replica set"), first, second}}
	r := newGatedRunner()
	c := New(src, r, WithReconnectInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	first.events <- models.ChangeEvent{DocumentID: "a"}
	waitStarted(t, r)

	first.events <- models.ChangeEvent{Err: errors.New("resume token expired")}
	require.Eventually(t, first.closed.Load, waitFor, time.Millisecond)

	require.Eventually(t, func() bool {
		_, feed := c.State()
		return src.callCount() == 3 && feed == FeedConnected
	}, waitFor, time.Millisecond)

	second.events <- models.ChangeEvent{DocumentID: "b"}
	require.Eventually(t, func() bool { return runState(c) == StateRunningWithPending }, waitFor, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, second.closed.Load())
	_, feed := c.State()
	assert.Equal(t, FeedDisconnected, feed)

	// in-flight passes outlive the subscription context
	r.release <- struct{}{}
	waitStarted(t, r)
	r.release <- struct{}{}
	c.Wait()
	assert.Equal(t, int32(2), r.calls.Load())
	assert.Zero(t, r.ctxErrs.Load())
}

func TestCoalescerTreatsClosedFeedAsLost(t *testing.T) {
	t.Parallel()

	first := newFakeFeed()
	close(first.events)
	src := &scriptedSource{results: []any{first}}
	c := New(src, newGatedRunner(), WithReconnectInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return src.callCount() == 2 }, waitFor, time.Millisecond)
	assert.True(t, first.closed.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestRunSchedule(t *testing.T) {
	t.Parallel()

	err := RunSchedule(context.Background(), "every day", NotifierFunc(func() {}), nil)
	assert.ErrorContains(t, err, "invalid sync schedule")

	if testing.Short() {
		t.Skip("skipping cron timing test in short mode")
	}

	var hits atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunSchedule(ctx, "@every 1s", NotifierFunc(func() { hits.Add(1) }), nil)
	}()

	assert.Eventually(t, func() bool { return hits.Load() > 0 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
