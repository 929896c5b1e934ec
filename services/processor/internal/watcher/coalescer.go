// Package watcher turns staging insert notifications into reconciliation
// passes: at most one pass runs, and bursts collapse into one follow-up.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/metrics"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/staging"
)

const defaultReconnectInterval = 5 * time.Second

// RunState is the pass state of a Coalescer.
type RunState string

const (
	StateIdle               RunState = "idle"
	StateRunning            RunState = "running"
	StateRunningWithPending RunState = "running-with-pending"
)

// FeedState reports whether the change feed is subscribed.
type FeedState string

const (
	FeedConnected    FeedState = "connected"
	FeedDisconnected FeedState = "disconnected"
)

// Source opens insert subscriptions.
type Source interface {
	WatchInserts(ctx context.Context) (staging.Feed, error)
}

// Runner performs one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// Coalescer drives a Runner from change notifications.
type Coalescer struct {
	source  Source
	runner  Runner
	backoff backoff.BackOff
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   RunState
	feed    FeedState
	baseCtx context.Context
	runs    sync.WaitGroup
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithReconnectInterval sets the fixed wait before re-subscribing.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Coalescer) {
		c.backoff = backoff.NewConstantBackOff(d)
	}
}

// WithBackOff sets the re-subscription policy.
func WithBackOff(b backoff.BackOff) Option {
	return func(c *Coalescer) {
		c.backoff = b
	}
}

// WithLogger sets the coalescer logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coalescer) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coalescer) {
		c.metrics = m
	}
}

// New creates an idle, disconnected Coalescer.
func New(source Source, runner Runner, opts ...Option) *Coalescer {
	c := &Coalescer{
		source:  source,
		runner:  runner,
		backoff: backoff.NewConstantBackOff(defaultReconnectInterval),
		state:   StateIdle,
		feed:    FeedDisconnected,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger).Named("watcher")
	return c
}

// State reports the current pass and feed state.
func (c *Coalescer) State() (RunState, FeedState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.feed
}

// Notify requests a pass. It never blocks on the pass itself.
func (c *Coalescer) Notify() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle:
		c.state = StateRunning
		c.runs.Add(1)
		go c.loop(c.baseCtx)
	case StateRunning:
		c.state = StateRunningWithPending
	case StateRunningWithPending:
		// a follow-up is already queued
	}
}

// Wait blocks until no pass is in flight.
func (c *Coalescer) Wait() {
	c.runs.Wait()
}

func (c *Coalescer) loop(ctx context.Context) {
	defer c.runs.Done()

	for {
		if _, err := c.runner.Run(ctx); err != nil {
			c.logger.Error("sync run failed", zap.Error(err))
		}

		c.mu.Lock()
		if c.state == StateRunningWithPending {
			c.state = StateRunning
			c.mu.Unlock()
			continue
		}
		c.state = StateIdle
		c.mu.Unlock()
		return
	}
}

// Start subscribes to inserts and keeps the subscription alive until ctx is
// done. Passes started from here are not cancelled with ctx; call Wait to
// let them finish.
func (c *Coalescer) Start(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	for {
		feed, err := c.source.WatchInserts(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("change feed subscribe failed", zap.Error(err))
			if !c.pause(ctx) {
				return nil
			}
			continue
		}

		c.setFeed(FeedConnected)
		c.backoff.Reset()
		c.logger.Info("change feed connected")

		err = c.consume(ctx, feed)
		if closeErr := feed.Close(); closeErr != nil {
			c.logger.Debug("change feed close", zap.Error(closeErr))
		}
		c.setFeed(FeedDisconnected)

		if ctx.Err() != nil {
			c.logger.Info("change feed stopped")
			return nil
		}
		c.logger.Warn("change feed lost", zap.Error(err))
		if !c.pause(ctx) {
			return nil
		}
	}
}

func (c *Coalescer) consume(ctx context.Context, feed staging.Feed) error {
	events := feed.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return staging.ErrFeedClosed
			}
			if ev.Err != nil {
				return ev.Err
			}
			c.Notify()
		}
	}
}

func (c *Coalescer) setFeed(s FeedState) {
	c.mu.Lock()
	c.feed = s
	c.mu.Unlock()
	c.metrics.SetFeedConnected(s == FeedConnected)
}

// pause waits out the re-subscription interval. It reports false when ctx
// ended first.
func (c *Coalescer) pause(ctx context.Context) bool {
	c.metrics.IncFeedReconnect()
	d := c.backoff.NextBackOff()
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
