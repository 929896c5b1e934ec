package staging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

// ErrFeedClosed is delivered when the server ends a change stream without
// reporting an error.
var ErrFeedClosed = errors.New("change stream closed")

// Feed is a live insert subscription. Events is closed after the stream ends;
// the last event carries Err when the end was not requested through Close.
type Feed interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// changeStream is the subset of *mongo.ChangeStream used by a subscription.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type insertEvent struct {
	DocumentKey struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
}

type subscription struct {
	events chan models.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func newSubscription(ctx context.Context, cs changeStream) *subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		events: make(chan models.ChangeEvent, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(ctx, cs)
	return s
}

func (s *subscription) Events() <-chan models.ChangeEvent {
	return s.events
}

// Close stops the stream and waits for the pump goroutine to exit.
func (s *subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return s.err
}

func (s *subscription) pump(ctx context.Context, cs changeStream) {
	defer close(s.done)
	defer close(s.events)
	defer func() {
		if err := cs.Close(context.WithoutCancel(ctx)); err != nil {
			s.err = fmt.Errorf("close change stream: %w", err)
		}
	}()

	for cs.Next(ctx) {
		var ev insertEvent
		ce := models.ChangeEvent{}
		if err := cs.Decode(&ev); err != nil {
			ce.Err = fmt.Errorf("decode change event: %w", err)
		} else {
			ce.DocumentID = ev.DocumentKey.ID
		}
		if !s.send(ctx, ce) || ce.Err != nil {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	err := cs.Err()
	if err == nil {
		err = ErrFeedClosed
	}
	s.send(ctx, models.ChangeEvent{Err: err})
}

func (s *subscription) send(ctx context.Context, ev models.ChangeEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
