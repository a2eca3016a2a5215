package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vote-backend/internal/workers"
)

// Handler consumes one event.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the producer-side view of the bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type subscription struct {
	name string
	fn   Handler
}

// Bus fans events out to subscribers. With a nil pool every handler runs
// inline on the publisher, which is what tests use for determinism.
type Bus struct {
	pool   *workers.Pool
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string][]subscription
	wg   sync.WaitGroup
}

// NewBus returns a bus dispatching on pool.
func NewBus(pool *workers.Pool) *Bus {
	return &Bus{
		pool:   pool,
		logger: log.With().Str("component", "events").Logger(),
		subs:   make(map[string][]subscription),
	}
}

// Subscribe registers fn for topic under a descriptive name used in logs.
func (b *Bus) Subscribe(topic, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], subscription{name: name, fn: fn})
}

// Publish delivers ev to every subscriber of its topic. It does not wait for
// asynchronous handlers. The handler context is detached from ctx so a
// finished HTTP request does not cancel downstream work.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Topic()]...)
	b.mu.RUnlock()

	hctx := context.WithoutCancel(ctx)
	for _, s := range subs {
		if b.pool == nil {
			b.deliver(hctx, s, ev)
			continue
		}
		b.wg.Add(1)
		done := b.pool.Submit(func(context.Context) error {
			defer b.wg.Done()
			b.deliver(hctx, s, ev)
			return nil
		})
		select {
		case err := <-done:
			if errors.Is(err, workers.ErrClosed) {
				b.wg.Done()
				b.logger.Warn().Str("topic", ev.Topic()).Str("subscriber", s.name).Msg("pool closed, event dropped")
			}
		default:
		}
	}
}

// Wait blocks until every handler dispatched so far has returned.
func (b *Bus) Wait() { b.wg.Wait() }

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) {
	if err := s.fn(ctx, ev); err != nil {
		b.logger.Error().Err(err).
			Str("topic", ev.Topic()).
			Str("subscriber", s.name).
			Msg("event handler failed")
	}
}
