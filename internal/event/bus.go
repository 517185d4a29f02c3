// Package event provides the in-memory plugin.EventBus used to report
// pipeline progress between modules.
package event

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/HerbHall/hydrosim/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var _ plugin.EventBus = (*Bus)(nil)

var publishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hydrosim_events_published_total",
		Help: "Events published on the in-process bus by topic.",
	},
	[]string{"topic"},
)

func init() {
	prometheus.MustRegister(publishedTotal)
}

// Bus delivers events to topic subscribers. Publish runs handlers in the
// caller's goroutine, in subscription order; PublishAsync gives each
// handler its own goroutine. A panicking handler is logged and skipped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   uint64
	logger   *zap.Logger
	now      func() time.Time
}

type subscription struct {
	id      uint64
	handler plugin.EventHandler
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   logger,
		now:      time.Now,
	}
}

// Publish delivers the event synchronously. Timestamp defaults to now.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	event = b.stamp(event)
	for _, s := range b.snapshot(event.Topic) {
		b.safeCall(ctx, s.handler, event)
	}
	return nil
}

// PublishAsync delivers the event without waiting for handlers.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	event = b.stamp(event)
	for _, s := range b.snapshot(event.Topic) {
		go b.safeCall(ctx, s.handler, event)
	}
}

// Subscribe registers a handler for one topic and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = slices.DeleteFunc(b.handlers[topic], func(s subscription) bool {
			return s.id == id
		})
		if len(b.handlers[topic]) == 0 {
			delete(b.handlers, topic)
		}
	}
}

// Subscribers returns the number of handlers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func (b *Bus) stamp(event plugin.Event) plugin.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	publishedTotal.WithLabelValues(event.Topic).Inc()
	return event
}

func (b *Bus) snapshot(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.handlers[topic])
}

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
