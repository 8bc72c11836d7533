// Package bus is a synchronous in-process event bus. Handlers run on the
// publishing goroutine in subscription order.
package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/zengine/internal/core/observability/log"
)

type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]*Subscription
	metrics   Metrics
	observers []Observer
	logger    log.Log
}

type Option func(*Bus)

func WithLogger(l log.Log) Option {
	return func(b *Bus) { b.logger = l }
}

func New(options ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string][]*Subscription),
		logger: log.Provide(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Subscribe registers handler for eventType. Use Wildcard to receive every event.
func (b *Bus) Subscribe(eventType string, handler Handler) (*Subscription, error) {
	if eventType == "" {
		return nil, errors.New("subscribe: empty event type")
	}
	if handler == nil {
		return nil, errors.New("subscribe: nil handler")
	}
	s := &Subscription{id: uuid.New(), eventType: eventType, handler: handler, bus: b}

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], s)
	b.mu.Unlock()
	return s, nil
}

// Unsubscribe removes s. Nil and already cancelled subscriptions are ignored.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.eventType]
	for i, existing := range list {
		if existing == s {
			b.subs[s.eventType] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[s.eventType]) == 0 {
		delete(b.subs, s.eventType)
	}
}

func (b *Bus) has(s *Subscription) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, existing := range b.subs[s.eventType] {
		if existing == s {
			return true
		}
	}
	return false
}

// Publish delivers event to the handlers of its type and then to wildcard
// handlers. Handler errors are joined; a panicking handler is reported as an
// error and does not stop delivery to the rest.
func (b *Bus) Publish(event Event) error {
	start := time.Now()

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[event.Type])+len(b.subs[Wildcard]))
	targets = append(targets, b.subs[event.Type]...)
	if event.Type != Wildcard {
		targets = append(targets, b.subs[Wildcard]...)
	}
	observers := append([]Observer(nil), b.observers...)
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(event)
	}

	var errs []error
	for _, s := range targets {
		if err := call(s.handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		b.logger.Debug("event handlers failed", log.String("event", event.Type), log.Error(err))
	}

	if len(observers) > 0 {
		took := time.Since(start)
		for _, obs := range observers {
			obs.OnDelivered(event, len(targets), err, took)
		}
		b.mu.Lock()
		b.metrics.Published++
		b.metrics.DeliveredHandlers += uint64(len(targets))
		if err != nil {
			b.metrics.Errors++
		}
		b.metrics.SubscribersActive = b.countLocked()
		b.mu.Unlock()
	}
	return err
}

func call(h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.Type, r)
		}
	}()
	return h(event)
}

// PublishWithFilters drops event without error if any filter rejects it.
func (b *Bus) PublishWithFilters(event Event, filters ...Filter) error {
	for _, f := range filters {
		if !f(event) {
			b.mu.Lock()
			if len(b.observers) > 0 {
				b.metrics.DroppedByFilters++
			}
			b.mu.Unlock()
			return nil
		}
	}
	return b.Publish(event)
}

// PublishBatch publishes events in order and joins every error.
func (b *Bus) PublishBatch(events ...Event) error {
	var errs []error
	for _, e := range events {
		if err := b.Publish(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) AddObserver(obs Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, obs)
	b.mu.Unlock()
}

func (b *Bus) RemoveObserver(obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.observers {
		if existing == obs {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

// Metrics returns a snapshot of the counters.
func (b *Bus) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// Subscribers returns the number of registered subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int(b.countLocked())
}

func (b *Bus) countLocked() uint64 {
	var n uint64
	for _, list := range b.subs {
		n += uint64(len(list))
	}
	return n
}
