package bus

import (
	"time"

	"github.com/google/uuid"
)

// Engine event types.
const (
	ScreenAdded       = "screen.added"
	ScreenInitialized = "screen.initialized"
	ScreenRemoved     = "screen.removed"
	ScreenFaulted     = "screen.faulted"
	ComponentAdded    = "component.added"
	CameraRegistered  = "camera.registered"
	FrameCompleted    = "frame.completed"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is an immutable notification. Data is owned by the publisher and
// must be treated as read-only by handlers.
type Event struct {
	Type     string
	Source   string
	Time     time.Time
	Data     any
	Metadata map[string]any
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, source string, data any) Event {
	return Event{Type: typ, Source: source, Time: time.Now(), Data: data}
}

// With returns a copy of e carrying an extra metadata entry.
func (e Event) With(key string, value any) Event {
	meta := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}

type (
	// Handler is invoked per delivered event. Returned errors are joined and
	// handed back to the publisher.
	Handler func(event Event) error
	// Filter decides whether an event should be delivered.
	Filter func(event Event) bool
)

// Observer is told about every publish. Observers should return quickly.
type Observer interface {
	OnPublish(event Event)
	OnDelivered(event Event, handlers int, err error, took time.Duration)
}

// Metrics are counted only while at least one observer is registered.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
}

// Subscription is a registered handler. Cancel is safe to call repeatedly.
type Subscription struct {
	id        uuid.UUID
	eventType string
	handler   Handler
	bus       *Bus
}

func (s *Subscription) ID() uuid.UUID     { return s.id }
func (s *Subscription) EventType() string { return s.eventType }

// IsActive reports whether the subscription is still registered.
func (s *Subscription) IsActive() bool {
	return s.bus.has(s)
}

func (s *Subscription) Cancel() {
	s.bus.Unsubscribe(s)
}
