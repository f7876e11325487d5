package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/o3go/o3go/pkg/command"
)

// Event is a published record of one command event.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Session is the emitting session.
	Session string `json:"session"`

	// Backend is the name of the session's backend.
	Backend string `json:"backend"`

	// Seq is the invocation's sequence number, 0 for rejected constructions.
	Seq int `json:"seq,omitempty"`

	// Line is the invocation in transcript syntax.
	Line string `json:"line"`

	// Code is the engine's status code.
	Code int `json:"code,omitempty"`

	// Message is the error message, if any.
	Message string `json:"message,omitempty"`

	// Kind is the error kind, if any.
	Kind string `json:"kind,omitempty"`

	// DurationMS is how long the backend took.
	DurationMS float64 `json:"duration_ms"`
}

// Event types.
const (
	EventTypeEmitted  = "command.emitted"
	EventTypeFailed   = "command.failed"
	EventTypeRejected = "command.rejected"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans command events out to subscribers on a background
// goroutine, in publication order. It implements command.Observer.
type EventPublisher struct {
	buffer      chan Event
	subscribers []subscriberEntry
	mu          sync.RWMutex
	dropped     atomic.Int64
	closeMu     sync.RWMutex
	closed      bool
	done        chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher starts a publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	ep := &EventPublisher{
		buffer: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go ep.processEvents()
	return ep
}

// Observe implements command.Observer.
func (ep *EventPublisher) Observe(ctx context.Context, ev command.Event) {
	_ = ep.Publish(FromCommandEvent(ev))
}

// FromCommandEvent converts a session event.
func FromCommandEvent(ev command.Event) Event {
	e := Event{
		Type:       EventTypeEmitted,
		Level:      EventLevelInfo,
		Session:    ev.Session,
		Backend:    ev.Backend,
		Seq:        ev.Invocation.Seq,
		Line:       ev.Invocation.Line(),
		Code:       ev.Status.Code,
		DurationMS: float64(ev.Duration) / float64(time.Millisecond),
	}
	switch {
	case ev.Err != nil && command.IsConstruction(ev.Err):
		e.Type, e.Level = EventTypeRejected, EventLevelWarning
	case ev.Err != nil:
		e.Type, e.Level = EventTypeFailed, EventLevelError
	case !ev.Status.OK():
		e.Level = EventLevelWarning
	}
	if ev.Err != nil {
		e.Message = ev.Err.Error()
		e.Kind = string(command.KindOf(ev.Err))
	}
	return e
}

// Publish queues an event. A full buffer drops the event and reports it.
func (ep *EventPublisher) Publish(event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.closeMu.RLock()
	defer ep.closeMu.RUnlock()
	if ep.closed {
		return fmt.Errorf("event publisher stopped")
	}
	select {
	case ep.buffer <- event:
		return nil
	default:
		ep.dropped.Add(1)
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// Dropped returns the number of events dropped on a full buffer.
func (ep *EventPublisher) Dropped() int64 {
	return ep.dropped.Load()
}

// Subscribe adds a new event subscriber. filter may be nil.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until the buffer is closed.
func (ep *EventPublisher) processEvents() {
	defer close(ep.done)
	for event := range ep.buffer {
		ep.deliverEvent(event)
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting events and waits for the queued ones to be
// delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.closeMu.Lock()
	if !ep.closed {
		ep.closed = true
		close(ep.buffer)
	}
	ep.closeMu.Unlock()

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterBySession creates a filter that only allows events of one session.
func FilterBySession(id string) EventFilter {
	return func(event Event) bool {
		return event.Session == id
	}
}
