package blackboard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact emitted after a command succeeded.
type Event interface {
	// EventType groups events in an EventBook.
	EventType() string
	isEvent()
}

// StorageChange is the kind of storage mutation a StorageEvent reports.
type StorageChange string

const (
	StorageChangeAdd      StorageChange = "Add"
	StorageChangeRemove   StorageChange = "Remove"
	StorageChangeStatus   StorageChange = "ChangeStatus"
	StorageChangeMetadata StorageChange = "ChangeMetadata"
)

// StorageEvent reports a record mutation with the registry entry after the change
// (before the change for removals).
type StorageEvent struct {
	Change   StorageChange  `json:"change"`
	UID      uuid.UUID      `json:"uid"`
	Metadata RecordMetadata `json:"metadata"`
}

// LifeStatusEvent reports a board life status transition.
type LifeStatusEvent struct {
	From LifeStatus `json:"from"`
	To   LifeStatus `json:"to"`
}

const (
	EventTypeStorage    = "storage"
	EventTypeLifeStatus = "life_status"
)

func (*StorageEvent) EventType() string    { return EventTypeStorage }
func (*LifeStatusEvent) EventType() string { return EventTypeLifeStatus }

func (*StorageEvent) isEvent()    {}
func (*LifeStatusEvent) isEvent() {}

// EventBook is the read-only view of the events produced by one command execution,
// grouped by event type in emission order.
type EventBook struct {
	events []Event
	byType map[string][]Event
}

// NewEventBook groups events by type.
func NewEventBook(events []Event) *EventBook {
	book := &EventBook{
		events: events,
		byType: make(map[string][]Event),
	}
	for _, e := range events {
		book.byType[e.EventType()] = append(book.byType[e.EventType()], e)
	}
	return book
}

// Len returns the number of events.
func (b *EventBook) Len() int {
	if b == nil {
		return 0
	}
	return len(b.events)
}

// Events returns all events in emission order.
func (b *EventBook) Events() []Event {
	if b == nil {
		return nil
	}
	return b.events
}

// StorageEvents returns the storage events accepted by filter. A nil filter keeps all.
func (b *EventBook) StorageEvents(filter func(*StorageEvent) bool) []*StorageEvent {
	if b == nil {
		return nil
	}
	var out []*StorageEvent
	for _, e := range b.byType[EventTypeStorage] {
		se := e.(*StorageEvent)
		if filter == nil || filter(se) {
			out = append(out, se)
		}
	}
	return out
}

// EventEnvelope is the JSON form of an event published on a board's event channel.
type EventEnvelope struct {
	BoardUID  uuid.UUID       `json:"board_uid"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

// NewEventEnvelope wraps an event for publication.
func NewEventEnvelope(boardUID uuid.UUID, e Event, at time.Time) (*EventEnvelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.EventType(), err)
	}
	return &EventEnvelope{BoardUID: boardUID, Type: e.EventType(), Timestamp: at, Event: data}, nil
}

// Decode restores the concrete event carried by the envelope.
func (env *EventEnvelope) Decode() (Event, error) {
	switch env.Type {
	case EventTypeStorage:
		var e StorageEvent
		if err := json.Unmarshal(env.Event, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal storage event: %w", err)
		}
		return &e, nil
	case EventTypeLifeStatus:
		var e LifeStatusEvent
		if err := json.Unmarshal(env.Event, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal life status event: %w", err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}
