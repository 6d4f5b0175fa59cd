package engine

import "time"

// EventType enumerates the Event Bus (C8) change events, §4.7.
type EventType string

const (
	EventAppointmentCreated       EventType = "AppointmentCreated"
	EventAppointmentCancelled     EventType = "AppointmentCancelled"
	EventAppointmentStatusChanged EventType = "AppointmentStatusChanged"
	EventQueuePositionChanged     EventType = "QueuePositionChanged"
	EventQueuePriorityChanged     EventType = "QueuePriorityChanged"
	EventScheduledTimeChanged     EventType = "ScheduledTimeChanged"
)

// Event is §6's wire record: {event_type, barber_id, service_date,
// appointment_id, sequence, before, after, occurred_at}, with sequence
// strictly increasing per (barber_id, service_date).
type Event struct {
	Type          EventType `json:"event_type"`
	BarberID      string    `json:"barber_id"`
	ServiceDate   string    `json:"service_date"`
	AppointmentID string    `json:"appointment_id"`
	Sequence      int64     `json:"sequence"`
	Before        any       `json:"before,omitempty"`
	After         any       `json:"after,omitempty"`
	Version       int       `json:"version"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher is the Coordinator's outbound seam to C8. Delivery is
// at-least-once and in publication order per (barber, date) — the
// publisher implementation (pkg/events, over NATS) must not reorder
// what it is handed.
type EventPublisher interface {
	Publish(evt Event) error
}

// NullEventPublisher discards events; grounded on the teacher's
// events.NullPublisher used so the service runs in dev without NATS.
type NullEventPublisher struct{}

func (NullEventPublisher) Publish(Event) error { return nil }
