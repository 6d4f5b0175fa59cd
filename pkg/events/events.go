// Package events implements C8's transport over NATS, grounded on the
// teacher's Publisher/NullPublisher/Subscriber trio, adapted to carry
// engine.Event (the §6 wire record) instead of arbitrary payloads.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/barberq/scheduling-core/internal/config"
	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/pkg/logger"
)

// SubjectPrefix namespaces every appointment change event; the
// Realtime Gateway subscribes to SubjectPrefix+">" to receive all of
// them regardless of event type.
const SubjectPrefix = "scheduling.appointment."

// Subject returns the NATS subject for an event type.
func Subject(t engine.EventType) string {
	return SubjectPrefix + string(t)
}

// Publisher publishes engine.Event values to NATS. A nil conn makes it
// behave like the teacher's NullPublisher (dev mode without NATS).
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect connects to NATS.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewPublisher creates a publisher backed by a live NATS connection.
func NewPublisher(conn *nats.Conn, logger *logger.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// NewNullPublisher creates a publisher with no connection, for
// development without NATS.
func NewNullPublisher(logger *logger.Logger) *Publisher {
	return &Publisher{conn: nil, logger: logger}
}

var _ engine.EventPublisher = (*Publisher)(nil)

// Publish implements engine.EventPublisher.
func (p *Publisher) Publish(evt engine.Event) error {
	if p.conn == nil {
		p.logger.Debug("event publishing skipped (no NATS connection)", "type", evt.Type, "appointment_id", evt.AppointmentID)
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(evt.Type), payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("published event", "type", evt.Type, "sequence", evt.Sequence, "appointment_id", evt.AppointmentID)
	return nil
}

// Subscriber handles raw NATS subject subscriptions for handlers
// outside the engine (e.g. the Realtime Gateway, or external notifier
// fan-out).
type Subscriber struct {
	conn   *nats.Conn
	logger *logger.Logger
}

func NewSubscriber(conn *nats.Conn, logger *logger.Logger) *Subscriber {
	return &Subscriber{conn: conn, logger: logger}
}

// Subscribe registers handler for every message on subject.
func (s *Subscriber) Subscribe(subject string, handler func([]byte) error) error {
	_, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			s.logger.Error("failed to handle event", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}
	s.logger.Debug("subscribed to subject", "subject", subject)
	return nil
}

// SubscribeEvents subscribes to every appointment event (SubjectPrefix+">")
// and decodes each message into an engine.Event before calling handler —
// the shape the Realtime Gateway (internal/realtime) consumes.
func (s *Subscriber) SubscribeEvents(handler func(engine.Event) error) error {
	return s.Subscribe(SubjectPrefix+">", func(data []byte) error {
		var evt engine.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		return handler(evt)
	})
}
