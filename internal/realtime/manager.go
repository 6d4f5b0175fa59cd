// Package realtime is H5, the Realtime Gateway: it fans NATS-delivered
// engine.Event values out to gorilla/websocket clients subscribed to a
// given barber's timeline for a given day. Grounded on the teacher's
// internal/realtime/manager.go SubscriptionManager, generalized from
// per-business broadcast to per-(barber,date) broadcast and redesigned
// for drop-oldest backpressure (ringbuffer.go) per §5.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/pkg/events"
	"github.com/barberq/scheduling-core/pkg/logger"
)

// SubscriptionKey identifies a timeline subscribers fan into, matching
// the granularity of the coordinator's keyed lock: one timeline per
// barber per service date.
func SubscriptionKey(barberID, serviceDate string) string {
	return barberID + "|" + serviceDate
}

// Client is a single websocket connection and its outbound buffer.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Manager *SubscriptionManager

	buffer *ringBuffer
	wake   chan struct{}
	key    string
}

// Wake returns the channel signaled whenever a message is enqueued for
// this client; the write pump blocks on it between drains.
func (c *Client) Wake() <-chan struct{} {
	return c.wake
}

// Drain removes every buffered message plus the drop count since the
// last drain.
func (c *Client) Drain() ([][]byte, int64) {
	return c.buffer.drain()
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// SubscriptionManager maintains the set of connected clients and their
// per-(barber,date) subscriptions.
type SubscriptionManager struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	subsMu        sync.RWMutex
	subscriptions map[string]map[*Client]bool

	logger         *logger.Logger
	subscriber     *events.Subscriber
	bufferCapacity int
}

func NewSubscriptionManager(log *logger.Logger, subscriber *events.Subscriber, bufferCapacity int) *SubscriptionManager {
	return &SubscriptionManager{
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		subscriptions:  make(map[string]map[*Client]bool),
		logger:         log,
		subscriber:     subscriber,
		bufferCapacity: bufferCapacity,
	}
}

// NewClient builds a Client wrapping conn, with a buffer sized to the
// manager's configured event_buffer_size.
func (m *SubscriptionManager) NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Conn:    conn,
		Manager: m,
		buffer:  newRingBuffer(m.bufferCapacity),
		wake:    make(chan struct{}, 1),
	}
}

// EnqueueClientRegistration admits client into the manager's run loop.
func (m *SubscriptionManager) EnqueueClientRegistration(client *Client) {
	m.register <- client
}

// EnqueueClientUnregistration removes client and drops its subscriptions.
func (m *SubscriptionManager) EnqueueClientUnregistration(client *Client) {
	m.unregister <- client
}

// Run is the manager's single-goroutine event loop for client
// registration. clients is only ever touched here, but subscriptions is
// also written by Subscribe (called from each connection's readPump
// goroutine) and read by Broadcast (called from the NATS subscriber
// goroutine), so subsMu guards it across all three call sites.
func (m *SubscriptionManager) Run() {
	m.logger.Info("realtime subscription manager started")
	for {
		select {
		case client := <-m.register:
			m.clients[client] = true
			m.logger.Debug("client registered", "client_id", client.ID)

		case client := <-m.unregister:
			if _, ok := m.clients[client]; !ok {
				continue
			}
			delete(m.clients, client)
			if client.key != "" {
				m.subsMu.Lock()
				if subs, ok := m.subscriptions[client.key]; ok {
					delete(subs, client)
					if len(subs) == 0 {
						delete(m.subscriptions, client.key)
					}
				}
				m.subsMu.Unlock()
			}
			m.logger.Debug("client unregistered", "client_id", client.ID)
		}
	}
}

// Subscribe associates client with a barber/date timeline. A client may
// only watch one timeline at a time; re-subscribing replaces it.
// subscriptions is shared with Run's unregister cleanup and with
// Broadcast, which run on different goroutines, so access is guarded by
// subsMu.
func (m *SubscriptionManager) Subscribe(client *Client, barberID, serviceDate string) {
	key := SubscriptionKey(barberID, serviceDate)
	if client.key == key {
		return
	}

	m.subsMu.Lock()
	if client.key != "" {
		if subs, ok := m.subscriptions[client.key]; ok {
			delete(subs, client)
		}
	}
	if _, ok := m.subscriptions[key]; !ok {
		m.subscriptions[key] = make(map[*Client]bool)
	}
	m.subscriptions[key][client] = true
	m.subsMu.Unlock()

	client.key = key
	m.logger.Info("client subscribed to timeline", "client_id", client.ID, "key", key)
}

// wireEvent is the JSON envelope delivered to websocket clients.
type wireEvent struct {
	Type    string       `json:"type"`
	Payload engine.Event `json:"payload"`
}

type gapMessage struct {
	Type    string `json:"type"`
	Dropped int64  `json:"dropped"`
}

// Broadcast fans evt out to every client subscribed to its
// (barber,date) timeline. Delivery is non-blocking: a full client
// buffer evicts its oldest entry (ringbuffer.go) rather than stalling
// this call or the NATS subscriber goroutine that invokes it.
func (m *SubscriptionManager) Broadcast(evt engine.Event) {
	key := SubscriptionKey(evt.BarberID, evt.ServiceDate)

	m.subsMu.RLock()
	subs := m.subscriptions[key]
	targets := make([]*Client, 0, len(subs))
	for client := range subs {
		targets = append(targets, client)
	}
	m.subsMu.RUnlock()

	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(wireEvent{Type: "event", Payload: evt})
	if err != nil {
		m.logger.Error("failed to marshal realtime event", "error", err)
		return
	}

	for _, client := range targets {
		client.buffer.push(payload)
		client.signal()
	}
}

// StartEventSubscriptions wires the NATS subscriber into Broadcast.
func (m *SubscriptionManager) StartEventSubscriptions() error {
	if m.subscriber == nil {
		m.logger.Warn("no NATS subscriber configured, realtime gateway will not receive events")
		return nil
	}
	return m.subscriber.SubscribeEvents(func(evt engine.Event) error {
		m.Broadcast(evt)
		return nil
	})
}

// GapMessageJSON encodes the synthetic event a client receives in place
// of the events its buffer had to evict.
func GapMessageJSON(dropped int64) ([]byte, error) {
	return json.Marshal(gapMessage{Type: "gap", Dropped: dropped})
}
