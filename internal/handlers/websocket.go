package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/barberq/scheduling-core/internal/realtime"
	"github.com/barberq/scheduling-core/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// RealtimeHandler upgrades HTTP requests to websocket connections and
// feeds them into the realtime subscription manager.
type RealtimeHandler struct {
	upgrader websocket.Upgrader
	manager  *realtime.SubscriptionManager
	logger   *logger.Logger
}

func NewRealtimeHandler(manager *realtime.SubscriptionManager, log *logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		manager: manager,
		logger:  log,
	}
}

// subscribeMessage is what a client sends to pick the timeline it wants.
type subscribeMessage struct {
	Type        string `json:"type"`
	BarberID    string `json:"barber_id"`
	ServiceDate string `json:"service_date"`
}

// HandleConnections implements GET /ws/timeline.
func (h *RealtimeHandler) HandleConnections(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", "error", err)
		return
	}

	client := h.manager.NewClient(conn)
	h.manager.EnqueueClientRegistration(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *RealtimeHandler) readPump(client *realtime.Client) {
	defer func() {
		h.manager.EnqueueClientUnregistration(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Warn("failed to unmarshal client message", "client_id", client.ID, "error", err)
			continue
		}
		if msg.Type == "subscribe" && msg.BarberID != "" && msg.ServiceDate != "" {
			h.manager.Subscribe(client, msg.BarberID, msg.ServiceDate)
		}
	}
}

// writePump drains the client's ring buffer whenever it is signaled,
// sending a gap marker first if events were dropped since the last
// drain, then pings on a fixed interval.
func (h *RealtimeHandler) writePump(client *realtime.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.Wake():
			messages, dropped := client.Drain()
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if dropped > 0 {
				gap, err := realtime.GapMessageJSON(dropped)
				if err == nil {
					if err := client.Conn.WriteMessage(websocket.TextMessage, gap); err != nil {
						h.logger.Error("failed to write gap marker", "client_id", client.ID, "error", err)
						return
					}
				}
			}
			for _, message := range messages {
				if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("failed to write websocket message", "client_id", client.ID, "error", err)
					return
				}
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
