package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/pkg/apperr"
	"github.com/barberq/scheduling-core/pkg/logger"
)

// AvailabilityHandler is H1's thin layer over the Query Facade (C9).
type AvailabilityHandler struct {
	query  *engine.Query
	logger *logger.Logger
}

func NewAvailabilityHandler(query *engine.Query, logger *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{query: query, logger: logger}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Slots handles GET /api/v1/slots.
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	barberID := c.Query("barber_id")
	date := c.Query("service_date")
	if barberID == "" || date == "" {
		writeError(c, apperr.New(apperr.CodeInvalidRequest, "barber_id and service_date are required"))
		return
	}
	serviceIDs := splitCSV(c.Query("service_ids"))
	addOnIDs := splitCSV(c.Query("addon_ids"))

	slots, err := h.query.Slots(c.Request.Context(), barberID, date, serviceIDs, addOnIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"barber_id": barberID, "service_date": date, "slots": slots})
}

// Alternatives handles GET /api/v1/alternatives.
func (h *AvailabilityHandler) Alternatives(c *gin.Context) {
	date := c.Query("service_date")
	if date == "" {
		writeError(c, apperr.New(apperr.CodeInvalidRequest, "service_date is required"))
		return
	}
	serviceIDs := splitCSV(c.Query("service_ids"))
	addOnIDs := splitCSV(c.Query("addon_ids"))
	excludeBarberID := c.Query("exclude_barber_id")

	options, err := h.query.Alternatives(c.Request.Context(), date, serviceIDs, addOnIDs, excludeBarberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"service_date": date, "barbers": options})
}

// HealthHandler reports process and dependency liveness/readiness.
type HealthHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn
	logger *logger.Logger
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, nats: natsConn, logger: logger}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "scheduling-core"})
}

// Ready handles GET /health/ready: every configured dependency must
// respond before the process is considered ready for traffic.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		checks["database"] = "down"
		ready = false
	} else {
		checks["database"] = "up"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"] = "down"
			ready = false
		} else {
			checks["redis"] = "up"
		}
	}

	if h.nats != nil {
		if h.nats.IsConnected() {
			checks["nats"] = "up"
		} else {
			checks["nats"] = "down"
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": readyStatusLabel(ready), "checks": checks})
}

func readyStatusLabel(ready bool) string {
	if ready {
		return "ready"
	}
	return "not_ready"
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
