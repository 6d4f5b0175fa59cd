package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
	"github.com/barberq/scheduling-core/pkg/logger"
)

// BookingHandler is H1's thin layer over the Booking Coordinator (C6),
// grounded on the teacher's booking_handler.go shape: bind, delegate,
// translate errors. No business logic lives here.
type BookingHandler struct {
	coordinator *engine.Coordinator
	logger      *logger.Logger
}

func NewBookingHandler(coordinator *engine.Coordinator, logger *logger.Logger) *BookingHandler {
	return &BookingHandler{coordinator: coordinator, logger: logger}
}

type friendDTO struct {
	FriendName        string `json:"friend_name"`
	FriendPhone       string `json:"friend_phone"`
	FriendEmail       string `json:"friend_email"`
	PrimaryCustomerID string `json:"primary_customer_id"`
}

// bookRequestDTO is the body of POST /api/v1/book.
type bookRequestDTO struct {
	BarberID       string     `json:"barber_id" binding:"required"`
	ServiceDate    string     `json:"service_date" binding:"required"`
	StartMinute    *int       `json:"start_minute"`
	ServiceIDs     []string   `json:"service_ids" binding:"required"`
	AddOnIDs       []string   `json:"addon_ids"`
	Priority       string     `json:"priority"`
	CustomerID     *string    `json:"customer_id"`
	Friend         *friendDTO `json:"friend"`
	Notes          string     `json:"notes"`
	IdempotencyKey string     `json:"idempotency_key"`
}

// Book handles POST /api/v1/book.
func (h *BookingHandler) Book(c *gin.Context) {
	var req bookRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.CodeInvalidRequest, "invalid request body", err))
		return
	}

	priority := models.Priority(req.Priority)
	if priority == "" {
		priority = models.PriorityNormal
	}

	coordReq := engine.BookRequest{
		BarberID:       req.BarberID,
		ServiceDate:    req.ServiceDate,
		StartMinute:    req.StartMinute,
		ServiceIDs:     req.ServiceIDs,
		AddOnIDs:       req.AddOnIDs,
		Priority:       priority,
		CustomerID:     req.CustomerID,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Friend != nil {
		coordReq.Friend = &engine.FriendBlock{
			FriendName:        req.Friend.FriendName,
			FriendPhone:       req.Friend.FriendPhone,
			FriendEmail:       req.Friend.FriendEmail,
			PrimaryCustomerID: req.Friend.PrimaryCustomerID,
		}
	}

	result, err := h.coordinator.Book(c.Request.Context(), coordReq)
	if err != nil {
		h.logger.Warn("book failed", "barber_id", req.BarberID, "service_date", req.ServiceDate, "error", err)
		writeError(c, err)
		return
	}

	h.logger.Info("appointment booked", "appointment_id", result.AppointmentID, "kind", result.Kind)
	c.JSON(http.StatusCreated, result)
}

// Cancel handles POST /api/v1/cancel/:id.
func (h *BookingHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.coordinator.Cancel(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment_id": id, "status": models.StatusCancelled})
}

type statusRequestDTO struct {
	Status string `json:"status" binding:"required"`
}

// TransitionStatus handles POST /api/v1/status/:id.
func (h *BookingHandler) TransitionStatus(c *gin.Context) {
	id := c.Param("id")
	var req statusRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.CodeInvalidRequest, "invalid request body", err))
		return
	}
	if err := h.coordinator.TransitionStatus(c.Request.Context(), id, models.Status(req.Status)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment_id": id, "status": req.Status})
}

type priorityRequestDTO struct {
	Priority string `json:"priority" binding:"required"`
}

// ChangePriority handles POST /api/v1/priority/:id.
func (h *BookingHandler) ChangePriority(c *gin.Context) {
	id := c.Param("id")
	var req priorityRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.CodeInvalidRequest, "invalid request body", err))
		return
	}
	if err := h.coordinator.ChangePriority(c.Request.Context(), id, models.Priority(req.Priority)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment_id": id, "priority": req.Priority})
}

type moveRequestDTO struct {
	NewPosition int `json:"new_position" binding:"required"`
}

// MoveQueuePosition handles POST /api/v1/queue/:id/move.
func (h *BookingHandler) MoveQueuePosition(c *gin.Context) {
	id := c.Param("id")
	var req moveRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.CodeInvalidRequest, "invalid request body", err))
		return
	}
	if err := h.coordinator.MoveQueuePosition(c.Request.Context(), id, req.NewPosition); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment_id": id, "queue_position": req.NewPosition})
}

// PromoteToScheduled handles POST /api/v1/queue/:id/promote.
func (h *BookingHandler) PromoteToScheduled(c *gin.Context) {
	id := c.Param("id")
	if err := h.coordinator.PromoteQueueToScheduled(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment_id": id, "kind": models.KindScheduled})
}

// DemoteToQueue handles POST /api/v1/queue/:id/demote, exposing C6's
// Coordinator.DemoteScheduledToQueue.
func (h *BookingHandler) DemoteToQueue(c *gin.Context) {
	id := c.Param("id")
	if err := h.coordinator.DemoteScheduledToQueue(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment_id": id, "kind": models.KindQueue})
}
