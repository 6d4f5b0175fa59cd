// Package subscribers is H3's write side: it consumes catalog-change
// events published by an upstream business-management system over
// NATS and upserts them into the local Service/AddOn/Barber/DayOff
// tables, then asks the catalog cache to refresh. Grounded on the
// teacher's internal/subscribers/event_handlers.go (the
// clause.OnConflict upsert idiom, the per-event-type handler shape),
// generalized from business-service/availability-rule payloads to this
// domain's catalog rows.
package subscribers

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/logger"
)

// Refresher is implemented by the catalog cache (internal/repository's
// CachingRepository). Kept as a narrow interface here so this package
// doesn't need the full repository dependency.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogEventHandlers upserts catalog rows into Postgres on receipt
// of NATS catalog events, then invalidates the catalog cache so the
// next lookup picks up the change instead of serving a stale snapshot.
type CatalogEventHandlers struct {
	db       *gorm.DB
	cache    Refresher
	logger   *logger.Logger
}

func NewCatalogEventHandlers(db *gorm.DB, cache Refresher, logger *logger.Logger) *CatalogEventHandlers {
	return &CatalogEventHandlers{db: db, cache: cache, logger: logger}
}

func (h *CatalogEventHandlers) refreshCache() {
	if h.cache == nil {
		return
	}
	if err := h.cache.Refresh(context.Background()); err != nil {
		h.logger.Warn("failed to refresh catalog cache after event", "error", err)
	}
}

// ServiceUpsertedPayload is the body of the "catalog.service.upserted" subject.
type ServiceUpsertedPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DurationMin int     `json:"duration_min"`
	PriceCents  int64   `json:"price_cents"`
	Active      *bool   `json:"active"`
}

// HandleServiceUpserted upserts a Service row.
func (h *CatalogEventHandlers) HandleServiceUpserted(data []byte) error {
	var payload ServiceUpsertedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("failed to unmarshal service upsert payload", "error", err)
		return fmt.Errorf("unmarshal service upsert payload: %w", err)
	}

	row := models.Service{
		ID:          payload.ID,
		Name:        payload.Name,
		DurationMin: payload.DurationMin,
		PriceCents:  payload.PriceCents,
		Active:      true,
	}
	if payload.Active != nil {
		row.Active = *payload.Active
	}

	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "duration_min", "price_cents", "active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		h.logger.Error("failed to upsert service", "service_id", payload.ID, "error", err)
		return fmt.Errorf("upsert service: %w", err)
	}
	h.logger.Info("service upserted", "service_id", payload.ID)
	h.refreshCache()
	return nil
}

// AddOnUpsertedPayload is the body of the "catalog.addon.upserted" subject.
type AddOnUpsertedPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_min"`
	PriceCents  int64  `json:"price_cents"`
	Active      *bool  `json:"active"`
}

// HandleAddOnUpserted upserts an AddOn row.
func (h *CatalogEventHandlers) HandleAddOnUpserted(data []byte) error {
	var payload AddOnUpsertedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("failed to unmarshal addon upsert payload", "error", err)
		return fmt.Errorf("unmarshal addon upsert payload: %w", err)
	}

	row := models.AddOn{
		ID:          payload.ID,
		Name:        payload.Name,
		DurationMin: payload.DurationMin,
		PriceCents:  payload.PriceCents,
		Active:      true,
	}
	if payload.Active != nil {
		row.Active = *payload.Active
	}

	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "duration_min", "price_cents", "active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		h.logger.Error("failed to upsert addon", "addon_id", payload.ID, "error", err)
		return fmt.Errorf("upsert addon: %w", err)
	}
	h.logger.Info("addon upserted", "addon_id", payload.ID)
	h.refreshCache()
	return nil
}

// BarberUpsertedPayload is the body of the "catalog.barber.upserted" subject.
type BarberUpsertedPayload struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Status      string  `json:"status"`
	AvgRating   float64 `json:"avg_rating"`
	RatingCount int     `json:"rating_count"`
}

// HandleBarberUpserted upserts a Barber row.
func (h *CatalogEventHandlers) HandleBarberUpserted(data []byte) error {
	var payload BarberUpsertedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("failed to unmarshal barber upsert payload", "error", err)
		return fmt.Errorf("unmarshal barber upsert payload: %w", err)
	}

	status := models.BarberStatus(payload.Status)
	if status == "" {
		status = models.BarberAvailable
	}
	row := models.Barber{
		ID:          payload.ID,
		DisplayName: payload.DisplayName,
		Status:      status,
		AvgRating:   payload.AvgRating,
		RatingCount: payload.RatingCount,
	}

	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "status", "avg_rating", "rating_count", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		h.logger.Error("failed to upsert barber", "barber_id", payload.ID, "error", err)
		return fmt.Errorf("upsert barber: %w", err)
	}
	h.logger.Info("barber upserted", "barber_id", payload.ID)
	h.refreshCache()
	return nil
}

// DayOffCreatedPayload is the body of the "catalog.dayoff.created" subject.
type DayOffCreatedPayload struct {
	BarberID  string `json:"barber_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// HandleDayOffCreated inserts a DayOff row.
func (h *CatalogEventHandlers) HandleDayOffCreated(data []byte) error {
	var payload DayOffCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("failed to unmarshal day-off payload", "error", err)
		return fmt.Errorf("unmarshal day-off payload: %w", err)
	}

	row := models.DayOff{
		BarberID:  payload.BarberID,
		StartDate: payload.StartDate,
		EndDate:   payload.EndDate,
		Reason:    payload.Reason,
	}
	if err := h.db.Create(&row).Error; err != nil {
		h.logger.Error("failed to create day-off", "barber_id", payload.BarberID, "error", err)
		return fmt.Errorf("create day-off: %w", err)
	}
	h.logger.Info("day-off created", "barber_id", payload.BarberID, "start_date", payload.StartDate)
	h.refreshCache()
	return nil
}
