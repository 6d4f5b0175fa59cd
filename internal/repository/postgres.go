// Package repository implements engine.Repository (C3) over GORM.
// Grounded on the teacher's internal/repository/booking_repository.go
// (query shape, transaction use) and internal/database/database.go
// (Connect/Migrate), generalized from the teacher's booking/service
// domain to appointments/services/addons/barbers/day-offs.
package repository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
)

// GormRepository implements engine.Repository. It is store-agnostic in
// the sense §4.2 requires: the same struct backs both the Postgres
// driver in production and the sqlite driver in tests (see the
// in-memory sqlite setup in internal/handlers' test suites).
type GormRepository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ engine.Repository = (*GormRepository)(nil)

func (r *GormRepository) ListAppointments(ctx context.Context, barberID, date string, statuses []models.Status) ([]models.Appointment, error) {
	var rows []models.Appointment
	q := r.db.WithContext(ctx).
		Where("barber_id = ? AND service_date = ?", barberID, date)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind == models.KindScheduled
		}
		if rows[i].Kind == models.KindScheduled {
			si, sj := 0, 0
			if rows[i].StartMinute != nil {
				si = *rows[i].StartMinute
			}
			if rows[j].StartMinute != nil {
				sj = *rows[j].StartMinute
			}
			return si < sj
		}
		pi, pj := 0, 0
		if rows[i].QueuePosition != nil {
			pi = *rows[i].QueuePosition
		}
		if rows[j].QueuePosition != nil {
			pj = *rows[j].QueuePosition
		}
		return pi < pj
	})
	return rows, nil
}

func (r *GormRepository) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	var a models.Appointment
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Appointment{}, apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	return a, err
}

func (r *GormRepository) GetServices(ctx context.Context, ids []string) (map[string]models.Service, error) {
	out := map[string]models.Service{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Service
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, s := range rows {
		out[s.ID] = s
	}
	return out, nil
}

func (r *GormRepository) GetAddOns(ctx context.Context, ids []string) (map[string]models.AddOn, error) {
	out := map[string]models.AddOn{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.AddOn
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

func (r *GormRepository) GetBarber(ctx context.Context, id string) (models.Barber, error) {
	var b models.Barber
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Barber{}, apperr.New(apperr.CodeUnknownBarber, "unknown barber id: "+id)
	}
	return b, err
}

func (r *GormRepository) ListActiveBarbers(ctx context.Context) ([]models.Barber, error) {
	var rows []models.Barber
	err := r.db.WithContext(ctx).Where("status <> ?", models.BarberOffline).Find(&rows).Error
	return rows, err
}

// ListServices and ListAddOns feed the catalog cache's periodic refresh
// (H3); they are not part of engine.Repository because the engine only
// ever needs lookups by id.
func (r *GormRepository) ListServices(ctx context.Context) ([]models.Service, error) {
	var rows []models.Service
	err := r.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) ListAddOns(ctx context.Context) ([]models.AddOn, error) {
	var rows []models.AddOn
	err := r.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) ListAllBarbers(ctx context.Context) ([]models.Barber, error) {
	var rows []models.Barber
	err := r.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

func (r *GormRepository) IsDayOff(ctx context.Context, barberID, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DayOff{}).
		Where("barber_id = ? AND start_date <= ? AND end_date >= ?", barberID, date, date).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) InsertAppointment(ctx context.Context, row models.Appointment) (models.Appointment, error) {
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Appointment{}, err
	}
	return row, nil
}

// UpdateAppointment implements the optimistic-concurrency check the
// same way the teacher's UpdateBookingStatus does: a conditional UPDATE
// whose RowsAffected==0 means the version was stale.
func (r *GormRepository) UpdateAppointment(ctx context.Context, id string, patch engine.AppointmentPatch, expectedVersion int) (models.Appointment, error) {
	updates := map[string]any{"version": expectedVersion + 1}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.Kind != nil {
		updates["kind"] = *patch.Kind
	}
	if patch.StartMinute != nil {
		updates["start_minute"] = *patch.StartMinute
	}
	if patch.QueuePosition != nil {
		updates["queue_position"] = *patch.QueuePosition
	}

	tx := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if tx.Error != nil {
		return models.Appointment{}, tx.Error
	}
	if tx.RowsAffected == 0 {
		return models.Appointment{}, apperr.New(apperr.CodeVersionConflict, "appointment was modified concurrently")
	}
	return r.GetAppointment(ctx, id)
}

func (r *GormRepository) RenumberQueue(ctx context.Context, barberID, date string, positions map[string]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, pos := range positions {
			if err := tx.Model(&models.Appointment{}).
				Where("id = ?", id).
				Updates(map[string]any{"queue_position": pos, "version": gorm.Expr("version + 1")}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRepository) GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := r.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormRepository) SaveIdempotencyRecord(ctx context.Context, rec models.IdempotencyRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&rec).Error
}
