package engine

import (
	"context"

	"github.com/barberq/scheduling-core/internal/models"
)

// AppointmentPatch is a partial update for UpdateAppointment; nil
// fields are left untouched. Grounded on the patch-style update the
// spec's Repository contract implies ("update_appointment(id, patch,
// expected_version)").
type AppointmentPatch struct {
	Status        *models.Status
	Priority      *models.Priority
	Kind          *models.AppointmentKind
	StartMinute   **int
	QueuePosition **int
}

// Repository is C3: the narrow persistence interface the engine
// requires, with no assumption of a particular store. Concrete
// implementations live in internal/repository.
type Repository interface {
	// ListAppointments returns a snapshot ordered by
	// (kind asc: scheduled<queue, start_time asc, queue_position asc).
	ListAppointments(ctx context.Context, barberID, date string, statuses []models.Status) ([]models.Appointment, error)

	// GetAppointment resolves an id to its (barber_id, service_date) so
	// mutating operations that only receive an id can locate the
	// correct coordinator lock before re-reading the authoritative
	// snapshot under that lock. Returns an apperr.CodeNotFound error if
	// absent.
	GetAppointment(ctx context.Context, id string) (models.Appointment, error)

	GetServices(ctx context.Context, ids []string) (map[string]models.Service, error)
	GetAddOns(ctx context.Context, ids []string) (map[string]models.AddOn, error)

	GetBarber(ctx context.Context, id string) (models.Barber, error)
	ListActiveBarbers(ctx context.Context) ([]models.Barber, error)

	IsDayOff(ctx context.Context, barberID, date string) (bool, error)

	// InsertAppointment is atomic w.r.t. other operations within the
	// same (barber, date) logical lock.
	InsertAppointment(ctx context.Context, row models.Appointment) (models.Appointment, error)

	// UpdateAppointment fails with apperr.CodeVersionConflict on a
	// stale expectedVersion.
	UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch, expectedVersion int) (models.Appointment, error)

	// RenumberQueue is bulk and transactional.
	RenumberQueue(ctx context.Context, barberID, date string, positions map[string]int) error

	GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	SaveIdempotencyRecord(ctx context.Context, rec models.IdempotencyRecord) error
}
