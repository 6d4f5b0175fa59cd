package engine_test

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
)

// fakeRepository is a minimal in-memory engine.Repository double. The
// engine package only requires the narrow interface of §6, so tests
// exercise the coordinator and query facade against this fake instead
// of a real store — the same separation the spec draws between C3 and
// the components that consume it.
type fakeRepository struct {
	mu sync.Mutex

	appointments map[string]models.Appointment
	services     map[string]models.Service
	addons       map[string]models.AddOn
	barbers      map[string]models.Barber
	daysOff      map[string]bool // "barberID|date" -> true
	idempotency  map[string]models.IdempotencyRecord
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		appointments: map[string]models.Appointment{},
		services:     map[string]models.Service{},
		addons:       map[string]models.AddOn{},
		barbers:      map[string]models.Barber{},
		daysOff:      map[string]bool{},
		idempotency:  map[string]models.IdempotencyRecord{},
	}
}

func (f *fakeRepository) seedService(s models.Service) { f.services[s.ID] = s }
func (f *fakeRepository) seedBarber(b models.Barber)    { f.barbers[b.ID] = b }

func (f *fakeRepository) ListAppointments(ctx context.Context, barberID, date string, statuses []models.Status) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := map[models.Status]bool{}
	for _, s := range statuses {
		active[s] = true
	}
	out := make([]models.Appointment, 0)
	for _, a := range f.appointments {
		if a.BarberID == barberID && a.ServiceDate == date && active[a.Status] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == models.KindScheduled
		}
		if out[i].Kind == models.KindScheduled {
			si, sj := 0, 0
			if out[i].StartMinute != nil {
				si = *out[i].StartMinute
			}
			if out[j].StartMinute != nil {
				sj = *out[j].StartMinute
			}
			return si < sj
		}
		pi, pj := 0, 0
		if out[i].QueuePosition != nil {
			pi = *out[i].QueuePosition
		}
		if out[j].QueuePosition != nil {
			pj = *out[j].QueuePosition
		}
		return pi < pj
	})
	return out, nil
}

func (f *fakeRepository) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return models.Appointment{}, apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	return a, nil
}

func (f *fakeRepository) GetServices(ctx context.Context, ids []string) (map[string]models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]models.Service{}
	for _, id := range ids {
		if s, ok := f.services[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeRepository) GetAddOns(ctx context.Context, ids []string) (map[string]models.AddOn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]models.AddOn{}
	for _, id := range ids {
		if a, ok := f.addons[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (f *fakeRepository) GetBarber(ctx context.Context, id string) (models.Barber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.barbers[id]
	if !ok {
		return models.Barber{}, apperr.New(apperr.CodeUnknownBarber, "unknown barber")
	}
	return b, nil
}

func (f *fakeRepository) ListActiveBarbers(ctx context.Context) ([]models.Barber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Barber, 0, len(f.barbers))
	for _, b := range f.barbers {
		if b.Status != models.BarberOffline {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepository) IsDayOff(ctx context.Context, barberID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.daysOff[barberID+"|"+date], nil
}

func (f *fakeRepository) InsertAppointment(ctx context.Context, row models.Appointment) (models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.Version == 0 {
		row.Version = 1
	}
	f.appointments[row.ID] = row
	return row, nil
}

func (f *fakeRepository) UpdateAppointment(ctx context.Context, id string, patch engine.AppointmentPatch, expectedVersion int) (models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return models.Appointment{}, apperr.New(apperr.CodeNotFound, "appointment not found")
	}
	if a.Version != expectedVersion {
		return models.Appointment{}, apperr.New(apperr.CodeVersionConflict, "stale version")
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.Priority != nil {
		a.Priority = *patch.Priority
	}
	if patch.Kind != nil {
		a.Kind = *patch.Kind
	}
	if patch.StartMinute != nil {
		a.StartMinute = *patch.StartMinute
	}
	if patch.QueuePosition != nil {
		a.QueuePosition = *patch.QueuePosition
	}
	a.Version++
	f.appointments[id] = a
	return a, nil
}

func (f *fakeRepository) RenumberQueue(ctx context.Context, barberID, date string, positions map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, pos := range positions {
		a, ok := f.appointments[id]
		if !ok {
			continue
		}
		p := pos
		a.QueuePosition = &p
		a.Version++
		f.appointments[id] = a
	}
	return nil
}

func (f *fakeRepository) GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeRepository) SaveIdempotencyRecord(ctx context.Context, rec models.IdempotencyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idempotency[rec.Key] = rec
	return nil
}

var _ engine.Repository = (*fakeRepository)(nil)
