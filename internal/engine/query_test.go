package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
)

func newTestQuery(repo *fakeRepository, now time.Time) *engine.Query {
	return &engine.Query{Repo: repo, Policy: testPolicy(), Clock: engine.FixedClock{At: now}}
}

func TestQuery_Slots_ReflectsBookedAppointment(t *testing.T) {
	repo := newFakeRepository()
	seedBasics(repo)
	q := newTestQuery(repo, time.Date(2025, 10, 9, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	start := 570
	_, err := repo.InsertAppointment(ctx, models.Appointment{
		BarberID: testBarber, ServiceDate: testDate, Kind: models.KindScheduled,
		StartMinute: &start, TotalDurationMin: 30, Status: models.StatusPending, Priority: models.PriorityNormal,
	})
	require.NoError(t, err)

	slots, err := q.Slots(ctx, testBarber, testDate, []string{"svc30"}, nil)
	require.NoError(t, err)
	got := slotAt(slots, 570)
	assert.Equal(t, engine.SlotScheduled, got.Kind)
}

func TestQuery_Slots_RejectsUnknownBarber(t *testing.T) {
	repo := newFakeRepository()
	seedBasics(repo)
	q := newTestQuery(repo, time.Date(2025, 10, 9, 9, 0, 0, 0, time.UTC))

	_, err := q.Slots(context.Background(), "nope", testDate, []string{"svc30"}, nil)
	assert.Error(t, err)
}

func TestQuery_Alternatives_ExcludesOfflineAndRequestedBarber(t *testing.T) {
	repo := newFakeRepository()
	repo.seedService(models.Service{ID: "svc30", DurationMin: 30, Active: true})
	repo.seedBarber(models.Barber{ID: "b1", Status: models.BarberAvailable, AvgRating: 4.5})
	repo.seedBarber(models.Barber{ID: "b2", Status: models.BarberAvailable, AvgRating: 4.0})
	repo.seedBarber(models.Barber{ID: "b3", Status: models.BarberOffline, AvgRating: 5.0})
	q := newTestQuery(repo, time.Date(2025, 10, 9, 9, 0, 0, 0, time.UTC))

	options, err := q.Alternatives(context.Background(), testDate, []string{"svc30"}, nil, "b1")
	require.NoError(t, err)

	ids := make([]string, 0, len(options))
	for _, o := range options {
		ids = append(ids, o.BarberID)
	}
	assert.NotContains(t, ids, "b1", "excluded barber must not appear")
	assert.NotContains(t, ids, "b3", "offline barber must not appear")
	assert.Contains(t, ids, "b2")
}

func TestQuery_Alternatives_ExcludesDayOffBarbers(t *testing.T) {
	repo := newFakeRepository()
	repo.seedService(models.Service{ID: "svc30", DurationMin: 30, Active: true})
	repo.seedBarber(models.Barber{ID: "b1", Status: models.BarberAvailable})
	repo.seedBarber(models.Barber{ID: "b2", Status: models.BarberAvailable})
	repo.daysOff["b2|"+testDate] = true
	q := newTestQuery(repo, time.Date(2025, 10, 9, 9, 0, 0, 0, time.UTC))

	options, err := q.Alternatives(context.Background(), testDate, []string{"svc30"}, nil, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(options))
	for _, o := range options {
		ids = append(ids, o.BarberID)
	}
	assert.Equal(t, []string{"b1"}, ids)
}
