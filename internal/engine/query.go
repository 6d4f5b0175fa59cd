package engine

import (
	"context"

	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
)

// Query is C9, the Query Facade: read-only, lock-free access to the
// Availability Engine over a live repository snapshot. It never
// acquires the coordinator lock — GET endpoints never block a writer
// and never need perfectly linearizable reads (§4.8's unchanged
// contract).
type Query struct {
	Repo   Repository
	Policy Policy
	Clock  Clock
}

func (q *Query) today() string {
	date, _ := NowAsOf(q.Clock)
	return date
}

func (q *Query) nowMinute() int {
	_, m := NowAsOf(q.Clock)
	return m
}

func (q *Query) serviceDuration(ctx context.Context, serviceIDs, addOnIDs []string) (int, error) {
	services, err := q.Repo.GetServices(ctx, serviceIDs)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load services", err)
	}
	addons, err := q.Repo.GetAddOns(ctx, addOnIDs)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load addons", err)
	}
	total := 0
	for _, id := range serviceIDs {
		svc, ok := services[id]
		if !ok {
			return 0, apperr.New(apperr.CodeUnknownService, "unknown service id: "+id)
		}
		total += svc.DurationMin
	}
	for _, id := range addOnIDs {
		add, ok := addons[id]
		if !ok {
			return 0, apperr.New(apperr.CodeUnknownAddOn, "unknown addon id: "+id)
		}
		total += add.DurationMin
	}
	return total, nil
}

// Slots implements GET /api/v1/slots: the unified timeline for one
// barber/date/service combination.
func (q *Query) Slots(ctx context.Context, barberID, date string, serviceIDs, addOnIDs []string) ([]Slot, error) {
	duration, err := q.serviceDuration(ctx, serviceIDs, addOnIDs)
	if err != nil {
		return nil, err
	}
	if _, err := q.Repo.GetBarber(ctx, barberID); err != nil {
		return nil, err
	}
	snapshot, err := q.Repo.ListAppointments(ctx, barberID, date, models.ActiveStatuses)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load snapshot", err)
	}
	blocks, err := BuildTimeline(snapshot, q.Policy)
	if err != nil {
		return nil, err
	}
	isToday := date == q.today()
	return UnifiedSlots(blocks, q.Policy, duration, isToday, q.nowMinute()), nil
}

// Alternatives implements GET /api/v1/alternatives: every other active
// barber scored and ranked for the requested service on the given
// date, per §4.4. excludeBarberID omits the barber the caller was
// already looking at (the request's own exclude_barber_id).
func (q *Query) Alternatives(ctx context.Context, date string, serviceIDs, addOnIDs []string, excludeBarberID string) ([]BarberOption, error) {
	duration, err := q.serviceDuration(ctx, serviceIDs, addOnIDs)
	if err != nil {
		return nil, err
	}
	barbers, err := q.Repo.ListActiveBarbers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load barbers", err)
	}
	isToday := date == q.today()
	nowMinute := q.nowMinute()

	candidates := make([]BarberCandidate, 0, len(barbers))
	for _, b := range barbers {
		if excludeBarberID != "" && b.ID == excludeBarberID {
			continue
		}
		isDayOff, err := q.Repo.IsDayOff(ctx, b.ID, date)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to check day-off", err)
		}
		if isDayOff {
			continue
		}
		snapshot, err := q.Repo.ListAppointments(ctx, b.ID, date, models.ActiveStatuses)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeRepositoryUnavailable, "failed to load snapshot", err)
		}
		blocks, err := BuildTimeline(snapshot, q.Policy)
		if err != nil {
			return nil, err
		}
		slots := UnifiedSlots(blocks, q.Policy, duration, isToday, nowMinute)
		bookable := 0
		for _, s := range slots {
			if s.Bookable {
				bookable++
			}
		}
		candidates = append(candidates, BarberCandidate{
			BarberID:           b.ID,
			AvgRating:          b.AvgRating,
			BookableSlotCount:  bookable,
			QueueLength:        len(activeQueueSorted(snapshot)),
			NextAvailableStart: NextAvailable(slots),
		})
	}
	return ScoreAlternatives(candidates), nil
}
