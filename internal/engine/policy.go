package engine

import (
	"github.com/barberq/scheduling-core/internal/config"
	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
)

// Policy is an alias of config.Policy so the engine reasons in terms of
// the same minutes-since-midnight constants §6 exposes as config, with
// no re-derivation or parsing inside the engine itself.
type Policy = config.Policy

// WorkingWindow returns the bounds [WorkingStartMin, WorkingEndMin).
// The lunch interval inside those bounds is not removed.
func WorkingWindow(p Policy) (start, end int) {
	return p.WorkingStartMin, p.WorkingEndMin
}

// CheckWorkingHourFit is P1: start + duration <= working_end, and the
// computed end must not roll past midnight.
func CheckWorkingHourFit(p Policy, start, duration int) error {
	end := start + duration
	if !EndWithinDay(end) {
		return apperr.New(apperr.CodeWorkingHoursExceeded, "appointment end crosses midnight")
	}
	if end > p.WorkingEndMin {
		return apperr.New(apperr.CodeWorkingHoursExceeded, "appointment end exceeds working hours")
	}
	if start < p.WorkingStartMin {
		return apperr.New(apperr.CodeWorkingHoursExceeded, "appointment starts before working hours")
	}
	return nil
}

// CheckNoLunchCrossing is P2, applied to scheduled-kind appointments.
func CheckNoLunchCrossing(p Policy, start, duration int) error {
	if CrossesLunch(start, duration, p.LunchStartMin, p.LunchEndMin) {
		return apperr.New(apperr.CodeLunchConflict, "appointment crosses the lunch interval")
	}
	return nil
}

// RemainingGapBudget computes the aggregate free minutes available for
// queue appointments: working minutes minus scheduled minutes minus
// lunch, the quantity P3 checks against.
func RemainingGapBudget(p Policy, scheduledMinutes int) int {
	workingMinutes := p.WorkingEndMin - p.WorkingStartMin
	lunchMinutes := p.LunchEndMin - p.LunchStartMin
	budget := workingMinutes - lunchMinutes - scheduledMinutes
	if budget < 0 {
		return 0
	}
	return budget
}

// CheckQueueFit is P3: the new appointment's duration must fit within
// the remaining gap budget alongside all existing active queue
// appointments.
func CheckQueueFit(p Policy, scheduledMinutes, existingQueueMinutes, newDuration int) error {
	budget := RemainingGapBudget(p, scheduledMinutes)
	if existingQueueMinutes+newDuration > budget {
		return apperr.New(apperr.CodeQueueFull, "no remaining gap budget for this duration")
	}
	return nil
}

// CheckQueueCap is P4: active queue length must stay below MaxActiveQueue.
func CheckQueueCap(p Policy, activeQueueLen int) error {
	if activeQueueLen >= p.MaxActiveQueue {
		return apperr.New(apperr.CodeQueueFull, "active queue is at capacity")
	}
	return nil
}

// CheckBarberBookable is P5: day-off or offline barbers reject.
func CheckBarberBookable(barber models.Barber, isDayOff bool) error {
	if isDayOff {
		return apperr.New(apperr.CodeDayOff, "barber is off on this date")
	}
	if barber.Status == models.BarberOffline {
		return apperr.New(apperr.CodeBarberOffline, "barber is offline")
	}
	return nil
}

// CheckBookingWindow is P6: past dates, or today after the same-day
// cutoff, reject admission. Per SPEC_FULL.md §9's recorded decision,
// the cutoff is admission-only — it never force-closes an appointment
// already `ongoing`.
func CheckBookingWindow(p Policy, requestedDate, today string, nowMinute int) error {
	if requestedDate < today {
		return apperr.New(apperr.CodeOutsideBookingWindow, "date is in the past")
	}
	if requestedDate == today && nowMinute >= p.SameDayCutoffMin {
		return apperr.New(apperr.CodeOutsideBookingWindow, "past same-day booking cutoff")
	}
	return nil
}

// CheckMinServiceDuration is I5: total_duration_min must be at least the
// policy minimum.
func CheckMinServiceDuration(p Policy, totalDuration int) error {
	if totalDuration < p.MinServiceDurMin {
		return apperr.New(apperr.CodeInvalidRequest, "total duration below minimum service duration")
	}
	return nil
}
