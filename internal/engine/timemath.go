// Package engine implements the pure scheduling core: C2 TimeMath, C4
// Timeline Builder, C5 Availability Engine, C6 Booking Coordinator, C7
// Capacity & Policy, and the keyed-mutex lock and sequence counters C6
// and C8 share. Nothing here touches a database or a socket except
// through the Repository and EventPublisher interfaces, and scheduling
// decisions read the time only through the Clock interface. TimeMath,
// the Timeline Builder and the Availability Engine are synchronous and
// never suspend; the Coordinator waits on the lock and the repository.
package engine

import "fmt"

// MinutesPerDay bounds the minutes-since-midnight representation; a
// computed end at or beyond it is a midnight rollover and is rejected
// rather than wrapped (§4.1: "Midnight rollover is disallowed").
const MinutesPerDay = 24 * 60

// ToMinutes parses "HH:MM" into minutes since midnight.
func ToMinutes(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid HH:MM %q: %w", hhmm, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid HH:MM %q: out of range", hhmm)
	}
	return h*60 + m, nil
}

// ToHHMM renders minutes since midnight as "HH:MM".
func ToHHMM(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ToHHMMSS renders minutes since midnight as "HH:MM:SS", the start_time
// format named in §6 (appointments themselves store integer minutes).
func ToHHMMSS(min int) string {
	return fmt.Sprintf("%02d:%02d:00", min/60, min%60)
}

// To12h renders minutes since midnight in 12-hour display form, e.g.
// 510 -> "8:30 AM".
func To12h(min int) string {
	h := min / 60
	m := min % 60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}

// IntervalsOverlap implements the half-open overlap rule of §4.1:
// a_start < b_end && b_start < a_end.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// CrossesLunch reports whether [start, start+duration) overlaps
// [lunchStart, lunchEnd) under the same half-open rule.
func CrossesLunch(start, duration, lunchStart, lunchEnd int) bool {
	return IntervalsOverlap(start, start+duration, lunchStart, lunchEnd)
}

// EndWithinDay rejects any computed end at or beyond 24:00 — the
// engine never rounds and never wraps past midnight.
func EndWithinDay(end int) bool {
	return end < MinutesPerDay
}
