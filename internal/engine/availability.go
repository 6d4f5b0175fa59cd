package engine

import "sort"

// SlotKind classifies a candidate grid point, §4.4.
type SlotKind string

const (
	SlotAvailable SlotKind = "available"
	SlotScheduled SlotKind = "scheduled"
	SlotQueue     SlotKind = "queue"
	SlotLunch     SlotKind = "lunch"
	SlotPast      SlotKind = "past"
	SlotFull      SlotKind = "full"
)

// Slot is one candidate grid point in the Availability Engine's output.
type Slot struct {
	StartMinute  int      `json:"start_minute"`
	Kind         SlotKind `json:"slot_kind"`
	Bookable     bool     `json:"bookable"`
	Reason       string   `json:"reason,omitempty"`
	QueuePreview []string `json:"queue_preview,omitempty"` // appointment ids of queue blocks overlapping this slot, if any
}

// blockAt returns the block covering minute m, or nil.
func blockAt(blocks []Block, m int) *Block {
	for i := range blocks {
		if blocks[i].StartMinute <= m && m < blocks[i].EndMinute {
			return &blocks[i]
		}
	}
	return nil
}

// fits reports whether [start, start+duration) ends by working-end,
// does not cross lunch, and overlaps no scheduled or queue block, per
// §4.4's "without overlapping any existing block, without crossing
// lunch, and without exceeding working-end".
func fits(blocks []Block, p Policy, start, duration int) bool {
	end := start + duration
	if !EndWithinDay(end) || end > p.WorkingEndMin {
		return false
	}
	if CrossesLunch(start, duration, p.LunchStartMin, p.LunchEndMin) {
		return false
	}
	for _, b := range blocks {
		if b.Type == BlockGap || b.Type == BlockLunch {
			continue
		}
		if IntervalsOverlap(start, end, b.StartMinute, b.EndMinute) {
			return false
		}
	}
	return true
}

// UnifiedSlots implements §4.4's unified_slots over a fixed 30-minute
// (or configured) candidate grid. blocks must come from BuildTimeline
// for the same (barber, date). isToday/nowMinute implement the "past"
// classification for today's grid.
func UnifiedSlots(blocks []Block, p Policy, serviceDuration int, isToday bool, nowMinute int) []Slot {
	slots := make([]Slot, 0, (p.WorkingEndMin-p.WorkingStartMin)/p.SlotGranularity)
	for start := p.WorkingStartMin; start < p.WorkingEndMin; start += p.SlotGranularity {
		if isToday && start < nowMinute {
			slots = append(slots, Slot{StartMinute: start, Kind: SlotPast, Bookable: false, Reason: "in the past"})
			continue
		}

		b := blockAt(blocks, start)
		if b != nil {
			switch b.Type {
			case BlockLunch:
				slots = append(slots, Slot{StartMinute: start, Kind: SlotLunch, Bookable: false, Reason: "lunch break"})
				continue
			case BlockScheduled:
				slots = append(slots, Slot{StartMinute: start, Kind: SlotScheduled, Bookable: false, Reason: "occupied by a scheduled appointment"})
				continue
			case BlockQueue:
				slots = append(slots, Slot{
					StartMinute:  start,
					Kind:         SlotQueue,
					Bookable:     false,
					Reason:       "occupied by an estimated queue placement",
					QueuePreview: []string{b.AppointmentID},
				})
				continue
			}
		}

		if fits(blocks, p, start, serviceDuration) {
			slots = append(slots, Slot{StartMinute: start, Kind: SlotAvailable, Bookable: true})
		} else {
			slots = append(slots, Slot{StartMinute: start, Kind: SlotFull, Bookable: false, Reason: "service does not fit before the next commitment or working end"})
		}
	}
	return slots
}

// NextAvailable is §4.4's next_available: the earliest bookable slot on
// the same candidate grid, or nil.
func NextAvailable(slots []Slot) *int {
	for _, s := range slots {
		if s.Bookable {
			m := s.StartMinute
			return &m
		}
	}
	return nil
}

// BarberCandidate is one barber's precomputed availability summary, fed
// into ScoreAlternatives by the Query Facade after it has built each
// candidate barber's timeline and slot grid.
type BarberCandidate struct {
	BarberID           string
	AvgRating          float64
	BookableSlotCount  int
	QueueLength        int
	NextAvailableStart *int
}

// BarberOption is §4.4's find_alternatives result row.
type BarberOption struct {
	BarberID       string  `json:"barber_id"`
	NextAvailable  *int    `json:"next_available_min,omitempty"`
	AvailableCount int     `json:"available_count"`
	QueueLength    int     `json:"queue_length"`
	Score          float64 `json:"score"`
}

// ScoreAlternatives sorts candidates by
// (bookable_slot_count desc, queue_length asc, avg_rating desc, barber_id asc),
// §4.4's tie-break order for find_alternatives, and assigns a Score
// (0..1, informational only — the sort order above is authoritative).
func ScoreAlternatives(candidates []BarberCandidate) []BarberOption {
	sorted := make([]BarberCandidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BookableSlotCount != b.BookableSlotCount {
			return a.BookableSlotCount > b.BookableSlotCount
		}
		if a.QueueLength != b.QueueLength {
			return a.QueueLength < b.QueueLength
		}
		if a.AvgRating != b.AvgRating {
			return a.AvgRating > b.AvgRating
		}
		return a.BarberID < b.BarberID
	})

	options := make([]BarberOption, 0, len(sorted))
	for _, c := range sorted {
		score := float64(c.BookableSlotCount) / 16.0
		if score > 1 {
			score = 1
		}
		options = append(options, BarberOption{
			BarberID:       c.BarberID,
			NextAvailable:  c.NextAvailableStart,
			AvailableCount: c.BookableSlotCount,
			QueueLength:    c.QueueLength,
			Score:          score,
		})
	}
	return options
}
