package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
)

func slotAt(slots []engine.Slot, minute int) engine.Slot {
	for _, s := range slots {
		if s.StartMinute == minute {
			return s
		}
	}
	return engine.Slot{}
}

func TestUnifiedSlots_EmptyDayAllAvailableExceptLunch(t *testing.T) {
	p := testPolicy()
	blocks, err := engine.BuildTimeline(nil, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 30, false, 0)
	assert.Equal(t, engine.SlotLunch, slotAt(slots, 12*60).Kind)
	assert.Equal(t, engine.SlotAvailable, slotAt(slots, 8*60).Kind)
	assert.True(t, slotAt(slots, 8*60).Bookable)
	assert.Equal(t, engine.SlotAvailable, slotAt(slots, 16*60+30).Kind, "16:30 + 30min fits exactly before working end")
}

func TestUnifiedSlots_ScheduledOccupiesItsOwnSlot(t *testing.T) {
	p := testPolicy()
	appts := []models.Appointment{scheduledAt("a", 9*60, 45)}
	blocks, err := engine.BuildTimeline(appts, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 30, false, 0)
	got := slotAt(slots, 9*60)
	assert.Equal(t, engine.SlotScheduled, got.Kind)
	assert.False(t, got.Bookable)
}

func TestUnifiedSlots_SlotNotBookableWhenItWouldOverlapNextAppointment(t *testing.T) {
	// A scheduled appointment at 09:30 blocks a would-be 09:00 slot of
	// 45 minutes from being bookable (it would overlap).
	p := testPolicy()
	appts := []models.Appointment{scheduledAt("a", 9*60+30, 30)}
	blocks, err := engine.BuildTimeline(appts, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 45, false, 0)
	got := slotAt(slots, 9*60)
	assert.False(t, got.Bookable)
	assert.Equal(t, engine.SlotFull, got.Kind)
}

func TestUnifiedSlots_PastSlotsForToday(t *testing.T) {
	p := testPolicy()
	blocks, err := engine.BuildTimeline(nil, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 30, true, 10*60)
	assert.Equal(t, engine.SlotPast, slotAt(slots, 9*60).Kind)
	assert.False(t, slotAt(slots, 9*60).Bookable)
	assert.Equal(t, engine.SlotAvailable, slotAt(slots, 10*60).Kind)
}

func TestUnifiedSlots_LunchCrossingDurationRejected(t *testing.T) {
	// A 60min request at the 11:30 grid point crosses lunch even though
	// 11:30 itself isn't inside the lunch block.
	p := testPolicy()
	blocks, err := engine.BuildTimeline(nil, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 60, false, 0)
	got := slotAt(slots, 11*60+30)
	assert.False(t, got.Bookable)
}

func TestNextAvailable_EarliestBookableSlot(t *testing.T) {
	p := testPolicy()
	appts := []models.Appointment{scheduledAt("a", 8*60, 60)}
	blocks, err := engine.BuildTimeline(appts, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 30, false, 0)
	next := engine.NextAvailable(slots)
	require.NotNil(t, next)
	assert.Equal(t, 9*60, *next)
}

func TestNextAvailable_NilWhenFullyBooked(t *testing.T) {
	p := testPolicy()
	// Back-to-back scheduled appointments covering the entire working
	// window minus lunch.
	appts := []models.Appointment{
		scheduledAt("morning", 8*60, 4*60),
		scheduledAt("afternoon", 13*60, 4*60),
	}
	blocks, err := engine.BuildTimeline(appts, p)
	require.NoError(t, err)

	slots := engine.UnifiedSlots(blocks, p, 30, false, 0)
	assert.Nil(t, engine.NextAvailable(slots))
}

func TestScoreAlternatives_OrdersByBookableCountThenQueueThenRatingThenID(t *testing.T) {
	candidates := []engine.BarberCandidate{
		{BarberID: "b2", BookableSlotCount: 5, QueueLength: 2, AvgRating: 4.9},
		{BarberID: "b1", BookableSlotCount: 8, QueueLength: 1, AvgRating: 4.0},
		{BarberID: "b3", BookableSlotCount: 8, QueueLength: 1, AvgRating: 4.5},
		{BarberID: "b4", BookableSlotCount: 8, QueueLength: 0, AvgRating: 3.0},
	}
	options := engine.ScoreAlternatives(candidates)
	require.Len(t, options, 4)
	// b4: fewest queue among the 8-slot tier wins first.
	assert.Equal(t, "b4", options[0].BarberID)
	// b3 beats b1: same slot count and queue length, higher rating.
	assert.Equal(t, "b3", options[1].BarberID)
	assert.Equal(t, "b1", options[2].BarberID)
	assert.Equal(t, "b2", options[3].BarberID)
}

func TestScoreAlternatives_StableIDTiebreak(t *testing.T) {
	candidates := []engine.BarberCandidate{
		{BarberID: "zeta", BookableSlotCount: 4, QueueLength: 0, AvgRating: 5.0},
		{BarberID: "alpha", BookableSlotCount: 4, QueueLength: 0, AvgRating: 5.0},
	}
	options := engine.ScoreAlternatives(candidates)
	require.Len(t, options, 2)
	assert.Equal(t, "alpha", options[0].BarberID)
	assert.Equal(t, "zeta", options[1].BarberID)
}
