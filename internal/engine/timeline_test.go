package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
)

func testPolicy() engine.Policy {
	return engine.Policy{
		WorkingStartMin:  8 * 60,
		WorkingEndMin:    17 * 60,
		LunchStartMin:    12 * 60,
		LunchEndMin:      13 * 60,
		SlotGranularity:  30,
		MinServiceDurMin: 30,
		MaxActiveQueue:   15,
		SameDayCutoffMin: 16*60 + 30,
		EventBufferSize:  64,
	}
}

func scheduledAt(id string, start, duration int) models.Appointment {
	s := start
	return models.Appointment{
		ID:               id,
		Kind:             models.KindScheduled,
		StartMinute:      &s,
		TotalDurationMin: duration,
		Status:           models.StatusPending,
		Priority:         models.PriorityNormal,
	}
}

func queued(id string, position int, duration int, priority models.Priority) models.Appointment {
	p := position
	return models.Appointment{
		ID:               id,
		Kind:             models.KindQueue,
		QueuePosition:    &p,
		TotalDurationMin: duration,
		Status:           models.StatusPending,
		Priority:         priority,
	}
}

// Block-finding helper for assertions below.
func findBlock(t *testing.T, blocks []engine.Block, apptID string) engine.Block {
	t.Helper()
	for _, b := range blocks {
		if b.AppointmentID == apptID {
			return b
		}
	}
	t.Fatalf("block for appointment %q not found in %+v", apptID, blocks)
	return engine.Block{}
}

func TestBuildTimeline_EmptyDayIsOneGapAroundLunch(t *testing.T) {
	blocks, err := engine.BuildTimeline(nil, testPolicy())
	require.NoError(t, err)

	// gap [08:00,12:00), lunch [12:00,13:00), gap [13:00,17:00)
	require.Len(t, blocks, 3)
	assert.Equal(t, engine.BlockGap, blocks[0].Type)
	assert.Equal(t, 480, blocks[0].StartMinute)
	assert.Equal(t, 720, blocks[0].EndMinute)
	assert.Equal(t, engine.BlockLunch, blocks[1].Type)
	assert.Equal(t, 720, blocks[1].StartMinute)
	assert.Equal(t, 780, blocks[1].EndMinute)
	assert.Equal(t, engine.BlockGap, blocks[2].Type)
	assert.Equal(t, 780, blocks[2].StartMinute)
	assert.Equal(t, 1020, blocks[2].EndMinute)
}

func TestBuildTimeline_Deterministic(t *testing.T) {
	// PR2: equal inputs produce equal outputs.
	appts := []models.Appointment{
		scheduledAt("a", 9*60, 45),
		queued("q1", 1, 30, models.PriorityNormal),
		queued("q2", 2, 30, models.PriorityHigh),
	}
	p := testPolicy()

	first, err := engine.BuildTimeline(appts, p)
	require.NoError(t, err)
	second, err := engine.BuildTimeline(appts, p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildTimeline_QueueFillsGapBeforeScheduled(t *testing.T) {
	// Scenario 3 from spec §8: scheduled at 09:30/30, queue duration 30
	// should land in the 08:00-09:30 gap at its start.
	appts := []models.Appointment{
		scheduledAt("sched", 9*60+30, 30),
		queued("q1", 1, 30, models.PriorityNormal),
	}
	blocks, err := engine.BuildTimeline(appts, testPolicy())
	require.NoError(t, err)

	qBlock := findBlock(t, blocks, "q1")
	assert.Equal(t, engine.BlockQueue, qBlock.Type)
	assert.Equal(t, 8*60, qBlock.StartMinute)
	assert.Equal(t, 8*60+30, qBlock.EndMinute)
}

func TestBuildTimeline_QueueDoesNotCrossLunch(t *testing.T) {
	// A 90-minute queue item is placed in a gap where it fits entirely
	// before lunch, never in a way that runs into the lunch block.
	appts := []models.Appointment{
		scheduledAt("sched", 11*60, 60), // 11:00-12:00, butts against lunch
		queued("q1", 1, 90, models.PriorityNormal),
	}
	blocks, err := engine.BuildTimeline(appts, testPolicy())
	require.NoError(t, err)

	qBlock := findBlock(t, blocks, "q1")
	// Only an 8:00-11:00 gap (180min) precedes the scheduled block; 90
	// fits there without crossing lunch since it ends well before 11:00.
	assert.Equal(t, 8*60, qBlock.StartMinute)
	assert.Equal(t, 8*60+90, qBlock.EndMinute)
}

func TestBuildTimeline_QueuePriorityOrdering(t *testing.T) {
	// urgent < high < normal < low; priority_rank governs gap-fill order
	// regardless of stored queue_position.
	appts := []models.Appointment{
		queued("low", 1, 30, models.PriorityLow),
		queued("urgent", 2, 30, models.PriorityUrgent),
		queued("normal", 3, 30, models.PriorityNormal),
	}
	blocks, err := engine.BuildTimeline(appts, testPolicy())
	require.NoError(t, err)

	urgent := findBlock(t, blocks, "urgent")
	normal := findBlock(t, blocks, "normal")
	low := findBlock(t, blocks, "low")
	assert.True(t, urgent.StartMinute < normal.StartMinute)
	assert.True(t, normal.StartMinute < low.StartMinute)
}

func TestBuildTimeline_RemainingQueueAfterScheduledAppendsAtCursor(t *testing.T) {
	// More queue items than fit in the pre-scheduled gap continue after
	// the last scheduled block, honoring lunch and working-end.
	appts := []models.Appointment{
		scheduledAt("sched", 8*60+30, 30), // 08:30-09:00, leaves 08:00-08:30 gap only
		queued("q1", 1, 30, models.PriorityNormal),
		queued("q2", 2, 30, models.PriorityNormal),
	}
	blocks, err := engine.BuildTimeline(appts, testPolicy())
	require.NoError(t, err)

	q1 := findBlock(t, blocks, "q1")
	q2 := findBlock(t, blocks, "q2")
	assert.Equal(t, 8*60, q1.StartMinute)
	assert.Equal(t, 8*60+30, q1.EndMinute)
	// q2 can't fit in the (empty) remaining pre-scheduled gap, so it
	// appends after the scheduled block.
	assert.Equal(t, 9*60, q2.StartMinute)
	assert.Equal(t, 9*60+30, q2.EndMinute)
}

func TestBuildTimeline_RejectsCorruptSnapshotCrossingLunch(t *testing.T) {
	appts := []models.Appointment{
		scheduledAt("bad", 11*60+45, 60), // 11:45-12:45 crosses lunch
	}
	_, err := engine.BuildTimeline(appts, testPolicy())
	require.Error(t, err)
}

func TestBuildTimeline_RejectsCorruptSnapshotExceedingWorkingHours(t *testing.T) {
	appts := []models.Appointment{
		scheduledAt("bad", 16*60+45, 60), // ends at 17:45, past working_end
	}
	_, err := engine.BuildTimeline(appts, testPolicy())
	require.Error(t, err)
}

func TestBuildTimeline_CancelledAndInactiveRowsAreCallerFiltered(t *testing.T) {
	// BuildTimeline trusts its input is already the active-status
	// snapshot (§4.3); a cancelled row passed in by mistake would still
	// occupy a block, so this documents the caller's contract rather
	// than re-filtering inside the builder.
	appts := []models.Appointment{scheduledAt("sched", 9*60, 30)}
	appts[0].Status = models.StatusCancelled
	blocks, err := engine.BuildTimeline(appts, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, engine.BlockScheduled, findBlock(t, blocks, "sched").Type)
}
