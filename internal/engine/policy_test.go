package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
	"github.com/barberq/scheduling-core/pkg/apperr"
)

func TestCheckWorkingHourFit(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, engine.CheckWorkingHourFit(p, 8*60, 30))
	assert.NoError(t, engine.CheckWorkingHourFit(p, 16*60+30, 30), "ends exactly at working_end")

	err := engine.CheckWorkingHourFit(p, 16*60+45, 30)
	assert.Equal(t, apperr.CodeWorkingHoursExceeded, apperr.CodeOf(err))

	err = engine.CheckWorkingHourFit(p, 7*60, 30)
	assert.Equal(t, apperr.CodeWorkingHoursExceeded, apperr.CodeOf(err))
}

func TestCheckNoLunchCrossing(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, engine.CheckNoLunchCrossing(p, 10*60, 60))
	err := engine.CheckNoLunchCrossing(p, 11*60+45, 60)
	assert.Equal(t, apperr.CodeLunchConflict, apperr.CodeOf(err))
}

func TestRemainingGapBudget(t *testing.T) {
	p := testPolicy()
	// working 08:00-17:00 (540min) minus lunch (60min) = 480min budget
	// with nothing scheduled.
	assert.Equal(t, 480, engine.RemainingGapBudget(p, 0))
	assert.Equal(t, 180, engine.RemainingGapBudget(p, 300))
	assert.Equal(t, 0, engine.RemainingGapBudget(p, 10000), "never negative")
}

func TestCheckQueueFit(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, engine.CheckQueueFit(p, 0, 0, 480))
	err := engine.CheckQueueFit(p, 0, 0, 481)
	assert.Equal(t, apperr.CodeQueueFull, apperr.CodeOf(err))
}

func TestCheckQueueCap(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, engine.CheckQueueCap(p, p.MaxActiveQueue-1))
	err := engine.CheckQueueCap(p, p.MaxActiveQueue)
	assert.Equal(t, apperr.CodeQueueFull, apperr.CodeOf(err))
}

func TestCheckBarberBookable(t *testing.T) {
	available := models.Barber{Status: models.BarberAvailable}
	busy := models.Barber{Status: models.BarberBusy}
	offline := models.Barber{Status: models.BarberOffline}

	assert.NoError(t, engine.CheckBarberBookable(available, false))
	assert.NoError(t, engine.CheckBarberBookable(busy, false))

	err := engine.CheckBarberBookable(offline, false)
	assert.Equal(t, apperr.CodeBarberOffline, apperr.CodeOf(err))

	err = engine.CheckBarberBookable(available, true)
	assert.Equal(t, apperr.CodeDayOff, apperr.CodeOf(err))
}

func TestCheckBookingWindow(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, engine.CheckBookingWindow(p, "2025-10-10", "2025-10-10", 9*60))
	assert.NoError(t, engine.CheckBookingWindow(p, "2025-10-11", "2025-10-10", 23*60))

	err := engine.CheckBookingWindow(p, "2025-10-09", "2025-10-10", 9*60)
	assert.Equal(t, apperr.CodeOutsideBookingWindow, apperr.CodeOf(err))

	err = engine.CheckBookingWindow(p, "2025-10-10", "2025-10-10", p.SameDayCutoffMin)
	assert.Equal(t, apperr.CodeOutsideBookingWindow, apperr.CodeOf(err))
}

func TestCheckMinServiceDuration(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, engine.CheckMinServiceDuration(p, p.MinServiceDurMin))
	err := engine.CheckMinServiceDuration(p, p.MinServiceDurMin-1)
	assert.Equal(t, apperr.CodeInvalidRequest, apperr.CodeOf(err))
}
