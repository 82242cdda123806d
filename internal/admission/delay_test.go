package admission

import (
	"testing"
	"time"

	"github.com/outreach-hub/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCalculateDelayRange_StaysInWindow(t *testing.T) {
	for _, hour := range []int{3, 10, 12, 19, 23} {
		h := newHarness(t, linkedinProfile())
		h.clock.Set(time.Date(2024, 3, 4, hour, 15, 0, 0, time.UTC))

		for i := 0; i < 500; i++ {
			v := h.ctl.CalculateDelayRange(30, 120)
			assert.GreaterOrEqual(t, v, 30, "hour %d", hour)
			assert.LessOrEqual(t, v, 120, "hour %d", hour)
		}
	}
}

func TestCalculateDelayRange_DegenerateBounds(t *testing.T) {
	h := newHarness(t, linkedinProfile())

	assert.Equal(t, 45, h.ctl.CalculateDelayRange(45, 45))
	assert.Equal(t, 0, h.ctl.CalculateDelayRange(-10, -5))

	for i := 0; i < 100; i++ {
		v := h.ctl.CalculateDelayRange(90, 10)
		assert.GreaterOrEqual(t, v, 10)
		assert.LessOrEqual(t, v, 90)
	}
}

func TestCalculateDelayRange_NightIsSlower(t *testing.T) {
	day := newHarness(t, linkedinProfile())
	night := newHarness(t, linkedinProfile())
	night.clock.Set(time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC))

	var daySum, nightSum int
	for i := 0; i < 1000; i++ {
		daySum += day.ctl.CalculateDelayRange(100, 1000)
		nightSum += night.ctl.CalculateDelayRange(100, 1000)
	}
	assert.Greater(t, nightSum, daySum)
}

func TestCalculateDelay_UsesKindThenPlatformThenDefault(t *testing.T) {
	h := newHarness(t, linkedinProfile(), WithDefaultDelay(models.DelayRange{Min: 5, Max: 5}))

	for i := 0; i < 100; i++ {
		v := h.ctl.CalculateDelay(models.PlatformLinkedIn, models.ActionViewProfile)
		assert.GreaterOrEqual(t, v, 30)
		assert.LessOrEqual(t, v, 120)

		v = h.ctl.CalculateDelay(models.PlatformLinkedIn, models.ActionConnect)
		assert.GreaterOrEqual(t, v, 120)
		assert.LessOrEqual(t, v, 600)
	}
	assert.Equal(t, 5, h.ctl.CalculateDelay("myspace", "poke"))
}

func TestCalculateDelayRange_SpreadsAcrossWindow(t *testing.T) {
	h := newHarness(t, linkedinProfile())

	// With a quarter-window deviation about 4% of draws land on the ceiling once jitter is
	// applied; a sixth-window deviation would put well under 1% there.
	atCeiling := 0
	for i := 0; i < 2000; i++ {
		if h.ctl.CalculateDelayRange(100, 500) == 500 {
			atCeiling++
		}
	}
	assert.Greater(t, atCeiling, 40)
}

func TestSlowdown(t *testing.T) {
	tests := map[int]float64{
		0: 2.0, 7: 2.0, 8: 1.0, 11: 1.0,
		12: 1.3, 14: 1.3, 15: 1.0, 16: 1.0,
		17: 1.2, 19: 1.2, 20: 1.0, 21: 1.0, 22: 2.0, 23: 2.0,
	}
	for hour, want := range tests {
		assert.Equal(t, want, slowdown(hour), "hour %d", hour)
	}
}
