package admission

import "math"

// slowdown returns the pacing multiplier for the local hour: lunch (12-14), the evening
// commute (17-19) and off hours (before 8, after 21).
func slowdown(hour int) float64 {
	switch {
	case hour >= 12 && hour <= 14:
		return 1.3
	case hour >= 17 && hour <= 19:
		return 1.2
	case hour < 8 || hour > 21:
		return 2.0
	default:
		return 1.0
	}
}

// CalculateDelay returns the pause in seconds to take before the next action of this kind.
func (c *Controller) CalculateDelay(platform, kind string) int {
	window := c.defaultDelay
	if profile, ok := c.profiles.Lookup("", platform); ok {
		if d := profile.DelayFor(kind); d.Max > 0 {
			window = d
		}
	}
	return c.CalculateDelayRange(window.Min, window.Max)
}

// CalculateDelayRange draws a human-like delay from a normal distribution centred in
// [minSec, maxSec] with a quarter of the window as standard deviation, applies the time-of-day
// slowdown and up to 10% jitter. The result is clamped back into the window, so the slowdown
// only pushes draws towards maxSec.
func (c *Controller) CalculateDelayRange(minSec, maxSec int) int {
	if maxSec < minSec {
		minSec, maxSec = maxSec, minSec
	}
	if minSec < 0 {
		minSec = 0
	}
	if maxSec <= minSec {
		return minSec
	}

	lo, hi := float64(minSec), float64(maxSec)
	mean := (lo + hi) / 2
	stddev := (hi - lo) / 4

	c.rngMu.Lock()
	v := c.rng.NormFloat64()*stddev + mean
	jitter := c.rng.Float64() * 0.10
	c.rngMu.Unlock()

	v = clamp(v, lo, hi)
	v *= slowdown(c.now().In(c.loc).Hour())
	v *= 1 + jitter
	return int(math.Round(clamp(v, lo, hi)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
