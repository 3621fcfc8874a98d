// Package progress derives the elapsed-time display and ring fractions
// shown while a shift is running.
package progress

import (
	"math"
	"time"

	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

const (
	// StandardDaySeconds is the regular working day mapped onto one ring.
	StandardDaySeconds = 8 * 60 * 60
	// Circumference is the ring stroke length the dash offsets refer to.
	Circumference = 691.0
	// DefaultGraceSeconds is the length of the cancellable clock-out window.
	DefaultGraceSeconds = 10
)

// Snapshot is the state of the timer display at one instant.
type Snapshot struct {
	ElapsedSeconds int64
	Clock          string
	Regular        float64
	Overtime       float64
}

// Zero is the display after the timer stops.
var Zero = Snapshot{Clock: "00:00:00"}

// Elapsed returns whole seconds between clockIn and now, never negative.
func Elapsed(now, clockIn time.Time) int64 {
	sec := int64(math.Floor(now.Sub(clockIn).Seconds()))
	if sec < 0 {
		return 0
	}
	return sec
}

// Regular is the fraction of the standard day covered by elapsed seconds.
func Regular(elapsed int64) float64 {
	return math.Min(float64(elapsed)/StandardDaySeconds, 1)
}

// Overtime is the fraction of a second standard day worked past the first.
func Overtime(elapsed int64) float64 {
	over := math.Max(float64(elapsed-StandardDaySeconds), 0)
	return math.Min(over/StandardDaySeconds, 1)
}

// Grace is the remaining fraction of the clock-out window.
func Grace(remaining, window int) float64 {
	if window <= 0 {
		window = DefaultGraceSeconds
	}
	if remaining <= 0 {
		return 0
	}
	return math.Min(float64(remaining)/float64(window), 1)
}

// DashOffset converts a fraction to the ring's stroke dash offset.
func DashOffset(fraction float64) float64 {
	return Circumference - fraction*Circumference
}

// Compute builds the display for a shift that started at clockIn.
func Compute(now, clockIn time.Time) Snapshot {
	e := Elapsed(now, clockIn)
	return Snapshot{
		ElapsedSeconds: e,
		Clock:          timecalc.FormatDurationHHMMSS(e),
		Regular:        Regular(e),
		Overtime:       Overtime(e),
	}
}
