// Package units converts IR timing values between the units used by the sir
// wire formats.
//
//   - tick: 1.6 µs, the unit of every sir,2 pulse duration
//   - cycle: one carrier period, the unit of sir,3 and sir,4 durations
//   - Per: carrier period in 0.1 µs steps (sir,2 header field 3)
//   - freq: carrier frequency in Hz (sir,3/sir,4 header field 3)
//
// Every division rounds half-up on integers, matching the firmware that plays
// the codes back.
package units

import "fmt"

const (
	// TickNumerator and TickDenominator express 1 tick = 16/10 µs.
	TickNumerator   = 16
	TickDenominator = 10

	// TicksPerSecondScaled relates ticks to cycles: N = t2*freq/625000.
	TicksPerSecondScaled = 625000

	// PeriodScale converts Per (0.1 µs) to freq (Hz): freq = 10_000_000 / Per.
	PeriodScale = 10_000_000

	// MicrosPerSecond converts cycles to µs: us = N*1_000_000/freq.
	MicrosPerSecond = 1_000_000
)

// DivisionError is returned when a conversion would divide by zero.
type DivisionError struct {
	Numerator int
}

func (e *DivisionError) Error() string {
	return fmt.Sprintf("division by zero (numerator %d)", e.Numerator)
}

// DivRoundHalfUp returns (num + den/2) / den using integer division.
func DivRoundHalfUp(num, den int) (int, error) {
	if den == 0 {
		return 0, &DivisionError{Numerator: num}
	}
	return (num + den/2) / den, nil
}

// CyclesFromTicksPer converts sir,2 ticks to carrier cycles: N = 16*t2/Per.
func CyclesFromTicksPer(t2, per int) (int, error) {
	return DivRoundHalfUp(TickNumerator*t2, per)
}

// TicksFromCyclesPer converts carrier cycles to sir,2 ticks: t2 = N*Per/16.
func TicksFromCyclesPer(n, per int) (int, error) {
	return DivRoundHalfUp(n*per, TickNumerator)
}

// CyclesFromTicks converts sir,2 ticks to carrier cycles: N = t2*freq/625000.
func CyclesFromTicks(t2, freq int) (int, error) {
	return DivRoundHalfUp(t2*freq, TicksPerSecondScaled)
}

// TicksFromCycles converts carrier cycles to sir,2 ticks: t2 = N*625000/freq.
func TicksFromCycles(n, freq int) (int, error) {
	return DivRoundHalfUp(n*TicksPerSecondScaled, freq)
}

// CyclesToMicros converts carrier cycles to microseconds.
func CyclesToMicros(n, freq int) (int, error) {
	return DivRoundHalfUp(n*MicrosPerSecond, freq)
}

// CyclesToMicrosPer converts carrier cycles to microseconds using Per.
func CyclesToMicrosPer(n, per int) (int, error) {
	return DivRoundHalfUp(n*per, TickDenominator)
}

// MicrosToTicks converts microseconds to ticks: round(us/1.6).
func MicrosToTicks(us int) int {
	v, _ := DivRoundHalfUp(us*TickDenominator, TickNumerator)
	return v
}

// TicksToMicros converts ticks to microseconds: round(t2*1.6).
func TicksToMicros(t2 int) int {
	v, _ := DivRoundHalfUp(t2*TickNumerator, TickDenominator)
	return v
}

// FrequencyFromPeriod returns the carrier frequency in Hz for a Per value.
// The division truncates, as the firmware does.
func FrequencyFromPeriod(per int) (int, error) {
	if per == 0 {
		return 0, &DivisionError{Numerator: PeriodScale}
	}
	return PeriodScale / per, nil
}

// PeriodFromFrequency returns Per (0.1 µs) for a carrier frequency in Hz.
func PeriodFromFrequency(freq int) (int, error) {
	return DivRoundHalfUp(PeriodScale, freq)
}
