package units

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDivRoundHalfUp(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		num, den, want int
	}{
		{5, 2, 3},
		{4, 2, 2},
		{7, 3, 2},
		{8, 3, 3},
		{0, 7, 0},
		{625000 * 35, 62500, 350},
	}
	for _, tt := range tests {
		got, err := DivRoundHalfUp(tt.num, tt.den)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, tt.want, qt.Commentf("%d/%d", tt.num, tt.den))
	}
}

func TestDivRoundHalfUp_ZeroDenominator(t *testing.T) {
	c := qt.New(t)

	_, err := DivRoundHalfUp(10, 0)
	var divErr *DivisionError
	c.Assert(errors.As(err, &divErr), qt.IsTrue)
	c.Assert(divErr.Numerator, qt.Equals, 10)
}

func TestPeriodConversions(t *testing.T) {
	c := qt.New(t)

	// Per 258 (25.8 µs) -> 38759 Hz, truncated
	freq, err := FrequencyFromPeriod(258)
	c.Assert(err, qt.IsNil)
	c.Assert(freq, qt.Equals, 38759)

	per, err := PeriodFromFrequency(38759)
	c.Assert(err, qt.IsNil)
	c.Assert(per, qt.Equals, 258)

	_, err = FrequencyFromPeriod(0)
	c.Assert(err, qt.ErrorAs, new(*DivisionError))

	_, err = PeriodFromFrequency(0)
	c.Assert(err, qt.ErrorAs, new(*DivisionError))
}

func TestTickCycleConversions(t *testing.T) {
	c := qt.New(t)

	// 16*1888/258 = 117.08 -> 117
	n, err := CyclesFromTicksPer(1888, 258)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 117)

	// 117*258/16 = 1886.6 -> 1887
	t2, err := TicksFromCyclesPer(117, 258)
	c.Assert(err, qt.IsNil)
	c.Assert(t2, qt.Equals, 1887)

	// With Per=160 (62.5 kHz) one cycle is exactly ten ticks.
	n, err = CyclesFromTicks(350, 62500)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 35)

	t2, err = TicksFromCycles(35, 62500)
	c.Assert(err, qt.IsNil)
	c.Assert(t2, qt.Equals, 350)

	us, err := CyclesToMicros(38, 38000)
	c.Assert(err, qt.IsNil)
	c.Assert(us, qt.Equals, 1000)

	us, err = CyclesToMicrosPer(10, 263)
	c.Assert(err, qt.IsNil)
	c.Assert(us, qt.Equals, 263)

	_, err = TicksFromCycles(1, 0)
	c.Assert(err, qt.ErrorAs, new(*DivisionError))
}

func TestMicrosTicks(t *testing.T) {
	c := qt.New(t)

	c.Assert(MicrosToTicks(1600), qt.Equals, 1000)
	c.Assert(MicrosToTicks(9000), qt.Equals, 5625)
	c.Assert(TicksToMicros(1000), qt.Equals, 1600)
	c.Assert(TicksToMicros(6163), qt.Equals, 9861)
}
