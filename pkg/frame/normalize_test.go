package frame

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/dbehnke/sir-codec/internal/testhelpers"
)

// jitteredPairs alternates bit0 and bit1 pairs with ±10 tick jitter that
// averages out to the nominal timings.
func jitteredPairs() []Pair {
	jitter := []int{-10, 0, 10, 0}
	pairs := []Pair{{testhelpers.StartOn, testhelpers.StartOff}}
	for k := 0; k < 32; k++ {
		d := jitter[k%4]
		if k%2 == 0 {
			pairs = append(pairs, Pair{testhelpers.BitOn + d, testhelpers.Bit0Off + d})
		} else {
			pairs = append(pairs, Pair{testhelpers.BitOn + d, testhelpers.Bit1Off + d})
		}
	}
	return append(pairs, Pair{testhelpers.FinalOn, testhelpers.FinalOff})
}

func TestNormalizeBitPulses(t *testing.T) {
	c := qt.New(t)

	pairs := jitteredPairs()
	got, n := NormalizeBitPulses(pairs, DefaultTolerance)

	c.Assert(n.Applied, qt.IsTrue)
	c.Assert(n.AvgOn, qt.Equals, 350.0)
	c.Assert(n.AvgOff0, qt.Equals, 350.0)
	c.Assert(n.AvgOff1, qt.Equals, 1050.0)
	c.Assert(n.Outliers, qt.HasLen, 0)

	c.Assert(got, qt.HasLen, len(pairs))
	c.Assert(got[0], qt.Equals, pairs[0])
	c.Assert(got[len(got)-1], qt.Equals, pairs[len(pairs)-1])
	for i := 1; i < len(got)-1; i++ {
		want := Pair{350, 350}
		if i%2 == 0 {
			want = Pair{350, 1050}
		}
		c.Assert(got[i], qt.Equals, want, qt.Commentf("pair %d", i))
	}
}

func TestNormalizeBitPulses_Outlier(t *testing.T) {
	c := qt.New(t)

	pairs := jitteredPairs()
	pairs[6] = Pair{900, 350}

	got, n := NormalizeBitPulses(pairs, DefaultTolerance)
	c.Assert(n.Applied, qt.IsTrue)
	c.Assert(n.Outliers, qt.DeepEquals, []int{6})
	c.Assert(got[6], qt.Equals, Pair{900, 350})
	c.Assert(got[5], qt.Equals, Pair{350, 350})
}

func TestNormalizeBitPulses_Idempotent(t *testing.T) {
	c := qt.New(t)

	once, _ := NormalizeBitPulses(jitteredPairs(), DefaultTolerance)
	twice, n := NormalizeBitPulses(once, DefaultTolerance)
	c.Assert(n.Applied, qt.IsTrue)
	c.Assert(twice, qt.DeepEquals, once)
}

func TestNormalizeBitPulses_SoftFail(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Pair
	}{
		{"single pair", []Pair{{100, 100}}},
		{"no interior pairs", []Pair{{100, 100}, {100, 25000}}},
		{"only bit0", PairsOf(testhelpers.NECPulses("00000000"))},
		{"single bit1 sample", PairsOf(testhelpers.NECPulses("00000001"))},
		{"only long offs", []Pair{{100, 100}, {10, 900}, {10, 900}, {100, 25000}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			got, n := NormalizeBitPulses(tt.pairs, DefaultTolerance)
			c.Assert(n.Applied, qt.IsFalse)
			c.Assert(n.Reason, qt.Not(qt.Equals), "")
			c.Assert(got, qt.DeepEquals, tt.pairs)
		})
	}
}
