package sir

import "github.com/dbehnke/sir-codec/pkg/units"

// ToCompatibility rewrites a parsed sir,2 array into carrier cycle units.
// The period field becomes the carrier frequency and every pulse duration in
// positions 6..count+5 becomes round_half_up(16*t2, Per). Positions past the
// input are read as zero, so the result always holds count+6 values.
func ToCompatibility(p []int) ([]int, bool) {
	if len(p) <= HeaderSize || p[OffsetPeriod] == 0 {
		return nil, false
	}

	per := p[OffsetPeriod]
	end := p[OffsetCount] + HeaderSize
	out := make([]int, max(len(p), end))
	copy(out[:HeaderSize], p[:HeaderSize])

	freq, err := units.FrequencyFromPeriod(per)
	if err != nil {
		return nil, false
	}
	out[OffsetPeriod] = freq

	for i := OffsetPulses; i < end && i < len(p); i++ {
		if p[i] <= 0 {
			continue
		}
		n, err := units.CyclesFromTicksPer(p[i], per)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}

	return out, true
}
