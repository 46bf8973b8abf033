package sir

import (
	"strconv"
	"strings"
)

// sir3Packer packs bit flags into 16-bit words written back into the pulse
// array starting at Sir3FirstWordPos.
type sir3Packer struct {
	p    []int
	word int
	bit  int
}

// add records one bit and returns the array position of its word. A word is
// written once the eighth bit overall has been reached.
func (w *sir3Packer) add(set bool) int {
	loc := w.bit/Sir3BitsPerWord + Sir3FirstWordPos
	pos := w.bit % Sir3BitsPerWord

	if pos == 0 {
		w.word = Sir3WordBase
	}
	if set {
		w.word |= Sir3BitMasks[pos]
		if mask := sir3ClearMasks[pos]; mask != 0 {
			w.word &= mask
		}
	}

	if w.bit >= Sir3BitsPerWord-1 {
		for loc >= len(w.p) {
			w.p = append(w.p, 0)
		}
		w.p[loc] = w.word
	}

	w.bit++
	return loc
}

func nearSir3(v, ref int) bool {
	return v >= ref-Sir3Tolerance && v <= ref+Sir3Tolerance
}

// EncodeSir3 compresses a compatibility array into the two-level bit-packed
// sir,3 format. The pair at positions 8/9 is the bit0 reference and the first
// pair that differs from it becomes bit1.
//
// ok is false with a nil error when a pair matches neither reference; the
// caller may then try EncodeSir4. Hard precondition failures return a
// *CompressError. The input slice is not modified.
func EncodeSir3(pulses []int) (string, bool, error) {
	if len(pulses) == 0 || pulses[OffsetCount] < Sir3MinCount {
		count := 0
		if len(pulses) > 0 {
			count = pulses[OffsetCount]
		}
		return "", false, countTooSmall(count, Sir3MinCount)
	}
	count := pulses[OffsetCount]
	if len(pulses) < count {
		return "", false, countTooSmall(len(pulses), count)
	}
	if pulses[8] < MinPulseTime || pulses[9] < MinPulseTime {
		return "", false, timeTooSmall(pulses[8], pulses[9])
	}

	w := &sir3Packer{p: append([]int(nil), pulses...)}
	on0, off0 := pulses[8], pulses[9]
	on1, off1 := 0, 0

	pos := w.add(false)
	for i := 10; i < count-2; i += 2 {
		on, off := w.p[i], w.p[i+1]
		if on < MinPulseTime || off < MinPulseTime {
			return "", false, timeTooSmall(on, off)
		}

		switch {
		case nearSir3(on, on0) && nearSir3(off, off0):
			pos = w.add(false)
		case on1 == 0:
			on1, off1 = on, off
			pos = w.add(true)
		case nearSir3(on, on1) && nearSir3(off, off1):
			pos = w.add(true)
		default:
			return "", false, nil
		}
	}

	if on1 == 0 {
		on1, off1 = on0, off0
	}

	p := w.p
	p[10] = on1
	p[11] = off1

	// Keep the final pair verbatim so captures with odd terminations survive.
	p[pos+1] = p[count-2]
	p[pos+2] = p[count-1]

	totalBits := (count - 10) / 2
	last := (totalBits-1)/Sir3BitsPerWord + Sir3FirstWordPos

	var b strings.Builder
	b.WriteString(PrefixSir3)
	for i := 0; i < Sir3FirstWordPos; i++ {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p[i]))
	}
	b.WriteByte(',')
	for i := Sir3FirstWordPos; i <= last; i++ {
		b.WriteByte(byte(p[i] >> 8 & 0xFF))
		b.WriteByte(byte(p[i] & 0xFF))
	}
	for i := last + 1; i <= last+2; i++ {
		if p[i] < MinPulseTime {
			return "", false, timeTooSmall(p[i])
		}
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p[i]))
	}

	return b.String(), true, nil
}
