package sir

import (
	"strconv"
	"strings"
)

// nearSir4 reports whether v lies strictly inside ref ± (2 + 1% of ref).
func nearSir4(ref, v int) bool {
	tol := 2 + 0.01*float64(ref)
	return float64(ref)-tol < float64(v) && float64(v) < float64(ref)+tol
}

// EncodeSir4 compresses a compatibility array into the multi-reference sir,4
// format. Interior pulses are clustered into at most Sir4MaxReferences
// reference times, each written as a letter ('A' = first reference). Runs of
// four A/B letters collapse into one lowercase letter whose low nibble flags
// the B positions.
//
// ok is false with a nil error when more references are needed than the
// format can address. Hard precondition failures return a *CompressError.
func EncodeSir4(p []int) (string, bool, error) {
	if len(p) == 0 || p[OffsetCount] < Sir4MinCount {
		count := 0
		if len(p) > 0 {
			count = p[OffsetCount]
		}
		return "", false, countTooSmall(count, Sir4MinCount)
	}
	count := p[OffsetCount]
	if len(p) < count {
		return "", false, countTooSmall(len(p), count)
	}
	last := count - 2

	// refs is 1-based; one spare slot absorbs the entry that trips the cap.
	refs := make([]int, Sir4MaxReferences+2)
	n := 0
	for i := 8; i < last; i++ {
		if p[i] < MinPulseTime {
			return "", false, timeTooSmall(p[i])
		}
		n++
		refs[n] = p[i]

		equal := 0
		for j := 8; j < last; j++ {
			if nearSir4(p[j], p[i]) {
				equal++
			}
		}
		// Drops the newest slot when the pulse already has a reference. The
		// count can fall short of the distinct times for borderline values.
		if equal > 1 {
			seen := 0
			for j := 1; j <= n; j++ {
				if nearSir4(refs[j], p[i]) {
					seen++
				}
			}
			if seen > 1 {
				n--
			}
		}

		if n > Sir4MaxReferences {
			return "", false, nil
		}
	}

	var b strings.Builder
	b.WriteString(PrefixSir4)
	for i := 0; i < 8; i++ {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p[i]))
	}
	b.WriteByte(',')

	run := make([]byte, 0, Sir4RunLength)
	flags := 0
	for i := 8; i < last; i++ {
		c := byte(Sir4DefaultLetter)
		for j := 1; j <= n; j++ {
			if nearSir4(refs[j], p[i]) {
				c = byte('@' + j)
			}
		}

		run = append(run, c)
		switch c {
		case 'A':
		case 'B':
			flags |= 1 << (len(run) - 1)
		default:
			b.Write(run)
			run = run[:0]
			flags = 0
		}

		if len(run) == Sir4RunLength {
			b.WriteByte(byte('a' + flags))
			run = run[:0]
			flags = 0
		}
	}
	b.Write(run)

	for i := last; i < count; i++ {
		if p[i] < MinPulseTime {
			return "", false, timeTooSmall(p[i])
		}
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p[i]))
	}

	for j := 1; j <= n; j++ {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(refs[j]))
	}

	return b.String(), true, nil
}
