package frame

// Normalization describes what NormalizeBitPulses did.
type Normalization struct {
	Applied  bool
	Reason   string // Why the classifier gave up when Applied is false
	AvgOn    float64
	AvgOff0  float64
	AvgOff1  float64
	Outliers []int // Indices of interior pairs left unchanged
}

type band struct {
	low, high float64
}

func newBand(avg, tolerance float64) band {
	return band{low: avg * (1 - tolerance), high: avg * (1 + tolerance)}
}

func (b band) contains(v int) bool {
	f := float64(v)
	return f >= b.low && f <= b.high
}

func mean(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// NormalizeBitPulses snaps bit pulses to the averages of their clusters.
//
// The first pair (start burst) and the last pair (trailing pause) are kept as
// they are. Interior pairs are classified in three passes: an OFF threshold is
// estimated from all data, the ON/OFF0/OFF1 averages are refined using only
// pairs inside the tolerance bands, and every pair that falls inside the final
// 30% bands is replaced by its cluster average. Pairs outside both bands are
// kept and reported as outliers.
//
// When either cluster has fewer than two samples the input is returned as is.
func NormalizeBitPulses(pairs []Pair, tolerance float64) ([]Pair, Normalization) {
	if len(pairs) <= 1 {
		return pairs, Normalization{Reason: "too few pairs"}
	}
	data := pairs[1 : len(pairs)-1]

	// Pass 1: initial ON average and OFF threshold.
	var onTimes []int
	for _, p := range data {
		if p.On > 0 {
			onTimes = append(onTimes, p.On)
		}
	}
	if len(onTimes) == 0 {
		return pairs, Normalization{Reason: "no ON times"}
	}
	avgOn := mean(onTimes)
	pauseLimit := avgOn * offOutlierFactor

	var validOffs []int
	for _, p := range data {
		if float64(p.Off) < pauseLimit {
			validOffs = append(validOffs, p.Off)
		}
	}
	if len(validOffs) == 0 {
		return pairs, Normalization{Reason: "no OFF times below pause limit"}
	}
	threshold := mean(validOffs)

	onBand := newBand(avgOn, tolerance)
	var on, off0, off1 []int
	for _, p := range data {
		if !onBand.contains(p.On) || float64(p.Off) > pauseLimit {
			continue
		}
		if float64(p.Off) <= threshold {
			off0 = append(off0, p.Off)
		} else {
			off1 = append(off1, p.Off)
		}
		on = append(on, p.On)
	}
	if len(off0) == 0 || len(off1) == 0 {
		return pairs, Normalization{Reason: "missing OFF0 or OFF1 cluster"}
	}
	if len(on) < 2 {
		return pairs, Normalization{Reason: "too few ON times"}
	}

	// Pass 2: refine averages using the pass 1 bands.
	onBand = newBand(mean(on), tolerance)
	off0Band := newBand(mean(off0), tolerance)
	off1Band := newBand(mean(off1), tolerance)

	on, off0, off1 = on[:0], off0[:0], off1[:0]
	for _, p := range data {
		if !onBand.contains(p.On) || float64(p.Off) > off1Band.high {
			continue
		}
		if off0Band.contains(p.Off) {
			off0 = append(off0, p.Off)
		} else if off1Band.contains(p.Off) {
			off1 = append(off1, p.Off)
		}
		on = append(on, p.On)
	}
	if len(off0) < 2 || len(off1) < 2 {
		return pairs, Normalization{Reason: "OFF clusters below two samples"}
	}
	if len(on) < 2 {
		return pairs, Normalization{Reason: "too few ON times"}
	}

	n := Normalization{
		Applied: true,
		AvgOn:   mean(on),
		AvgOff0: mean(off0),
		AvgOff1: mean(off1),
	}

	// Pass 3: replace with the averages using the widened bands.
	onBand = newBand(n.AvgOn, finalTolerance)
	off0Band = newBand(n.AvgOff0, finalTolerance)
	off1Band = newBand(n.AvgOff1, finalTolerance)

	out := make([]Pair, 0, len(pairs))
	out = append(out, pairs[0])
	for i, p := range data {
		switch {
		case !onBand.contains(p.On) || float64(p.Off) > off1Band.high:
			n.Outliers = append(n.Outliers, i+1)
			out = append(out, p)
		case off0Band.contains(p.Off):
			out = append(out, Pair{On: int(n.AvgOn), Off: int(n.AvgOff0)})
		case off1Band.contains(p.Off):
			out = append(out, Pair{On: int(n.AvgOn), Off: int(n.AvgOff1)})
		default:
			n.Outliers = append(n.Outliers, i+1)
			out = append(out, p)
		}
	}
	out = append(out, pairs[len(pairs)-1])

	return out, n
}
