// Package frame cleans up raw sir,2 captures before they are compressed.
//
// A capture usually holds the same IR frame several times, separated by long
// pauses, with jitter on every pulse. The pipeline keeps the first burst,
// splits it into frames, averages frames that agree, and snaps bit pulses to
// their cluster averages.
package frame

import "math"

// Tolerances and ratios used by the pipeline
const (
	DefaultTolerance = 0.2  // Frame similarity and first two classifier passes
	finalTolerance   = 0.3  // Classifier pass 3
	boundaryRatio    = 0.95 // OFF above this share of the max pause ends a frame
	minBoundaryIndex = 3    // Pairs at or below this index never end a frame
	offOutlierFactor = 5    // OFF times above avgOn*5 are pauses, not bits
)

// Pair is one ON/OFF pulse pair in ticks.
type Pair struct {
	On  int
	Off int
}

// Repetitions is the outcome of DetectRepetitions.
type Repetitions struct {
	Pairs          []Pair
	EqualFrames    int // Frames similar to the first one (0 when only one)
	ReturnedFrames int // Frames represented by Pairs
	TotalFrames    int // Frames found before filtering
}

// Truncate cuts pairs at the first OFF time >= threshold. The cut pair keeps
// its ON time and takes the largest OFF time seen before it. The second
// result is that largest OFF time; when nothing is cut it is the largest OFF
// time of the whole capture and pairs are returned unchanged.
func Truncate(pairs []Pair, threshold int) ([]Pair, int) {
	maxPause := 0
	for i, p := range pairs {
		if p.Off >= threshold {
			out := make([]Pair, i, i+1)
			copy(out, pairs[:i])
			return append(out, Pair{On: p.On, Off: maxPause}), maxPause
		}
		maxPause = max(maxPause, p.Off)
	}
	return pairs, maxPause
}

// DetectRepetitions splits pairs into frames at every OFF time above 95% of
// maxPause. With normalize set, only frames as long as the first are kept and
// similar frames are averaged into one; otherwise the kept frames are
// concatenated. At most maxFrames frames are considered.
func DetectRepetitions(pairs []Pair, maxPause, maxFrames int, normalize bool) Repetitions {
	maxFrames = max(maxFrames, 1)

	all := splitFrames(pairs, maxPause)
	if len(all) == 0 {
		return Repetitions{Pairs: pairs}
	}

	base := len(all[0])
	frames := make([][]Pair, 0, maxFrames)
	for _, f := range all {
		if !normalize || len(f) == base {
			frames = append(frames, f)
		}
		if len(frames) >= maxFrames {
			break
		}
	}
	if len(frames) == 0 {
		frames = all[:min(maxFrames, len(all))]
	}

	similar := [][]Pair{frames[0]}
	for _, f := range frames[1:] {
		if BlocksAreSimilar(frames[0], f, DefaultTolerance) {
			similar = append(similar, f)
		}
	}

	r := Repetitions{TotalFrames: len(all)}
	switch {
	case len(similar) > 1 && normalize:
		r.Pairs = AverageBlocks(similar)
		r.EqualFrames = len(similar)
		r.ReturnedFrames = 1
	case len(similar) > 1:
		r.Pairs = concat(frames)
		r.EqualFrames = len(similar)
		r.ReturnedFrames = len(frames)
	default:
		r.Pairs = concat(frames)
		r.ReturnedFrames = len(frames)
	}
	return r
}

func splitFrames(pairs []Pair, maxPause int) [][]Pair {
	limit := float64(maxPause) * boundaryRatio

	bounds := []int{0}
	for i, p := range pairs {
		if float64(p.Off) > limit && i > minBoundaryIndex {
			bounds = append(bounds, i+1)
		}
	}
	if bounds[len(bounds)-1] < len(pairs) {
		bounds = append(bounds, len(pairs))
	}

	var frames [][]Pair
	for i := 0; i+1 < len(bounds); i++ {
		if f := pairs[bounds[i]:bounds[i+1]]; len(f) > 0 {
			frames = append(frames, f)
		}
	}
	return frames
}

func concat(frames [][]Pair) []Pair {
	var out []Pair
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// BlocksAreSimilar reports whether two frames have the same length and every
// ON and OFF time differs by at most tolerance of the larger value.
func BlocksAreSimilar(a, b []Pair, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !within(a[i].On, b[i].On, tolerance) || !within(a[i].Off, b[i].Off, tolerance) {
			return false
		}
	}
	return true
}

func within(x, y int, tolerance float64) bool {
	diff := math.Abs(float64(x - y))
	return diff <= float64(max(x, y))*tolerance
}

// AverageBlocks averages equally long frames pair by pair, rounding half to
// even.
func AverageBlocks(blocks [][]Pair) []Pair {
	if len(blocks) == 0 {
		return nil
	}
	n := float64(len(blocks))
	out := make([]Pair, len(blocks[0]))
	for i := range out {
		var on, off int
		for _, b := range blocks {
			on += b[i].On
			off += b[i].Off
		}
		out[i] = Pair{
			On:  int(math.RoundToEven(float64(on) / n)),
			Off: int(math.RoundToEven(float64(off) / n)),
		}
	}
	return out
}
