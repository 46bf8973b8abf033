package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/units"
)

const (
	sir2Prefix   = "sir,2,"
	headerFields = 6

	// The count field reserves room for the trailer the encoders expect.
	countReserve = 6
)

// ErrNotSir2 is returned when Extract is given anything but a sir,2 command.
var ErrNotSir2 = errors.New("command must start with 'sir,2,'")

// Result is the outcome of Extract.
type Result struct {
	NewSir2             string        `json:"new_sir2"`
	ReturnedFrames      int           `json:"returned_frames"`
	EqualFramesDetected int           `json:"equal_frames_detected"`
	TotalFramesReceived int           `json:"total_frames_received"`
	PulsesNormalized    bool          `json:"pulses_normalized"`
	PairsPreserved      int           `json:"pairs_preserved"`
	DurationMicros      int           `json:"duration_us"`
	Normalization       Normalization `json:"-"`
}

// Option configures Extract.
type Option func(*options)

type options struct {
	log *logger.Logger
}

// WithLogger logs pipeline diagnostics at debug level.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Extract runs the full pipeline over a sir,2 command: truncate at the first
// pause >= threshold, detect repeated frames (at most maxFrames), and, with
// normalize set, average similar frames and normalize bit pulses. The header
// count of the rebuilt command is 2*pairs+6.
func Extract(sir2 string, threshold, maxFrames int, normalize bool, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !strings.HasPrefix(sir2, sir2Prefix) {
		return nil, ErrNotSir2
	}

	parts := strings.Split(sir2[len(sir2Prefix):], ",")
	if len(parts) < headerFields {
		return nil, fmt.Errorf("sir,2 header has %d fields, want %d", len(parts), headerFields)
	}
	header := make([]string, headerFields)
	for i := range header {
		header[i] = strings.TrimSpace(parts[i])
	}

	values := make([]int, 0, len(parts)-headerFields)
	for i, tok := range parts[headerFields:] {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, fmt.Errorf("invalid pulse %d %q: %w", i, tok, err)
		}
		values = append(values, v)
	}
	pairs := PairsOf(values)

	truncated, maxPause := Truncate(pairs, threshold)
	reps := DetectRepetitions(truncated, maxPause, maxFrames, normalize)

	if o.log != nil {
		o.log.Debug("Frames detected",
			logger.Int("pairs", len(pairs)),
			logger.Int("truncated", len(truncated)),
			logger.Int("max_pause", maxPause),
			logger.Int("total_frames", reps.TotalFrames),
			logger.Int("equal_frames", reps.EqualFrames))
	}

	out := reps.Pairs
	var norm Normalization
	if normalize {
		out, norm = NormalizeBitPulses(out, DefaultTolerance)
		if o.log != nil {
			if norm.Applied {
				o.log.Debug("Bit pulses normalized",
					logger.Float64("avg_on", norm.AvgOn),
					logger.Float64("avg_off0", norm.AvgOff0),
					logger.Float64("avg_off1", norm.AvgOff1),
					logger.Ints("outliers", norm.Outliers))
			} else {
				o.log.Debug("Bit pulses left as captured", logger.String("reason", norm.Reason))
			}
		}
	}

	header[0] = strconv.Itoa(2*len(out) + countReserve)

	flat := Flatten(out)
	fields := make([]string, 0, len(header)+len(flat))
	fields = append(fields, header...)
	total := 0
	for _, v := range flat {
		fields = append(fields, strconv.Itoa(v))
		total += v
	}

	return &Result{
		NewSir2:             sir2Prefix + strings.Join(fields, ","),
		ReturnedFrames:      reps.ReturnedFrames,
		EqualFramesDetected: reps.EqualFrames,
		TotalFramesReceived: reps.TotalFrames,
		PulsesNormalized:    norm.Applied,
		PairsPreserved:      len(out),
		DurationMicros:      units.TicksToMicros(total),
		Normalization:       norm,
	}, nil
}

// PairsOf groups values into ON/OFF pairs. An odd trailing value is dropped.
func PairsOf(values []int) []Pair {
	pairs := make([]Pair, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		pairs = append(pairs, Pair{On: values[i], Off: values[i+1]})
	}
	return pairs
}

// Flatten turns pairs back into a flat ON/OFF sequence.
func Flatten(pairs []Pair) []int {
	out := make([]int, 0, 2*len(pairs))
	for _, p := range pairs {
		out = append(out, p.On, p.Off)
	}
	return out
}
