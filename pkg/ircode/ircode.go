// Package ircode sequences the parser, converters and frame pipeline into the
// two operations the tools call: PreProcess cleans up a raw sir,2 capture and
// Convert turns a command into the short (sir,3/sir,4) or long (sir,2) form.
package ircode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dbehnke/sir-codec/pkg/frame"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/metrics"
	"github.com/dbehnke/sir-codec/pkg/sir"
)

// CodeType selects the output family of Convert.
type CodeType string

const (
	CodeShort CodeType = "Iluflex Short" // sir,3, falling back to sir,4
	CodeLong  CodeType = "Iluflex Long"  // sir,2
)

// Accepted argument ranges. Values outside them fall back to the defaults.
const (
	DefaultPauseThreshold = 40000
	minPauseThreshold     = 1000 // exclusive
	maxPauseThreshold     = 80000

	DefaultMaxFrames = 3
	maxMaxFrames     = 4

	DefaultRepeat = 1
	maxRepeat     = 3

	DefaultChannel = 1
	maxChannel     = 126
)

var (
	// ErrUnknownFormat is returned by Convert for anything but sir,2/3/4.
	ErrUnknownFormat = errors.New("unknown format, expected sir,2 or sir,3/sir,4")

	// ErrNotCompressible is returned when neither sir,3 nor sir,4 can hold
	// the capture.
	ErrNotCompressible = errors.New("capture cannot be compressed to sir,3 or sir,4")
)

// Conversion is the outcome of Convert.
type Conversion struct {
	Converted string `json:"converted"`
	PlotData  string `json:"plot_data"` // sir,2 rendition of Converted, empty if it cannot be expanded
	Format    string `json:"format"`
}

// Codec runs conversions. The zero value is not usable; call New.
type Codec struct {
	log     *logger.Logger
	metrics *metrics.Collector
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger attaches a logger. Frame diagnostics are logged at debug level.
func WithLogger(log *logger.Logger) Option {
	return func(c *Codec) {
		c.log = log
	}
}

// WithMetrics counts every call in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Codec) {
		c.metrics = collector
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	c.log = c.log.WithComponent("ircode")
	return c
}

// PreProcess cleans up a raw sir,2 capture. pauseThreshold must lie strictly
// between 1000 and 80000 ticks and maxFrames within 1..4; other values are
// replaced by 40000 and 3.
func (c *Codec) PreProcess(cmd string, pauseThreshold, maxFrames int, normalize bool) (*frame.Result, error) {
	if pauseThreshold <= minPauseThreshold || pauseThreshold >= maxPauseThreshold {
		pauseThreshold = DefaultPauseThreshold
	}
	if maxFrames < 1 || maxFrames > maxMaxFrames {
		maxFrames = DefaultMaxFrames
	}

	r, err := frame.Extract(strings.TrimSpace(cmd), pauseThreshold, maxFrames, normalize, frame.WithLogger(c.log))
	if err != nil {
		c.log.Warn("Pre-processing failed", logger.Error(err))
		if c.metrics != nil {
			c.metrics.PreProcessed(false, 0)
		}
		return nil, fmt.Errorf("pre-process: %w", err)
	}

	c.log.Info("Capture pre-processed",
		logger.Int("total_frames", r.TotalFramesReceived),
		logger.Int("equal_frames", r.EqualFramesDetected),
		logger.Int("returned_frames", r.ReturnedFrames),
		logger.Int("pairs", r.PairsPreserved),
		logger.Bool("normalized", r.PulsesNormalized))
	if c.metrics != nil {
		c.metrics.PreProcessed(true, r.EqualFramesDetected)
	}
	return r, nil
}

// Convert rewrites cmd in the family selected by code, with the given header
// repeat (1..3) and channel (1..126); out of range values become 1.
//
// CodeLong expands sir,3/sir,4 to sir,2 and passes sir,2 through. CodeShort
// compresses sir,2 to sir,3, falling back to sir,4 when the pulses do not fit
// the two-symbol alphabet, and passes sir,3/sir,4 through.
func (c *Codec) Convert(cmd string, code CodeType, repeat, channel int) (*Conversion, error) {
	if repeat < 1 || repeat > maxRepeat {
		repeat = DefaultRepeat
	}
	if channel < 1 || channel > maxChannel {
		channel = DefaultChannel
	}

	conv, err := c.convert(strings.TrimSpace(cmd), code, repeat, channel)
	if err != nil {
		c.log.Warn("Conversion failed", logger.String("code_type", string(code)), logger.Error(err))
		if c.metrics != nil {
			c.metrics.ConversionFailed()
		}
		return nil, err
	}

	c.log.Info("Command converted",
		logger.String("code_type", string(code)),
		logger.String("format", conv.Format),
		logger.Int("repeat", repeat),
		logger.Int("channel", channel))
	if c.metrics != nil {
		c.metrics.Converted(conv.Format)
	}
	return conv, nil
}

func (c *Codec) convert(cmd string, code CodeType, repeat, channel int) (*Conversion, error) {
	format := sir.FormatOf(cmd)

	if code == CodeLong {
		switch format {
		case "3", "4":
			out, err := sir.DecodeToSir2(cmd)
			if err != nil {
				return nil, fmt.Errorf("expand sir,%s: %w", format, err)
			}
			out = sir.UpdateRepeatChannel(out, repeat, channel)
			return &Conversion{Converted: out, PlotData: out, Format: sir.PrefixSir2}, nil
		case "2":
			out := sir.UpdateRepeatChannel(cmd, repeat, channel)
			return &Conversion{Converted: out, PlotData: out, Format: sir.PrefixSir2}, nil
		}
		return nil, ErrUnknownFormat
	}

	switch format {
	case "2":
		out, err := c.compress(cmd)
		if err != nil {
			return nil, err
		}
		out = sir.UpdateRepeatChannel(out, repeat, channel)
		return &Conversion{Converted: out, PlotData: c.plot(out), Format: sir.Prefix + sir.FormatOf(out)}, nil
	case "3", "4":
		out := sir.UpdateRepeatChannel(cmd, repeat, channel)
		return &Conversion{Converted: out, PlotData: c.plot(out), Format: sir.Prefix + format}, nil
	}
	return nil, ErrUnknownFormat
}

// compress parses a sir,2 command and encodes it as sir,3, or as sir,4 when
// sir,3 soft-fails. Typed encoder errors are returned as is.
func (c *Codec) compress(cmd string) (string, error) {
	pulses, ok := sir.Parse(cmd + "\r")
	if !ok || len(pulses) == 0 {
		return "", fmt.Errorf("%w: sir,2 command could not be parsed", sir.ErrMalformed)
	}

	out, ok, err := sir.EncodeSir3(pulses)
	if err != nil {
		return "", fmt.Errorf("compress sir,3: %w", err)
	}
	if ok {
		return out, nil
	}

	c.log.Debug("Falling back to sir,4", logger.Int("count", pulses[0]))
	if c.metrics != nil {
		c.metrics.Sir4Fallback()
	}
	out, ok, err = sir.EncodeSir4(pulses)
	if err != nil {
		return "", fmt.Errorf("compress sir,4: %w", err)
	}
	if !ok {
		return "", ErrNotCompressible
	}
	return out, nil
}

func (c *Codec) plot(cmd string) string {
	out, err := sir.DecodeToSir2(cmd)
	if err != nil {
		c.log.Debug("No plot data", logger.Error(err))
		return ""
	}
	return strings.TrimSpace(out)
}
