// Package capture handles raw captures coming from the IR learner: every
// capture is pre-processed and logged, and with auto-convert the cleaned up
// command is compressed and stored in the library under a numbered tag.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/frame"
	"github.com/dbehnke/sir-codec/pkg/ircode"
	"github.com/dbehnke/sir-codec/pkg/logger"
)

// Broadcaster receives the events of each processing step
type Broadcaster interface {
	BroadcastCapture(raw string)
	BroadcastPreProcess(r *frame.Result)
	BroadcastConvert(c *ircode.Conversion)
	BroadcastCommandSaved(tag, format, command string)
}

// Config holds the parameters applied to every capture
type Config struct {
	PauseThreshold int
	MaxFrames      int
	Normalize      bool
	CodeType       ircode.CodeType
	Repeat         int
	Channel        int
	AutoConvert    bool
	TagPrefix      string
}

// Outcome is what Handle did with one capture
type Outcome struct {
	Result     *frame.Result
	Conversion *ircode.Conversion
	Tag        string // Set when the conversion was stored
}

// Processor turns learner captures into library commands
type Processor struct {
	config      Config
	codec       *ircode.Codec
	captures    *database.CaptureRepository
	commands    *database.CommandRepository
	broadcaster Broadcaster
	logger      *logger.Logger

	mu  sync.Mutex
	seq int64
}

// Option configures a Processor
type Option func(*Processor)

// WithCaptureLog records every capture and its pre-processing outcome
func WithCaptureLog(repo *database.CaptureRepository) Option {
	return func(p *Processor) {
		p.captures = repo
	}
}

// WithLibrary stores auto-converted commands
func WithLibrary(repo *database.CommandRepository) Option {
	return func(p *Processor) {
		p.commands = repo
	}
}

// WithBroadcaster announces every step
func WithBroadcaster(b Broadcaster) Option {
	return func(p *Processor) {
		p.broadcaster = b
	}
}

// NewProcessor creates a processor. The tag sequence continues after the
// highest number already stored under the tag prefix.
func NewProcessor(cfg Config, codec *ircode.Codec, log *logger.Logger, opts ...Option) (*Processor, error) {
	p := &Processor{
		config: cfg,
		codec:  codec,
		logger: log.WithComponent("capture"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.AutoConvert && p.commands != nil {
		n, err := p.commands.MaxTagSequence(cfg.TagPrefix + "-")
		if err != nil {
			return nil, fmt.Errorf("failed to read the capture tag sequence: %w", err)
		}
		p.seq = n
	}
	return p, nil
}

// Handle processes one raw sir,2 capture. Storage failures are logged and do
// not fail the capture.
func (p *Processor) Handle(raw string) (*Outcome, error) {
	received := time.Now()
	if p.broadcaster != nil {
		p.broadcaster.BroadcastCapture(raw)
	}

	result, err := p.codec.PreProcess(raw, p.config.PauseThreshold, p.config.MaxFrames, p.config.Normalize)
	p.logCapture(raw, result, err, received)
	if err != nil {
		return nil, err
	}
	if p.broadcaster != nil {
		p.broadcaster.BroadcastPreProcess(result)
	}

	out := &Outcome{Result: result}
	if !p.config.AutoConvert {
		return out, nil
	}

	conv, err := p.codec.Convert(result.NewSir2, p.config.CodeType, p.config.Repeat, p.config.Channel)
	if err != nil {
		return out, err
	}
	out.Conversion = conv
	if p.broadcaster != nil {
		p.broadcaster.BroadcastConvert(conv)
	}

	if p.commands == nil {
		return out, nil
	}

	tag, err := p.nextFreeTag()
	if err != nil {
		p.logger.Error("Failed to allocate a capture tag", logger.Error(err))
		return out, nil
	}
	cmd := &database.Command{
		Tag:      tag,
		Format:   conv.Format,
		Command:  conv.Converted,
		Source:   result.NewSir2,
		CodeType: string(p.config.CodeType),
		Repeat:   p.config.Repeat,
		Channel:  p.config.Channel,
	}
	if err := p.commands.Create(cmd); err != nil {
		p.logger.Error("Failed to store command", logger.String("tag", cmd.Tag), logger.Error(err))
		return out, nil
	}

	p.logger.Info("Capture stored",
		logger.String("tag", cmd.Tag),
		logger.String("format", cmd.Format),
		logger.Int("pairs", result.PairsPreserved))
	out.Tag = cmd.Tag
	if p.broadcaster != nil {
		p.broadcaster.BroadcastCommandSaved(cmd.Tag, cmd.Format, cmd.Command)
	}
	return out, nil
}

// maxTagAttempts bounds the search past tags stored by hand or by the API
const maxTagAttempts = 1000

// nextFreeTag returns the next numbered tag not held by a stored command
func (p *Processor) nextFreeTag() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < maxTagAttempts; i++ {
		p.seq++
		tag := fmt.Sprintf("%s-%04d", p.config.TagPrefix, p.seq)
		taken, err := p.commands.Exists(tag)
		if err != nil {
			return "", err
		}
		if !taken {
			return tag, nil
		}
	}
	return "", fmt.Errorf("no free tag after %s-%04d", p.config.TagPrefix, p.seq)
}

func (p *Processor) logCapture(raw string, r *frame.Result, procErr error, received time.Time) {
	if p.captures == nil {
		return
	}

	c := &database.Capture{Raw: raw, ReceivedAt: received}
	if procErr != nil {
		c.Error = truncate(procErr.Error(), 255)
	} else {
		c.Optimized = r.NewSir2
		c.TotalFrames = r.TotalFramesReceived
		c.EqualFrames = r.EqualFramesDetected
		c.Pairs = r.PairsPreserved
		c.DurationMicros = r.DurationMicros
		c.Normalized = r.PulsesNormalized
	}

	if err := p.captures.Create(c); err != nil {
		p.logger.Error("Failed to log capture", logger.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
