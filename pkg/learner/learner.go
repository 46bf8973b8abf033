// Package learner talks to a serial-attached IR learner. The learner speaks a
// line protocol: "sir,l,1" and "sir,l,0" switch learning mode on and off, it
// answers "RIR,LEARNER,ON" or "RIR,LEARNER,OFF", and every IR burst it sees
// while learning arrives as one raw "sir,2,..." line.
package learner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/metrics"
)

// Protocol strings
const (
	CmdLearnOn  = "sir,l,1\r"
	CmdLearnOff = "sir,l,0\r"
	ReplyOn     = "RIR,LEARNER,ON"
	ReplyOff    = "RIR,LEARNER,OFF"

	capturePrefix = "sir,2,"
)

const (
	readBufferSize = 4096
	maxLineLength  = 16384 // A full 900 pulse capture is under 6 KiB
)

// ErrNotConnected is returned by SetLearning before Run has a port.
var ErrNotConnected = errors.New("learner not connected")

// Config holds learner connection settings
type Config struct {
	PortPath    string
	BaudRate    int
	ReadTimeout time.Duration
}

// CaptureHandler receives every raw sir,2 capture line.
type CaptureHandler func(raw string)

// StateHandler receives learning mode changes reported by the learner.
type StateHandler func(learning bool)

// Learner reads captures from an IR learner
type Learner struct {
	config    Config
	collector *metrics.Collector
	log       *logger.Logger

	mu        sync.Mutex
	rw        io.ReadWriter
	learning  bool
	onCapture CaptureHandler
	onState   StateHandler
}

// New creates a new learner. collector may be nil.
func New(config Config, collector *metrics.Collector, log *logger.Logger) *Learner {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.BaudRate == 0 {
		config.BaudRate = 115200
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 500 * time.Millisecond
	}

	return &Learner{
		config:    config,
		collector: collector,
		log:       log.WithComponent("learner"),
	}
}

// OnCapture sets the capture handler
func (l *Learner) OnCapture(h CaptureHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCapture = h
}

// OnStateChange sets the learning mode handler
func (l *Learner) OnStateChange(h StateHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onState = h
}

// Learning reports the last learning mode the learner confirmed
func (l *Learner) Learning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.learning
}

// Connected reports whether Run currently owns a port
func (l *Learner) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rw != nil
}

// Ports lists the serial ports present on the system
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Open opens the configured serial port
func (l *Learner) Open() (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: l.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(l.config.PortPath, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.config.PortPath, err)
	}
	if err := port.SetReadTimeout(l.config.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return port, nil
}

// Start opens the serial port and runs until ctx is cancelled
func (l *Learner) Start(ctx context.Context) error {
	port, err := l.Open()
	if err != nil {
		return err
	}
	defer port.Close()

	l.log.Info("Learner connected",
		logger.String("port", l.config.PortPath),
		logger.Int("baud", l.config.BaudRate))

	return l.Run(ctx, port)
}

// Run reads lines from rw until ctx is cancelled or rw fails. A read that
// returns no data and no error is treated as a read timeout.
func (l *Learner) Run(ctx context.Context, rw io.ReadWriter) error {
	l.mu.Lock()
	l.rw = rw
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.rw = nil
		l.mu.Unlock()
	}()

	buf := make([]byte, readBufferSize)
	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := rw.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = l.drain(pending)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.log.Info("Learner closed the connection")
				return nil
			}
			return fmt.Errorf("learner read: %w", err)
		}
	}
}

// drain handles every complete line in pending and returns the remainder.
func (l *Learner) drain(pending []byte) []byte {
	for {
		i := bytes.IndexAny(pending, "\r\n")
		if i < 0 {
			break
		}
		l.handleLine(string(pending[:i]))
		pending = pending[i+1:]
	}

	if len(pending) > maxLineLength {
		l.log.Warn("Dropping oversized line", logger.Int("bytes", len(pending)))
		return nil
	}
	return pending
}

func (l *Learner) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	switch {
	case strings.Contains(line, ReplyOn):
		l.setLearning(true)
	case strings.Contains(line, ReplyOff):
		l.setLearning(false)
	case strings.HasPrefix(line, capturePrefix):
		l.log.Debug("Capture received", logger.Int("bytes", len(line)))
		if l.collector != nil {
			l.collector.CaptureReceived()
		}
		l.mu.Lock()
		h := l.onCapture
		l.mu.Unlock()
		if h != nil {
			h(line)
		}
	default:
		l.log.Debug("Ignoring line", logger.String("line", line))
	}
}

func (l *Learner) setLearning(on bool) {
	l.mu.Lock()
	l.learning = on
	h := l.onState
	l.mu.Unlock()

	l.log.Info("Learner mode changed", logger.Bool("learning", on))
	if l.collector != nil {
		l.collector.LearnerState(on)
	}
	if h != nil {
		h(on)
	}
}

// SetLearning asks the learner to enter or leave learning mode. The mode
// reported by Learning changes once the learner confirms it.
func (l *Learner) SetLearning(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rw == nil {
		return ErrNotConnected
	}
	cmd := CmdLearnOff
	if on {
		cmd = CmdLearnOn
	}
	if _, err := io.WriteString(l.rw, cmd); err != nil {
		return fmt.Errorf("failed to send %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}
