package testhelpers

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

// MockPort simulates a serial-attached IR learner for testing. Reads return
// (0, nil) after a short timeout when nothing is queued, like a serial port
// with a read timeout.
type MockPort struct {
	mu        sync.Mutex
	incoming  chan []byte
	rest      []byte
	written   bytes.Buffer
	closed    bool
	timeout   time.Duration
	autoReply bool
}

// NewMockPort creates a mock port that answers learn mode commands
func NewMockPort() *MockPort {
	return &MockPort{
		incoming:  make(chan []byte, 256),
		timeout:   10 * time.Millisecond,
		autoReply: true,
	}
}

// SetAutoReply controls whether "sir,l,1"/"sir,l,0" writes are answered
func (p *MockPort) SetAutoReply(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoReply = on
}

// Feed queues data to be read. Dropped when the port is closed or full.
func (p *MockPort) Feed(data ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for _, d := range data {
		select {
		case p.incoming <- []byte(d):
		default:
			// Buffer full, drop data
		}
	}
}

// FeedCapture queues a capture line terminated the way the learner does
func (p *MockPort) FeedCapture(sir2 string) {
	p.Feed(sir2 + "\r")
}

// Read implements io.Reader
func (p *MockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.rest) > 0 {
		n := copy(b, p.rest)
		p.rest = p.rest[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	select {
	case data, ok := <-p.incoming:
		if !ok {
			return 0, io.EOF
		}
		n := copy(b, data)
		if n < len(data) {
			p.mu.Lock()
			p.rest = append(p.rest, data[n:]...)
			p.mu.Unlock()
		}
		return n, nil
	case <-time.After(p.timeout):
		return 0, nil
	}
}

// Write implements io.Writer
func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	p.written.Write(b)
	reply := p.autoReply
	p.mu.Unlock()

	if reply {
		switch {
		case strings.Contains(string(b), "sir,l,1"):
			p.Feed("RIR,LEARNER,ON\r")
		case strings.Contains(string(b), "sir,l,0"):
			p.Feed("RIR,LEARNER,OFF\r")
		}
	}
	return len(b), nil
}

// Written returns everything written to the port
func (p *MockPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Close closes the port; pending reads return io.EOF once drained
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.incoming)
	return nil
}
