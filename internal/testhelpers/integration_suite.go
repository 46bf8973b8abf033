package testhelpers

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dbehnke/sir-codec/pkg/config"
	"github.com/dbehnke/sir-codec/pkg/logger"
)

// IntegrationSuite provides infrastructure for integration tests
type IntegrationSuite struct {
	T         *testing.T
	Config    *config.Config
	Logger    *logger.Logger
	Ctx       context.Context
	Cancel    context.CancelFunc
	MockPorts []*MockPort
}

// NewIntegrationSuite creates a new integration test suite
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
	})

	return &IntegrationSuite{
		T:         t,
		Config:    CreateDefaultConfig(t.TempDir()),
		Logger:    log,
		Ctx:       ctx,
		Cancel:    cancel,
		MockPorts: make([]*MockPort, 0),
	}
}

// CreateMockPort creates a new mock learner port and adds it to the suite
func (s *IntegrationSuite) CreateMockPort() *MockPort {
	port := NewMockPort()
	s.MockPorts = append(s.MockPorts, port)
	return port
}

// GetFreePort gets a free port for testing
func (s *IntegrationSuite) GetFreePort() int {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		s.T.Fatal(err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.T.Fatal(err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}

// Cleanup cleans up resources
func (s *IntegrationSuite) Cleanup() {
	// Close all mock ports
	for _, port := range s.MockPorts {
		_ = port.Close()
	}

	// Cancel context
	s.Cancel()
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// CreateDefaultConfig creates a default test configuration with the
// database stored under dir
func CreateDefaultConfig(dir string) *config.Config {
	return &config.Config{
		Codec: config.CodecConfig{
			PauseThreshold: 40000,
			MaxFrames:      3,
			Normalize:      true,
			CodeType:       config.CodeTypeShort,
			Repeat:         1,
			Channel:        1,
		},
		Learner: config.LearnerConfig{
			Enabled:     false,
			AutoConvert: true,
			TagPrefix:   "capture",
		},
		Web: config.WebConfig{
			Enabled: false,
			Host:    "127.0.0.1",
		},
		Database: config.DatabaseConfig{
			Enabled: true,
			Path:    dir + "/sir-codec.db",
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "text",
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
		},
	}
}
