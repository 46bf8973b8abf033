package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/sir-codec/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

type sample struct {
	labels string
	value  uint64
}

type family struct {
	name    string
	help    string
	kind    string
	samples []sample
}

func (f family) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "# HELP %s %s\n", f.name, f.help)
	fmt.Fprintf(b, "# TYPE %s %s\n", f.name, f.kind)
	for _, s := range f.samples {
		fmt.Fprintf(b, "%s%s %d\n", f.name, s.labels, s.value)
	}
}

func single(v uint64) []sample {
	return []sample{{value: v}}
}

func (h *PrometheusHandler) families() []family {
	c := h.collector
	learning := uint64(0)
	if c.IsLearning() {
		learning = 1
	}
	ok, failed := c.GetPreProcessed()

	var conversions []sample
	for _, format := range c.GetConversionFormats() {
		conversions = append(conversions, sample{
			labels: fmt.Sprintf("{format=%q}", format),
			value:  c.GetConversions(format),
		})
	}

	return []family{
		{"sircodec_captures_total", "Total raw captures read from the learner", "counter", single(c.GetCapturesReceived())},
		{"sircodec_learner_learning", "Whether the learner is in learning mode", "gauge", single(learning)},
		{"sircodec_preprocess_total", "Pre-processing runs by result", "counter", []sample{
			{labels: `{result="ok"}`, value: ok},
			{labels: `{result="error"}`, value: failed},
		}},
		{"sircodec_frames_collapsed_total", "Repeated frames removed by averaging", "counter", single(c.GetFramesCollapsed())},
		{"sircodec_conversions_total", "Successful conversions by output format", "counter", conversions},
		{"sircodec_sir4_fallbacks_total", "sir,3 tolerance failures retried as sir,4", "counter", single(c.GetSir4Fallbacks())},
		{"sircodec_conversion_errors_total", "Conversions that returned an error", "counter", single(c.GetConversionErrors())},
		{"sircodec_commands_saved_total", "Commands stored in the library", "counter", single(c.GetCommandsSaved())},
		{"sircodec_ws_clients_active", "Number of connected websocket clients", "gauge", single(uint64(c.GetActiveClients()))},
	}
}

// ServeHTTP writes the collector in the Prometheus text format
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var b strings.Builder
	for _, f := range h.families() {
		f.writeTo(&b)
	}
	_, _ = w.Write([]byte(b.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server

	mu   sync.RWMutex
	addr string
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	// Start server
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Addr returns the listening address, empty until Start has bound the port
func (s *PrometheusServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
