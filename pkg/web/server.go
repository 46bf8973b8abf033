package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/sir-codec/pkg/config"
	"github.com/dbehnke/sir-codec/pkg/logger"
)

// Server serves the codec HTTP API, the websocket push channel and the
// optional frontend
type Server struct {
	config config.WebConfig
	logger *logger.Logger
	server *http.Server
	hub    *WebSocketHub
	api    *API
	addr   string
	mu     sync.RWMutex
}

// NewServer creates a new web server instance
func NewServer(cfg config.WebConfig, deps Deps, log *logger.Logger) *Server {
	log = log.WithComponent("web")
	hub := NewWebSocketHub(log, deps.Collector)
	return &Server{
		config: cfg,
		logger: log,
		hub:    hub,
		api:    NewAPI(deps, hub, log),
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Web server is disabled")
		return nil
	}

	// Start WebSocket hub
	go s.hub.Run(ctx)

	// Create HTTP router
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// API endpoints
	mux.HandleFunc("/api/status", s.api.HandleStatus)
	mux.HandleFunc("/api/preprocess", s.api.HandlePreProcess)
	mux.HandleFunc("/api/convert", s.api.HandleConvert)
	mux.HandleFunc("/api/commands", s.api.HandleCommands)
	mux.HandleFunc("/api/captures", s.api.HandleCaptures)
	mux.HandleFunc("/api/learner", s.api.HandleLearner)

	// WebSocket endpoint
	mux.Handle("/ws", s.hub.Handler())

	s.mountStatic(mux)

	// Determine address
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create HTTP server
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start listener to get actual address (especially for port 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	// Store the actual address
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("Starting web server",
		logger.String("address", s.addr))

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// GetAddr returns the address the server is listening on
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

const frontendDir = "frontend/dist"

// mountStatic serves the frontend from the binary when built with the embed
// tag, otherwise from frontendDir on disk if present
func (s *Server) mountStatic(mux *http.ServeMux) {
	assets, err := embeddedFrontend()
	if err != nil {
		s.logger.Warn("Failed to open embedded frontend", logger.Error(err))
	}
	source := "embedded"
	if assets == nil {
		fi, err := os.Stat(frontendDir)
		if err != nil || !fi.IsDir() {
			s.logger.Info("No frontend assets found; SPA not served", logger.String("dir", frontendDir))
			return
		}
		assets = os.DirFS(frontendDir)
		source = frontendDir
	}

	s.logger.Info("Serving frontend assets", logger.String("source", source))
	mux.Handle("/", spaHandler(assets))
}

// spaHandler serves files from assets. Paths that are not files get
// index.html so client side routes survive a reload.
func spaHandler(assets fs.FS) http.Handler {
	files := http.FileServerFS(assets)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "."
		}
		if fi, err := fs.Stat(assets, name); err != nil || fi.IsDir() {
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}

// GetAPI returns the REST API handlers
func (s *Server) GetAPI() *API {
	return s.api
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *WebSocketHub {
	return s.hub
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "sir-codec",
		"time":    time.Now().Unix(),
	}); err != nil {
		s.logger.Warn("Failed to encode health response", logger.Error(err))
	}
}
