package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/dbehnke/sir-codec/pkg/config"
	"github.com/dbehnke/sir-codec/pkg/logger"
)

func TestServer_New(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    8080,
	}

	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, Deps{Defaults: testDefaults()}, log)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}

	if srv.config.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", srv.config.Port)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0, // Use any available port
	}

	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, Deps{Defaults: testDefaults()}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Wait a bit for server to start
	time.Sleep(100 * time.Millisecond)

	// Cancel context to stop server
	cancel()

	// Wait for server to stop
	err := <-errChan
	if err != nil && err != context.Canceled && err != http.ErrServerClosed {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0, // Use any available port
	}

	log := logger.New(logger.Config{Level: "info"})
	srv := NewServer(cfg, Deps{Defaults: testDefaults()}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Start server
	go func() {
		if err := srv.Start(ctx); err != nil && err != context.Canceled && err != http.ErrServerClosed {
			t.Logf("srv.Start error: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	// Get the actual address the server is listening on
	addr := srv.GetAddr()
	if addr == "" {
		t.Fatal("Server address is empty")
	}

	// Test health endpoint
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("Failed to request health endpoint: %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("resp.Body.Close error: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestServer_Disabled(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(config.WebConfig{Enabled: false}, Deps{}, log)

	if err := srv.Start(context.Background()); err != nil {
		t.Errorf("Expected nil error for disabled server, got %v", err)
	}
	if srv.GetAddr() != "" {
		t.Errorf("Disabled server should not listen, got %s", srv.GetAddr())
	}
}

func TestServer_Routes(t *testing.T) {
	cfg := config.WebConfig{Enabled: true, Host: "localhost", Port: 0}
	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(cfg, Deps{Defaults: testDefaults()}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = srv.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	addr := srv.GetAddr()
	if addr == "" {
		t.Fatal("Server address is empty")
	}

	body := `{"command": "` + necSir3 + `", "code_type": "Iluflex Long"}`
	resp, err := http.Post("http://"+addr+"/api/convert", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to post convert: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// No library configured
	resp2, err := http.Get("http://" + addr + "/api/commands")
	if err != nil {
		t.Fatalf("Failed to get commands: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp2.StatusCode)
	}
}

func TestSPAHandler(t *testing.T) {
	assets := fstest.MapFS{
		"index.html":    {Data: []byte("<html>index</html>")},
		"assets/app.js": {Data: []byte("console.log('app')")},
	}
	h := spaHandler(assets)

	tests := []struct {
		path string
		want string
	}{
		{"/", "<html>index</html>"},
		{"/assets/app.js", "console.log('app')"},
		{"/library/tv-power", "<html>index</html>"},
		{"/assets", "<html>index</html>"},
		{"/../../etc/passwd", "<html>index</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got := w.Body.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildInfo(t *testing.T) {
	orig := CurrentBuildInfo()
	defer SetBuildInfo(orig)

	SetBuildInfo(BuildInfo{Version: "1.2.0", Commit: "abc123"})
	info := CurrentBuildInfo()
	if info.Version != "1.2.0" || info.Commit != "abc123" {
		t.Errorf("Unexpected build info %+v", info)
	}
	if info.BuildTime != orig.BuildTime {
		t.Errorf("Empty build time should keep %q, got %q", orig.BuildTime, info.BuildTime)
	}
	if got := info.String(); !strings.Contains(got, "1.2.0") || !strings.Contains(got, "abc123") {
		t.Errorf("Unexpected string %q", got)
	}
}
