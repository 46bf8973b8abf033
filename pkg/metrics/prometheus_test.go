package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, collector *Collector) string {
	t.Helper()
	w := httptest.NewRecorder()
	NewPrometheusHandler(collector).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Unexpected content type %q", ct)
	}
	return w.Body.String()
}

func TestPrometheusHandler_Samples(t *testing.T) {
	collector := NewCollector()

	// One learner session: two captures, one bad, one converted with a
	// sir,4 fallback and saved
	collector.LearnerState(true)
	collector.CaptureReceived()
	collector.CaptureReceived()
	collector.PreProcessed(true, 3)
	collector.PreProcessed(false, 0)
	collector.Sir4Fallback()
	collector.Converted("sir,4")
	collector.Converted("sir,3")
	collector.ConversionFailed()
	collector.CommandSaved()
	collector.ClientConnected("a")

	body := scrape(t, collector)

	tests := []string{
		"sircodec_captures_total 2",
		"sircodec_learner_learning 1",
		`sircodec_preprocess_total{result="ok"} 1`,
		`sircodec_preprocess_total{result="error"} 1`,
		"sircodec_frames_collapsed_total 2",
		`sircodec_conversions_total{format="sir,3"} 1`,
		`sircodec_conversions_total{format="sir,4"} 1`,
		"sircodec_sir4_fallbacks_total 1",
		"sircodec_conversion_errors_total 1",
		"sircodec_commands_saved_total 1",
		"sircodec_ws_clients_active 1",
	}
	for _, want := range tests {
		t.Run(want, func(t *testing.T) {
			if !strings.Contains(body, want+"\n") {
				t.Errorf("Missing sample %q in:\n%s", want, body)
			}
		})
	}
}

func TestPrometheusHandler_Format(t *testing.T) {
	body := scrape(t, NewCollector())

	// Every sample follows the HELP and TYPE lines of its family
	var family string
	for _, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "# HELP "):
			family = strings.Fields(line)[2]
		case strings.HasPrefix(line, "# TYPE "):
			fields := strings.Fields(line)
			if fields[2] != family {
				t.Errorf("TYPE for %s follows HELP for %s", fields[2], family)
			}
			if fields[3] != "counter" && fields[3] != "gauge" {
				t.Errorf("Unexpected type %q for %s", fields[3], family)
			}
		default:
			if !strings.HasPrefix(line, family) {
				t.Errorf("Sample %q outside its family %s", line, family)
			}
		}
	}

	// No conversions yet: the family is announced without samples
	if strings.Contains(body, "sircodec_conversions_total{") {
		t.Error("Expected no conversion samples on a fresh collector")
	}
	if !strings.Contains(body, "# TYPE sircodec_conversions_total counter") {
		t.Error("Expected the conversions family header")
	}
}

func TestPrometheusServer(t *testing.T) {
	collector := NewCollector()
	collector.CommandSaved()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := NewPrometheusServer(PrometheusConfig{Enabled: true, Port: 0, Path: "/metrics"}, collector, nil)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for server.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	_, port, err := net.SplitHostPort(server.Addr())
	if err != nil {
		t.Fatalf("Server did not report an address: %v", err)
	}

	resp, err := http.Get("http://127.0.0.1:" + port + "/metrics")
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "sircodec_commands_saved_total 1") {
		t.Errorf("Unexpected scrape:\n%s", body)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			t.Errorf("Unexpected error from server: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not stop in time")
	}
}

func TestPrometheusServer_Disabled(t *testing.T) {
	server := NewPrometheusServer(PrometheusConfig{Enabled: false}, NewCollector(), nil)

	if err := server.Start(context.Background()); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	if server.Addr() != "" {
		t.Errorf("Disabled server should not listen, got %s", server.Addr())
	}
}
