package library

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/logger"
)

func newSyncDB(t *testing.T) *database.DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "sync.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func libraryServer(t *testing.T, entries []Entry) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	if err := Export(&buf, entries); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	body := buf.Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncer_Sync(t *testing.T) {
	db := newSyncDB(t)
	repo := db.Commands()

	// One stale copy of a shared command and one local-only command
	if err := repo.Create(&database.Command{Tag: "power", Format: "sir,3", Command: "sir,3,stale"}); err != nil {
		t.Fatalf("Failed to seed command: %v", err)
	}
	if err := repo.Create(&database.Command{Tag: "local", Format: "sir,3", Command: necSir3}); err != nil {
		t.Fatalf("Failed to seed command: %v", err)
	}

	srv := libraryServer(t, sampleEntries())
	s := NewSyncer(srv.URL, time.Hour, repo, logger.New(logger.Config{Level: "error"}))

	n, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 entries received, got %d", n)
	}

	if count, _ := repo.Count(); count != 4 {
		t.Errorf("Expected 4 commands, got %d", count)
	}
	power, err := repo.GetByTag("power")
	if err != nil {
		t.Fatalf("Missing power: %v", err)
	}
	if power.Command != necSir3 {
		t.Errorf("Expected power to be updated, got %s", power.Command)
	}
	if _, err := repo.GetByTag("local"); err != nil {
		t.Errorf("Local command should survive a sync: %v", err)
	}

	// A second sync changes nothing
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if count, _ := repo.Count(); count != 4 {
		t.Errorf("Expected 4 commands after resync, got %d", count)
	}
}

func TestSyncer_Sync_Errors(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})

	t.Run("bad status", func(t *testing.T) {
		db := newSyncDB(t)
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		s := NewSyncer(srv.URL, time.Hour, db.Commands(), log)
		if _, err := s.Sync(context.Background()); err == nil {
			t.Fatal("Expected an error for a 404 response")
		}
	})

	t.Run("invalid document", func(t *testing.T) {
		db := newSyncDB(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("version: 1\ncommands:\n  - tag: ok\n    command: " + necSir3 + "\n  - tag: \"\"\n    command: " + necSir3 + "\n"))
		}))
		defer srv.Close()

		s := NewSyncer(srv.URL, time.Hour, db.Commands(), log)
		if _, err := s.Sync(context.Background()); err == nil {
			t.Fatal("Expected an error for an entry without a tag")
		}
		if count, _ := db.Commands().Count(); count != 0 {
			t.Errorf("Nothing should be stored from a rejected document, got %d", count)
		}
	})

	t.Run("oversized document", func(t *testing.T) {
		db := newSyncDB(t)
		srv := libraryServer(t, sampleEntries())

		s := NewSyncer(srv.URL, time.Hour, db.Commands(), log)
		s.maxBytes = 64
		if _, err := s.Sync(context.Background()); err == nil {
			t.Fatal("Expected an error for a document over the size limit")
		}
		if count, _ := db.Commands().Count(); count != 0 {
			t.Errorf("Nothing should be stored from an oversized document, got %d", count)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		db := newSyncDB(t)
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		s := NewSyncer(url, time.Hour, db.Commands(), log)
		if _, err := s.Sync(context.Background()); err == nil {
			t.Fatal("Expected an error for a closed server")
		}
	})
}

func TestNewSyncer_DefaultInterval(t *testing.T) {
	db := newSyncDB(t)
	s := NewSyncer("http://127.0.0.1:1/lib.yaml", 0, db.Commands(), logger.New(logger.Config{Level: "error"}))
	if s.interval != DefaultSyncInterval {
		t.Errorf("Expected default interval, got %v", s.interval)
	}
	if s.maxBytes != MaxSyncBytes {
		t.Errorf("Expected a %d byte limit, got %d", MaxSyncBytes, s.maxBytes)
	}
	if s.client == nil || s.repo == nil || s.logger == nil {
		t.Error("Syncer is missing dependencies")
	}
}

func TestSyncer_Start_Cancellation(t *testing.T) {
	db := newSyncDB(t)
	srv := libraryServer(t, sampleEntries())
	s := NewSyncer(srv.URL, time.Hour, db.Commands(), logger.New(logger.Config{Level: "error"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := db.Commands().Count(); n == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n, _ := db.Commands().Count(); n != 3 {
		t.Errorf("Expected the startup sync to store 3 commands, got %d", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}
