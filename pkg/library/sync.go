package library

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/logger"
)

const (
	// DefaultSyncInterval is used when the syncer is created without one
	DefaultSyncInterval = 24 * time.Hour
	// SyncBatchSize for library upserts
	SyncBatchSize = 500
	// MaxSyncBytes caps the downloaded document
	MaxSyncBytes = 8 << 20
)

// Syncer keeps the local library up to date with a shared YAML library
// published over HTTP. Entries are upserted by tag; local commands missing
// from the shared library are left alone.
type Syncer struct {
	url      string
	interval time.Duration
	maxBytes int64
	repo     *database.CommandRepository
	logger   *logger.Logger
	client   *http.Client
}

// NewSyncer creates a syncer for url
func NewSyncer(url string, interval time.Duration, repo *database.CommandRepository, log *logger.Logger) *Syncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Syncer{
		url:      url,
		interval: interval,
		maxBytes: MaxSyncBytes,
		repo:     repo,
		logger:   log.WithComponent("library-sync"),
		client: &http.Client{
			Timeout: time.Minute,
		},
	}
}

// Start syncs once and then on every interval until ctx is cancelled
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting library sync", logger.String("url", s.url))
	if _, err := s.Sync(ctx); err != nil {
		s.logger.Error("Failed to sync library on startup", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Library syncer stopped")
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil {
				s.logger.Error("Failed to sync library", logger.Error(err))
			}
		}
	}
}

// Sync downloads the shared library and stores its entries. It returns the
// number of entries received. A document that fails validation is rejected
// as a whole.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/yaml, text/yaml, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download library: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read library: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		return 0, fmt.Errorf("library document exceeds %d bytes", s.maxBytes)
	}

	entries, err := Import(bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	if err := s.repo.UpsertBatch(ToCommands(entries), SyncBatchSize); err != nil {
		return 0, fmt.Errorf("failed to save commands: %w", err)
	}

	count, _ := s.repo.Count()
	s.logger.Info("Library sync complete",
		logger.Int("received", len(entries)),
		logger.Int64("total_commands", count),
		logger.String("duration", time.Since(start).String()))

	return len(entries), nil
}
