// Package history records visible visits to hosts so the resolution
// pipeline can judge whether the user is familiar with a download's
// referrer.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type hostVisits struct {
	Count      int       `json:"count"`
	FirstVisit time.Time `json:"first_visit"`
	LastVisit  time.Time `json:"last_visit"`
}

// Store provides in-memory and file-based storage for host visit counts.
type Store struct {
	mu     sync.RWMutex
	visits map[string]*hostVisits
	file   string
	logger *slog.Logger
}

// NewStore creates a Store and loads persisted visits from the file if it
// exists.
func NewStore(filePath string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		visits: make(map[string]*hostVisits),
		file:   filepath.Clean(filePath),
		logger: logger,
	}
	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("failed to load history from file: %w", err)
	}
	logger.Info("history store initialized", "file_path", s.file, "hosts_count", len(s.visits))
	return s, nil
}

func (s *Store) restore() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.visits); err != nil {
		return fmt.Errorf("failed to unmarshal history file: %w", err)
	}
	return nil
}

func (s *Store) persist() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.visits, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal visits: %w", err)
	}

	tempFile := s.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, s.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// RecordVisit registers a visible visit to the host of rawURL.
func (s *Store) RecordVisit(rawURL string, at time.Time) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	v, ok := s.visits[host]
	if !ok {
		v = &hostVisits{FirstVisit: at}
		s.visits[host] = v
	}
	if at.Before(v.FirstVisit) {
		v.FirstVisit = at
	}
	if at.After(v.LastVisit) {
		v.LastVisit = at
	}
	v.Count++
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return fmt.Errorf("failed to save history after visit: %w", err)
	}
	return nil
}

// VisibleVisitCountToHost asynchronously looks up the visit count for the
// host of referrerURL. The callback receives ok=false when the referrer has
// no usable host.
func (s *Store) VisibleVisitCountToHost(referrerURL string, cb func(ok bool, count int, firstVisit time.Time)) {
	go func() {
		host, err := hostOf(referrerURL)
		if err != nil {
			s.logger.Debug("history lookup with invalid referrer", "referrer", referrerURL, "error", err)
			cb(false, 0, time.Time{})
			return
		}

		s.mu.RLock()
		v, ok := s.visits[host]
		s.mu.RUnlock()

		if !ok {
			cb(true, 0, time.Time{})
			return
		}
		cb(true, v.Count, v.FirstVisit)
	}()
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("no host in url: %s", rawURL)
	}
	return host, nil
}
