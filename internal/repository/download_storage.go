package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veranemoloko/download-resolver/internal/domain"
	errpkg "github.com/veranemoloko/download-resolver/internal/errors"
)

// downloadRecord is the persisted form of a download, flattening the
// fields the domain type guards behind accessors.
type downloadRecord struct {
	ID                  uuid.UUID              `json:"id"`
	Request             domain.DownloadRequest `json:"request"`
	State               domain.DownloadState   `json:"state"`
	DangerType          domain.DangerType      `json:"danger_type"`
	FullPath            string                 `json:"full_path,omitempty"`
	LastInterruptReason domain.InterruptReason `json:"last_interrupt_reason"`
	TargetInfo          *domain.TargetInfo     `json:"target_info,omitempty"`
	BytesReceived       int64                  `json:"bytes_received"`
	Error               string                 `json:"error,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func toRecord(d *domain.Download) downloadRecord {
	return downloadRecord{
		ID:                  d.ID,
		Request:             d.Request,
		State:               d.State(),
		DangerType:          d.DangerType(),
		FullPath:            d.FullPath(),
		LastInterruptReason: d.LastInterruptReason(),
		TargetInfo:          d.TargetInfo(),
		BytesReceived:       d.BytesReceived(),
		Error:               d.Error(),
		CreatedAt:           d.CreatedAt(),
		UpdatedAt:           d.UpdatedAt(),
	}
}

func fromRecord(rec downloadRecord) *domain.Download {
	d := domain.NewDownload(rec.Request)
	d.ID = rec.ID
	d.SetState(rec.State)
	d.SetDangerType(rec.DangerType)
	d.SetFullPath(rec.FullPath)
	d.SetLastInterruptReason(rec.LastInterruptReason)
	if rec.TargetInfo != nil {
		d.SetTargetInfo(rec.TargetInfo)
	}
	d.SetBytesReceived(rec.BytesReceived)
	if rec.Error != "" {
		d.SetError(rec.Error)
	}
	d.RestoreTimestamps(rec.CreatedAt, rec.UpdatedAt)
	return d
}

// DownloadStorage provides in-memory and file-based storage for downloads.
type DownloadStorage struct {
	mu        sync.RWMutex
	downloads map[uuid.UUID]*domain.Download
	file      string
}

// NewDownloadStorage creates a new DownloadStorage and loads downloads from
// the file if it exists.
func NewDownloadStorage(filePath string) (*DownloadStorage, error) {
	repo := &DownloadStorage{
		downloads: make(map[uuid.UUID]*domain.Download),
		file:      filepath.Clean(filePath),
	}

	if err := repo.restoreDownloads(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	slog.Info("download repository initialized", "file_path", repo.file, "downloads_count", len(repo.downloads))
	return repo, nil
}

func (r *DownloadStorage) restoreDownloads() error {
	data, err := os.ReadFile(r.file)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("state file does not exist, starting with empty state", "file_path", r.file)
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		slog.Warn("state file is empty")
		return nil
	}

	var records []downloadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	for _, rec := range records {
		r.downloads[rec.ID] = fromRecord(rec)
	}

	slog.Info("state loaded from file", "downloads_count", len(records), "file_path", r.file)
	return nil
}

func (r *DownloadStorage) persistDownloads() error {
	r.mu.RLock()
	records := make([]downloadRecord, 0, len(r.downloads))
	for _, d := range r.downloads {
		records = append(records, toRecord(d))
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal downloads: %w", err)
	}

	tempFile := r.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, r.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	slog.Debug("state saved to file", "downloads_count", len(records), "file_path", r.file)
	return nil
}

// CreateDownload adds a new download and persists it to the file.
func (r *DownloadStorage) CreateDownload(ctx context.Context, d *domain.Download) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.downloads[d.ID] = d
	r.mu.Unlock()

	if err := r.persistDownloads(); err != nil {
		return fmt.Errorf("failed to save state after creating download: %w", err)
	}

	slog.Debug("download created and saved", "download_id", d.ID)
	return nil
}

// GetDownload retrieves a download by ID.
func (r *DownloadStorage) GetDownload(ctx context.Context, id uuid.UUID) (*domain.Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	d, exists := r.downloads[id]
	r.mu.RUnlock()

	if !exists {
		return nil, errpkg.ErrDownloadNotFound
	}
	return d, nil
}

// UpdateDownload persists the current state of an existing download.
func (r *DownloadStorage) UpdateDownload(ctx context.Context, d *domain.Download) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.downloads[d.ID] = d
	r.mu.Unlock()

	if err := r.persistDownloads(); err != nil {
		return fmt.Errorf("failed to save state after updating download: %w", err)
	}

	slog.Debug("download updated and saved", "download_id", d.ID, "state", d.State())
	return nil
}

// GetDownloadsByState returns all downloads with the specified state.
func (r *DownloadStorage) GetDownloadsByState(ctx context.Context, state domain.DownloadState) ([]*domain.Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var filtered []*domain.Download
	for _, d := range r.downloads {
		if d.State() == state {
			filtered = append(filtered, d)
		}
	}
	r.mu.RUnlock()

	return filtered, nil
}
