package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/veranemoloko/download-resolver/internal/domain"
)

// DownloadRepo defines the interface for download storage operations.
type DownloadRepo interface {
	CreateDownload(ctx context.Context, d *domain.Download) error
	GetDownload(ctx context.Context, id uuid.UUID) (*domain.Download, error)
	UpdateDownload(ctx context.Context, d *domain.Download) error
	GetDownloadsByState(ctx context.Context, state domain.DownloadState) ([]*domain.Download, error)
}
