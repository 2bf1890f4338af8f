package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreateDownloadRequest is the request body for starting a new download.
type CreateDownloadRequest struct {
	URL                string `json:"url" validate:"required,safe_url"`
	ReferrerURL        string `json:"referrer_url,omitempty" validate:"omitempty,safe_url"`
	SuggestedFilename  string `json:"suggested_filename,omitempty" validate:"omitempty,max=255"`
	ContentDisposition string `json:"content_disposition,omitempty"`
	MimeType           string `json:"mime_type,omitempty"`
	OriginalMimeType   string `json:"original_mime_type,omitempty"`
	ForcedPath         string `json:"forced_path,omitempty"`
	Transient          bool   `json:"transient,omitempty"`
	SaveAs             bool   `json:"save_as,omitempty"`
	HasUserGesture     bool   `json:"has_user_gesture,omitempty"`
	FromAddressBar     bool   `json:"from_address_bar,omitempty"`
}

// ConfirmDownloadRequest resolves a pending target confirmation prompt.
type ConfirmDownloadRequest struct {
	Accept bool `json:"accept"`
	// Path optionally replaces the proposed target path when accepting.
	Path string `json:"path,omitempty"`
}

// DownloadResponse is the API representation of a download.
type DownloadResponse struct {
	ID            uuid.UUID      `json:"download_id"`
	URL           string         `json:"url"`
	State         DownloadState  `json:"state"`
	DangerType    DangerType     `json:"danger_type"`
	Target        *TargetInfo    `json:"target,omitempty"`
	PendingPrompt *PendingPrompt `json:"pending_prompt,omitempty"`
	BytesReceived int64          `json:"bytes_received"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PendingPrompt describes an outstanding user confirmation request.
type PendingPrompt struct {
	ProposedPath string             `json:"proposed_path"`
	Reason       ConfirmationReason `json:"reason"`
}
