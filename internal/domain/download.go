package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DownloadRequest is the immutable input describing a download whose target
// must be resolved. It is fixed for the lifetime of the resolution pipeline.
type DownloadRequest struct {
	URL                string         `json:"url"`
	ReferrerURL        string         `json:"referrer_url,omitempty"`
	SuggestedFilename  string         `json:"suggested_filename,omitempty"`
	ContentDisposition string         `json:"content_disposition,omitempty"`
	MimeType           string         `json:"mime_type,omitempty"`
	OriginalMimeType   string         `json:"original_mime_type,omitempty"`
	ForcedPath         string         `json:"forced_path,omitempty"`
	Transient          bool           `json:"transient,omitempty"`
	HasUserGesture     bool           `json:"has_user_gesture,omitempty"`
	FromDragAndDrop    bool           `json:"from_drag_and_drop,omitempty"`
	TransitionType     TransitionType `json:"transition_type,omitempty"`
	// TargetDisposition is the disposition requested when the download was
	// initiated. Prompt corresponds to a 'Save As' download.
	TargetDisposition TargetDisposition `json:"target_disposition,omitempty"`
}

// TargetInfo is the single output of the target resolution pipeline, handed
// to the download engine exactly once.
type TargetInfo struct {
	TargetPath              string                 `json:"target_path,omitempty"`
	IntermediatePath        string                 `json:"intermediate_path,omitempty"`
	MimeType                string                 `json:"mime_type,omitempty"`
	IsFiletypeHandledSafely bool                   `json:"is_filetype_handled_safely,omitempty"`
	TargetDisposition       TargetDisposition      `json:"target_disposition"`
	DangerType              DangerType             `json:"danger_type"`
	InterruptReason         InterruptReason        `json:"interrupt_reason"`
	InsecureDownloadStatus  InsecureDownloadStatus `json:"insecure_download_status"`
}

// Download is a single download item owned by the download engine. The
// request is immutable; the state, danger type and paths are mutated by the
// engine and, during active target resolution, by the pipeline.
type Download struct {
	ID      uuid.UUID       `json:"id"`
	Request DownloadRequest `json:"request"`

	mu sync.RWMutex

	createdAt  time.Time
	updatedAt  time.Time
	state      DownloadState
	dangerType DangerType
	// fullPath is the path currently occupied on disk, if any. On resumption
	// it points at the previous intermediate file.
	fullPath string
	// lastInterruptReason is the reason the previous attempt stopped.
	// Non-none together with a non-empty virtual path marks a resumption.
	lastInterruptReason InterruptReason
	targetInfo          *TargetInfo
	bytesReceived       int64
	errMessage          string
}

// NewDownload creates an in-progress download item for the given request.
func NewDownload(req DownloadRequest) *Download {
	now := time.Now()
	return &Download{
		ID:                  uuid.New(),
		Request:             req,
		createdAt:           now,
		updatedAt:           now,
		state:               DownloadStateInProgress,
		dangerType:          DangerTypeNotDangerous,
		lastInterruptReason: InterruptReasonNone,
	}
}

// CreatedAt returns when the download was created.
func (d *Download) CreatedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.createdAt
}

// UpdatedAt returns when any mutable field last changed.
func (d *Download) UpdatedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updatedAt
}

// RestoreTimestamps overwrites both timestamps with persisted values when a
// download is loaded from storage.
func (d *Download) RestoreTimestamps(createdAt, updatedAt time.Time) {
	d.mu.Lock()
	d.createdAt = createdAt
	d.updatedAt = updatedAt
	d.mu.Unlock()
}

// State returns the current download state.
func (d *Download) State() DownloadState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetState updates the download state.
func (d *Download) SetState(s DownloadState) {
	d.mu.Lock()
	d.state = s
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

// DangerType returns the current danger classification.
func (d *Download) DangerType() DangerType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dangerType
}

// SetDangerType updates the danger classification. During active target
// resolution only the pipeline writes this field.
func (d *Download) SetDangerType(t DangerType) {
	d.mu.Lock()
	d.dangerType = t
	d.mu.Unlock()
}

// FullPath returns the path the download currently occupies on disk.
func (d *Download) FullPath() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fullPath
}

// SetFullPath records the path the download currently occupies on disk.
func (d *Download) SetFullPath(p string) {
	d.mu.Lock()
	d.fullPath = p
	d.mu.Unlock()
}

// LastInterruptReason returns the interrupt reason of the previous attempt.
func (d *Download) LastInterruptReason() InterruptReason {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastInterruptReason
}

// SetLastInterruptReason records why the previous attempt stopped.
func (d *Download) SetLastInterruptReason(r InterruptReason) {
	d.mu.Lock()
	d.lastInterruptReason = r
	d.mu.Unlock()
}

// TargetInfo returns the resolved target info, or nil while resolution is
// still pending.
func (d *Download) TargetInfo() *TargetInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.targetInfo
}

// SetTargetInfo stores the resolved target info.
func (d *Download) SetTargetInfo(info *TargetInfo) {
	d.mu.Lock()
	d.targetInfo = info
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

// BytesReceived returns the number of bytes written so far.
func (d *Download) BytesReceived() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bytesReceived
}

// SetBytesReceived records download progress.
func (d *Download) SetBytesReceived(n int64) {
	d.mu.Lock()
	d.bytesReceived = n
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

// Error returns the recorded failure message, if any.
func (d *Download) Error() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.errMessage
}

// SetError records a failure message.
func (d *Download) SetError(msg string) {
	d.mu.Lock()
	d.errMessage = msg
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

// IsResumption reports whether this download resumes a previously
// interrupted attempt that already had a virtual path.
func (d *Download) IsResumption(initialVirtualPath string) bool {
	return d.LastInterruptReason() != InterruptReasonNone && initialVirtualPath != ""
}
