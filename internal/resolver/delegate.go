package resolver

import (
	"log/slog"
	"time"

	"github.com/veranemoloko/download-resolver/internal/domain"
	"github.com/veranemoloko/download-resolver/internal/policy"
)

// Delegate supplies the external collaborators the resolution pipeline
// drives. Every method is one-shot: the implementation must invoke the
// callback exactly once, synchronously or asynchronously.
type Delegate interface {
	// GetInsecureDownloadStatus classifies the download with respect to
	// insecure (mixed-content) delivery.
	GetInsecureDownloadStatus(d *domain.Download, virtualPath string, cb func(domain.InsecureDownloadStatus))

	// NotifyObservers lets registered observers suggest a different
	// filename and conflict action for a generated path. An empty override
	// leaves the path unchanged.
	NotifyObservers(d *domain.Download, virtualPath string, cb func(overrideName string, action domain.ConflictAction))

	// ReserveVirtualPath atomically reserves a unique target path,
	// applying the conflict action.
	ReserveVirtualPath(d *domain.Download, virtualPath string, createDir bool, action domain.ConflictAction, cb func(domain.PathValidationResult, string))

	// RequestConfirmation surfaces a user decision about the proposed
	// target path.
	RequestConfirmation(d *domain.Download, virtualPath string, reason domain.ConfirmationReason, cb func(domain.ConfirmationResult, string))

	// DetermineLocalPath translates a virtual path into a concrete local
	// filesystem path. An empty result is a fatal local error.
	DetermineLocalPath(d *domain.Download, virtualPath string, cb func(localPath string))

	// GetFileMimeType sniffs the MIME type of the file at localPath. The
	// callback receives "" when the type cannot be determined.
	GetFileMimeType(localPath string, cb func(mimeType string))

	// DetermineIfHandledSafely reports whether the MIME type would be
	// rendered by the browser rather than saved to disk unsupervised.
	DetermineIfHandledSafely(d *domain.Download, localPath, mimeType string, cb func(bool))

	// CheckDownloadURL runs a reputation check of the download URL.
	CheckDownloadURL(d *domain.Download, virtualPath string, cb func(domain.DangerType))
}

// HistoryService answers referrer visit-count queries.
type HistoryService interface {
	VisibleVisitCountToHost(referrerURL string, cb func(ok bool, count int, firstVisit time.Time))
}

// Prefs exposes the download preferences the pipeline consults. Reads and
// writes go through the embedder so the pipeline holds no global state.
type Prefs interface {
	// DownloadPath is the default download directory.
	DownloadPath() string
	// SaveFilePath is the directory last chosen through a prompt.
	SaveFilePath() string
	// SetSaveFilePath remembers the directory chosen in a prompt.
	SetSaveFilePath(dir string)
	// PromptForDownload reports whether the user asked to be prompted for
	// every download.
	PromptForDownload() bool
	// IsDownloadPathManaged reports whether the download directory is
	// enforced by enterprise policy.
	IsDownloadPathManaged() bool
}

// Config carries the feature switches the pipeline previously read from
// ambient process state.
type Config struct {
	// AllowInsecureDownloads disables all danger-level classification.
	AllowInsecureDownloads bool
	// DefaultFilename is the locale-specific fallback basename.
	DefaultFilename string
	// IsPathDLPBlocked reports whether data-loss-prevention rules forbid
	// downloading into the given directory. Nil means never blocked.
	IsPathDLPBlocked func(path string) bool
}

// Deps bundles everything a resolution instance needs besides the download
// itself.
type Deps struct {
	Delegate Delegate
	History  HistoryService
	Prefs    Prefs
	Policies *policy.FileTypePolicies
	Config   Config
	Logger   *slog.Logger
}

// CompletionCallback receives the single terminal outcome of a resolution.
type CompletionCallback func(info domain.TargetInfo, level domain.DangerLevel)
