package service

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/veranemoloko/download-resolver/internal/domain"
	"github.com/veranemoloko/download-resolver/internal/metrics"
)

// The DownloadService is the pipeline's Delegate and Prefs implementation.

// GetInsecureDownloadStatus classifies plain-http deliveries. https and
// local file URLs are always safe; http is warned about unless insecure
// downloads are explicitly allowed.
func (s *DownloadService) GetInsecureDownloadStatus(d *domain.Download, virtualPath string, cb func(domain.InsecureDownloadStatus)) {
	u, err := url.Parse(d.Request.URL)
	if err != nil {
		cb(domain.InsecureStatusUnknown)
		return
	}
	switch u.Scheme {
	case "https", "file", "":
		cb(domain.InsecureStatusSafe)
	case "http":
		if s.cfg.AllowInsecureDownloads {
			cb(domain.InsecureStatusValidated)
		} else {
			cb(domain.InsecureStatusWarn)
		}
	default:
		cb(domain.InsecureStatusUnknown)
	}
}

// NotifyObservers gives the configured observer a chance to rename a
// generated path. Without an observer the path passes through unchanged.
func (s *DownloadService) NotifyObservers(d *domain.Download, virtualPath string, cb func(overrideName string, action domain.ConflictAction)) {
	if s.ObserverOverride == nil {
		cb("", domain.ConflictActionUniquify)
		return
	}
	name, action := s.ObserverOverride(d, virtualPath)
	cb(name, action)
}

// ReserveVirtualPath bridges to the reservation tracker off the pipeline
// goroutine.
func (s *DownloadService) ReserveVirtualPath(d *domain.Download, virtualPath string, createDir bool, action domain.ConflictAction, cb func(domain.PathValidationResult, string)) {
	go func() {
		result, path := s.tracker.Reserve(d.ID, virtualPath, createDir, action)
		cb(result, path)
	}()
}

// RequestConfirmation either auto-accepts the proposed path or parks the
// request as a pending prompt answered through the API.
func (s *DownloadService) RequestConfirmation(d *domain.Download, virtualPath string, reason domain.ConfirmationReason, cb func(domain.ConfirmationResult, string)) {
	if s.cfg.AutoConfirmPrompts {
		s.logger.Debug("auto-confirming prompt",
			"download_id", d.ID,
			"path", virtualPath,
			"reason", reason,
		)
		cb(domain.ConfirmationResultConfirmed, virtualPath)
		return
	}

	s.mu.Lock()
	s.prompts[d.ID] = &pendingPrompt{
		proposedPath: virtualPath,
		reason:       reason,
		respond:      cb,
	}
	s.mu.Unlock()

	metrics.PromptsShown.Inc()
	s.logger.Info("confirmation prompt pending",
		"download_id", d.ID,
		"proposed_path", virtualPath,
		"reason", reason,
	)
}

// DetermineLocalPath is the identity mapping: every virtual path here is
// already a local filesystem path.
func (s *DownloadService) DetermineLocalPath(d *domain.Download, virtualPath string, cb func(localPath string)) {
	cb(filepath.Clean(virtualPath))
}

// GetFileMimeType sniffs the file content at localPath.
func (s *DownloadService) GetFileMimeType(localPath string, cb func(mimeType string)) {
	go func() {
		mtype, err := mimetype.DetectFile(localPath)
		if err != nil {
			cb("")
			return
		}
		mediaType, _, err := mime.ParseMediaType(mtype.String())
		if err != nil {
			cb("")
			return
		}
		cb(mediaType)
	}()
}

// safelyHandledTypes are MIME types the embedding browser renders inline
// rather than handing to an external application.
var safelyHandledTypes = map[string]bool{
	"application/pdf":       true,
	"application/json":      true,
	"application/xhtml+xml": true,
}

// DetermineIfHandledSafely reports whether the sniffed type would be
// rendered rather than executed.
func (s *DownloadService) DetermineIfHandledSafely(d *domain.Download, localPath, mimeType string, cb func(bool)) {
	if safelyHandledTypes[mimeType] {
		cb(true)
		return
	}
	for _, prefix := range []string{"text/", "image/", "audio/", "video/"} {
		if strings.HasPrefix(mimeType, prefix) {
			cb(true)
			return
		}
	}
	cb(false)
}

// CheckDownloadURL is the reputation check: URLs on blocked hosts are
// flagged as dangerous.
func (s *DownloadService) CheckDownloadURL(d *domain.Download, virtualPath string, cb func(domain.DangerType)) {
	go func() {
		u, err := url.Parse(d.Request.URL)
		if err != nil {
			cb(domain.DangerTypeNotDangerous)
			return
		}
		host := strings.ToLower(u.Hostname())
		for _, blocked := range s.cfg.BlockedHosts {
			if host == strings.ToLower(blocked) {
				s.logger.Warn("download url on blocked host",
					"download_id", d.ID,
					"host", host,
				)
				cb(domain.DangerTypeDangerousURL)
				return
			}
		}
		cb(domain.DangerTypeNotDangerous)
	}()
}

// DownloadPath returns the default download directory.
func (s *DownloadService) DownloadPath() string {
	abs, err := filepath.Abs(s.cfg.DownloadDir)
	if err != nil {
		return s.cfg.DownloadDir
	}
	return abs
}

// SaveFilePath returns the directory last chosen through a prompt, falling
// back to the default download directory.
func (s *DownloadService) SaveFilePath() string {
	s.mu.Lock()
	p := s.saveFilePath
	s.mu.Unlock()
	if p == "" {
		return s.DownloadPath()
	}
	return p
}

// SetSaveFilePath remembers the directory chosen in a prompt.
func (s *DownloadService) SetSaveFilePath(dir string) {
	s.mu.Lock()
	s.saveFilePath = dir
	s.mu.Unlock()
}

// PromptForDownload reports the prompt-for-every-download preference.
func (s *DownloadService) PromptForDownload() bool {
	return s.cfg.PromptForDownload
}

// IsDownloadPathManaged reports whether the download directory is enforced
// by policy.
func (s *DownloadService) IsDownloadPathManaged() bool {
	return s.cfg.DownloadPathManaged
}

func (s *DownloadService) isPathDLPBlocked(path string) bool {
	for _, dir := range s.cfg.DLPBlockedDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, path)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && rel != "") {
			return true
		}
	}
	return false
}
