// Package reservation hands out unique filesystem paths to concurrent
// downloads. A reservation keeps two in-flight downloads from resolving to
// the same target even before either file exists on disk.
package reservation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/veranemoloko/download-resolver/internal/domain"
)

// MaxNameLength is the longest basename the tracker will reserve. Longer
// names are truncated when possible.
const MaxNameLength = 255

// maxUniqueFiles bounds the uniquifier loop.
const maxUniqueFiles = 100

// Tracker serializes path reservations across concurrent downloads.
type Tracker struct {
	mu       sync.Mutex
	reserved map[string]uuid.UUID
	logger   *slog.Logger
}

// NewTracker creates an empty reservation tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		reserved: make(map[string]uuid.UUID),
		logger:   logger,
	}
}

// Reserve validates targetPath and reserves a (possibly adjusted) unique
// path for the download. The returned path is only meaningful for results
// that allow the download to proceed.
func (t *Tracker) Reserve(downloadID uuid.UUID, targetPath string, createDir bool, action domain.ConflictAction) (domain.PathValidationResult, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := filepath.Dir(targetPath)
	if err := ensureWritableDir(dir, createDir); err != nil {
		t.logger.Warn("target directory not writable",
			"download_id", downloadID,
			"dir", dir,
			"error", err,
		)
		return domain.PathValidationPathNotWritable, targetPath
	}

	base := filepath.Base(targetPath)
	if len(base) > MaxNameLength {
		truncated, ok := truncateName(base, MaxNameLength)
		if !ok {
			return domain.PathValidationNameTooLong, targetPath
		}
		targetPath = filepath.Join(dir, truncated)
	}

	if !t.isConflict(downloadID, targetPath) {
		t.reserved[targetPath] = downloadID
		return domain.PathValidationSuccess, targetPath
	}

	switch action {
	case domain.ConflictActionOverwrite:
		t.reserved[targetPath] = downloadID
		return domain.PathValidationSuccess, targetPath

	case domain.ConflictActionUniquify:
		ext := filepath.Ext(targetPath)
		stem := strings.TrimSuffix(targetPath, ext)
		for i := 1; i <= maxUniqueFiles; i++ {
			candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
			if !t.isConflict(downloadID, candidate) {
				t.reserved[candidate] = downloadID
				return domain.PathValidationSuccessResolvedConflict, candidate
			}
		}
		return domain.PathValidationConflict, targetPath

	default:
		return domain.PathValidationConflict, targetPath
	}
}

// Release frees every path reserved by the download. Safe to call for
// downloads that hold no reservation.
func (t *Tracker) Release(downloadID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, owner := range t.reserved {
		if owner == downloadID {
			delete(t.reserved, path)
		}
	}
}

// isConflict reports whether path is taken on disk or reserved by another
// download. Callers must hold t.mu.
func (t *Tracker) isConflict(downloadID uuid.UUID, path string) bool {
	if owner, ok := t.reserved[path]; ok && owner != downloadID {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}

func ensureWritableDir(dir string, create bool) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if !create {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("stat directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("not a directory: %s", dir)
	}

	probe, err := os.CreateTemp(dir, ".reservation-probe-*")
	if err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// truncateName shortens a basename to limit bytes preserving the extension.
// Fails when the extension alone leaves no room for a stem.
func truncateName(name string, limit int) (string, bool) {
	ext := filepath.Ext(name)
	if len(ext) >= limit {
		return "", false
	}
	stem := strings.TrimSuffix(name, ext)
	keep := limit - len(ext)
	if keep <= 0 {
		return "", false
	}
	if keep >= len(stem) {
		return stem + ext, true
	}
	// Cutting at a byte offset may land inside a multibyte character; back
	// off to the preceding rune boundary.
	for keep > 0 && !utf8.RuneStart(stem[keep]) {
		keep--
	}
	if keep == 0 {
		return "", false
	}
	return stem[:keep] + ext, true
}
