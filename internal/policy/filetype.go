// Package policy classifies download file types by the risk they pose and
// drives the danger-level decisions of the target resolution pipeline.
package policy

import (
	"path/filepath"
	"strings"

	"github.com/veranemoloko/download-resolver/internal/domain"
)

// dangerousExtensions are file types that are always considered dangerous:
// they execute or change system state merely by being opened.
var dangerousExtensions = map[string]struct{}{
	".bat": {}, ".cmd": {}, ".com": {}, ".cpl": {}, ".hta": {},
	".js": {}, ".jse": {}, ".pif": {}, ".ps1": {}, ".reg": {},
	".scr": {}, ".vbe": {}, ".vbs": {}, ".wsf": {}, ".wsh": {},
}

// gestureExtensions are potentially dangerous file types with a high
// frequency of legitimate use. They are allowed without a warning when the
// download looks user-initiated.
var gestureExtensions = map[string]struct{}{
	".apk": {}, ".crx": {}, ".deb": {}, ".dmg": {}, ".exe": {},
	".iso": {}, ".jar": {}, ".msi": {}, ".pkg": {}, ".rpm": {},
}

// checkedBinaryExtensions are file types that are always submitted for
// scanning. Their extension must never be rewritten by MIME-based
// correction, otherwise the scanner would see a mislabeled file.
var checkedBinaryExtensions = map[string]struct{}{
	".apk": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".crx": {},
	".dll": {}, ".dmg": {}, ".exe": {}, ".iso": {}, ".jar": {},
	".msi": {}, ".pkg": {}, ".ps1": {}, ".scr": {}, ".vbs": {},
	".zip": {}, ".7z": {}, ".rar": {},
}

// FileTypePolicies answers danger and scanning questions about candidate
// download filenames. The zero value uses the built-in tables; AutoOpen
// extensions may be added by the embedder.
type FileTypePolicies struct {
	autoOpen map[string]struct{}
}

// NewFileTypePolicies creates policies with the given set of extensions the
// user marked for automatic opening (e.g. ".pdf").
func NewFileTypePolicies(autoOpenExtensions []string) *FileTypePolicies {
	p := &FileTypePolicies{autoOpen: make(map[string]struct{}, len(autoOpenExtensions))}
	for _, ext := range autoOpenExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.autoOpen[ext] = struct{}{}
	}
	return p
}

// FileDangerLevel returns the danger level of a filename based purely on
// its extension.
func (p *FileTypePolicies) FileDangerLevel(filename string) domain.DangerLevel {
	ext := normalizedExt(filename)
	if _, ok := dangerousExtensions[ext]; ok {
		return domain.DangerLevelDangerous
	}
	if _, ok := gestureExtensions[ext]; ok {
		return domain.DangerLevelAllowOnUserGesture
	}
	return domain.DangerLevelNotDangerous
}

// IsCheckedBinaryFile reports whether the filename belongs to the
// always-scanned set.
func (p *FileTypePolicies) IsCheckedBinaryFile(filename string) bool {
	_, ok := checkedBinaryExtensions[normalizedExt(filename)]
	return ok
}

// IsAutoOpenEnabled reports whether the user opted into opening this file
// type automatically after download.
func (p *FileTypePolicies) IsAutoOpenEnabled(filename string) bool {
	if p == nil || p.autoOpen == nil {
		return false
	}
	_, ok := p.autoOpen[normalizedExt(filename)]
	return ok
}

func normalizedExt(filename string) string {
	return strings.ToLower(filepath.Ext(filepath.Base(filename)))
}
