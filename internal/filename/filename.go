// Package filename derives filesystem-safe candidate filenames for
// downloads from the URL, Content-Disposition header, suggested name and
// MIME information.
package filename

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/veranemoloko/download-resolver/internal/policy"
)

// DefaultBasename is used when no valid filename can be determined and no
// locale-specific default is configured.
const DefaultBasename = "download"

// GenerateInput carries everything filename generation may consult.
type GenerateInput struct {
	URL                string
	ContentDisposition string
	SuggestedFilename  string
	// SniffedMimeType is the MIME type detected by the network layer.
	SniffedMimeType string
	// OriginalMimeType is the MIME type declared in the response headers.
	OriginalMimeType string
	// DefaultName is the locale-specific fallback basename.
	DefaultName string

	Policies *policy.FileTypePolicies
}

// Generate produces a filesystem-legal filename for a download.
//
// Source priority: suggested filename, then Content-Disposition, then the
// URL path. The extension is corrected from the sniffed MIME type only when
// nothing explicitly named the file and the sniff is trustworthy; filenames
// of always-scanned types keep their extension unconditionally.
func Generate(in GenerateInput) string {
	suggested := in.SuggestedFilename
	if suggested == "" && in.SniffedMimeType == "application/x-x509-user-cert" {
		suggested = "user.crt"
	}

	name := generateFromSources(in, suggested)

	// Never rewrite the extension of a file type that is always scanned:
	// the scanner must see the name the sources produced.
	if in.Policies != nil && in.Policies.IsCheckedBinaryFile(name) {
		return name
	}

	// An explicit name, or no MIME information at all, wins over sniffing.
	if in.SniffedMimeType == "" || suggested != "" {
		return name
	}
	if dispositionFilename(in.ContentDisposition) != "" {
		return name
	}

	// With X-Content-Type-Options:nosniff, or for text formats like CSV,
	// the sniffed type degrades to text/plain. Keep the URL-derived
	// extension in that case.
	if in.SniffedMimeType == "text/plain" && in.OriginalMimeType != "text/plain" {
		return name
	}

	return replaceExtension(name, in.SniffedMimeType)
}

// generateFromSources picks the best raw name and sanitizes it.
func generateFromSources(in GenerateInput, suggested string) string {
	fallback := in.DefaultName
	if fallback == "" {
		fallback = DefaultBasename
	}

	raw := suggested
	if raw == "" {
		raw = dispositionFilename(in.ContentDisposition)
	}
	if raw == "" {
		raw = fromURL(in.URL)
	}
	if raw == "" {
		raw = fallback
	}

	name := Sanitize(raw, fallback)
	if filepath.Ext(name) == "" {
		if ext := extensionForMime(in.SniffedMimeType); ext != "" {
			name += ext
		}
	}
	return name
}

// Sanitize strips directory components and replaces names that cannot be
// used as a basename with the fallback.
func Sanitize(name, fallback string) string {
	// filepath.Base only treats the native separator as a separator, so
	// normalize Windows-style backslashes first.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Trim(name, " ")

	if name == "" || name == "." || name == ".." || name == "/" {
		return fallback
	}
	return name
}

// dispositionFilename extracts the filename parameter from a
// Content-Disposition header value. Returns "" when absent or unparsable.
func dispositionFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// fromURL extracts a candidate basename from the URL path.
func fromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := filepath.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}

// preferredExtensions pins MIME types whose stdlib extension list depends
// on the platform MIME database to a canonical extension.
var preferredExtensions = map[string]string{
	"text/html":                ".html",
	"text/plain":               ".txt",
	"text/xml":                 ".xml",
	"text/csv":                 ".csv",
	"application/xhtml+xml":    ".xhtml",
	"image/jpeg":               ".jpg",
	"image/svg+xml":            ".svg",
	"audio/mpeg":               ".mp3",
	"video/mp4":                ".mp4",
	"application/octet-stream": ".bin",
}

func extensionForMime(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || mediaType == "" {
		return ""
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func replaceExtension(name, mimeType string) string {
	ext := extensionForMime(mimeType)
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
