package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veranemoloko/download-resolver/internal/domain"
)

func TestFileDangerLevel(t *testing.T) {
	p := NewFileTypePolicies(nil)

	tests := []struct {
		filename string
		want     domain.DangerLevel
	}{
		{"report.pdf", domain.DangerLevelNotDangerous},
		{"photo.jpg", domain.DangerLevelNotDangerous},
		{"notes.txt", domain.DangerLevelNotDangerous},
		{"setup.exe", domain.DangerLevelAllowOnUserGesture},
		{"SETUP.EXE", domain.DangerLevelAllowOnUserGesture},
		{"app.apk", domain.DangerLevelAllowOnUserGesture},
		{"image.iso", domain.DangerLevelAllowOnUserGesture},
		{"script.bat", domain.DangerLevelDangerous},
		{"login.vbs", domain.DangerLevelDangerous},
		{"run.ps1", domain.DangerLevelDangerous},
		{"noextension", domain.DangerLevelNotDangerous},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.FileDangerLevel(tt.filename), "filename %q", tt.filename)
	}
}

func TestIsCheckedBinaryFile(t *testing.T) {
	p := NewFileTypePolicies(nil)

	assert.True(t, p.IsCheckedBinaryFile("setup.exe"))
	assert.True(t, p.IsCheckedBinaryFile("archive.zip"))
	assert.True(t, p.IsCheckedBinaryFile("lib.DLL"))
	assert.False(t, p.IsCheckedBinaryFile("report.pdf"))
	assert.False(t, p.IsCheckedBinaryFile("noextension"))
}

func TestIsAutoOpenEnabled(t *testing.T) {
	p := NewFileTypePolicies([]string{".pdf", "txt", "  .Ics "})

	assert.True(t, p.IsAutoOpenEnabled("report.pdf"))
	assert.True(t, p.IsAutoOpenEnabled("notes.txt"))
	assert.True(t, p.IsAutoOpenEnabled("meeting.ics"))
	assert.False(t, p.IsAutoOpenEnabled("setup.exe"))

	empty := NewFileTypePolicies(nil)
	assert.False(t, empty.IsAutoOpenEnabled("report.pdf"))
}
