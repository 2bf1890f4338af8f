package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage manages the files a download writes: the intermediate file
// receiving bytes and the final target it is promoted to. Paths are the
// absolute paths produced by target resolution.
type FileStorage struct{}

// NewFileStorage creates a new FileStorage instance.
func NewFileStorage() *FileStorage {
	return &FileStorage{}
}

// CreateFile creates (truncates) the file at path, creating the parent
// directory if needed.
func (s *FileStorage) CreateFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	return os.Create(path)
}

// OpenForAppend opens an existing file for appending, for resumed
// downloads.
func (s *FileStorage) OpenForAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
}

// FileExists checks whether a file exists at path.
func (s *FileStorage) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetFileSize returns the size of the file in bytes.
func (s *FileStorage) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Promote renames the intermediate file to the final target path. A no-op
// when both paths are the same.
func (s *FileStorage) Promote(intermediatePath, targetPath string) error {
	if intermediatePath == targetPath {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := os.Rename(intermediatePath, targetPath); err != nil {
		return fmt.Errorf("promote intermediate file: %w", err)
	}
	return nil
}

// Remove deletes the file at path, ignoring files that are already gone.
func (s *FileStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
