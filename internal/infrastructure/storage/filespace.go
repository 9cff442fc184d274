// Package storage holds local-filesystem adapters for the packaging
// ports.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/application/port"
)

// LocalFileSpace implements port.FileSpace against the real
// filesystem, rooted under baseDir. It merges the teacher's separate
// file-storage and folder-manager adapters into the one working-area
// abstraction the packaging tasks need, keeping their path-traversal
// guard and idempotent-delete behavior.
type LocalFileSpace struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileSpace creates a LocalFileSpace rooted at baseDir. baseDir
// is created if it does not already exist.
func NewLocalFileSpace(baseDir string, logger *zap.Logger) (*LocalFileSpace, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &LocalFileSpace{baseDir: baseDir, logger: logger}, nil
}

// CreateTempDir creates a fresh, uuid-named directory under baseDir.
func (s *LocalFileSpace) CreateTempDir() (string, error) {
	dir := filepath.Join(s.baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	s.logger.Debug("created temp dir", zap.String("dir", dir))
	return dir, nil
}

// NewFile returns the path for name inside dir. It performs no I/O.
func (s *LocalFileSpace) NewFile(dir, name string) string {
	return filepath.Join(dir, name)
}

// OpenWriter opens path for writing, creating parent directories as
// needed.
func (s *LocalFileSpace) OpenWriter(path string) (io.WriteCloser, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for writing: %w", path, err)
	}
	return f, nil
}

// OpenReader opens path for reading.
func (s *LocalFileSpace) OpenReader(path string) (io.ReadCloser, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for reading: %w", path, err)
	}
	return f, nil
}

// Exists reports whether path exists.
func (s *LocalFileSpace) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes the file at path. A missing file is not an error.
func (s *LocalFileSpace) Delete(path string) error {
	if err := s.validatePath(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// DeleteDir removes dir and everything under it. A missing directory
// is not an error.
func (s *LocalFileSpace) DeleteDir(dir string) error {
	if err := s.validatePath(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete dir %s: %w", dir, err)
	}
	return nil
}

// IsEmpty reports whether dir contains no entries.
func (s *LocalFileSpace) IsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("read dir %s: %w", dir, err)
	}
	return len(entries) == 0, nil
}

// validatePath guards against a path built from an unsanitized name
// escaping baseDir.
func (s *LocalFileSpace) validatePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("resolve base dir: %w", err)
	}
	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}
	return nil
}

var _ port.FileSpace = (*LocalFileSpace)(nil)
