package port

import "io"

// FileSpace abstracts a working directory so the packaging core can be
// unit-tested without touching a real filesystem.
type FileSpace interface {
	// CreateTempDir creates a fresh, uniquely-named temp directory and
	// returns its path.
	CreateTempDir() (string, error)

	// NewFile returns the path for name inside dir. It performs no I/O.
	NewFile(dir, name string) string

	// OpenWriter opens path for writing, creating it (and any parent
	// directories) on first write.
	OpenWriter(path string) (io.WriteCloser, error)

	// OpenReader opens path for reading.
	OpenReader(path string) (io.ReadCloser, error)

	// Exists reports whether path exists.
	Exists(path string) bool

	// Delete removes the file at path. Deleting a path that does not
	// exist is a no-op.
	Delete(path string) error

	// DeleteDir removes dir and everything under it. Deleting a
	// directory that does not exist is a no-op.
	DeleteDir(dir string) error

	// IsEmpty reports whether dir contains no entries. Used by tests
	// to assert full cleanup.
	IsEmpty(dir string) (bool, error)
}
