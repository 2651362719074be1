// Package safefile writes output files atomically.
package safefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrClosed is returned when a File is used after Commit or Abort.
var ErrClosed = errors.New("safefile: already closed")

// File streams data into a tempfile next to its target and replaces the
// target only on Commit: tempfile -> fsync -> rename. The tempfile is created
// in the same directory as the target to ensure the rename is atomic (same
// filesystem).
type File struct {
	f      *os.File
	path   string
	perm   os.FileMode
	closed bool
}

// Create opens a tempfile for path.
func Create(path string, perm os.FileMode) (*File, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &File{f: f, path: path, perm: perm}, nil
}

// Write appends p to the tempfile.
func (sf *File) Write(p []byte) (int, error) {
	if sf.closed {
		return 0, ErrClosed
	}
	return sf.f.Write(p)
}

// TempName returns the tempfile path.
func (sf *File) TempName() string {
	return sf.f.Name()
}

// Commit flushes the tempfile to disk and renames it over the target.
// On failure the tempfile is removed and the target is untouched.
func (sf *File) Commit() (err error) {
	if sf.closed {
		return ErrClosed
	}
	sf.closed = true
	tmp := sf.f.Name()

	// Clean up on any error
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err = sf.f.Sync(); err != nil {
		sf.f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err = sf.f.Chmod(sf.perm); err != nil {
		sf.f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = sf.f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp, sf.path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}

// Abort discards the tempfile. It is a no-op after Commit, so it is safe
// to defer.
func (sf *File) Abort() error {
	if sf.closed {
		return nil
	}
	sf.closed = true
	sf.f.Close()
	if err := os.Remove(sf.f.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}
