// Package infra implements infrastructure concerns (files, services,
// backups, package managers, process and memory access).
package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// zero-fill chunk size for the slow allocation path.
const fillChunkBytes = 1 << 20

// RootFileStore implements domain.PrivilegedFileStore against a root
// prefix. Production uses "/"; tests re-root into a temp directory.
type RootFileStore struct {
	root string
}

// NewFileStore creates a file store against the live filesystem.
func NewFileStore() *RootFileStore {
	return NewFileStoreWithRoot("/")
}

// NewFileStoreWithRoot creates a file store under a custom root (for testing).
func NewFileStoreWithRoot(root string) *RootFileStore {
	return &RootFileStore{root: root}
}

func (fs *RootFileStore) resolve(path string) string {
	return filepath.Join(fs.root, path)
}

// ReadFile reads the target's current bytes.
func (fs *RootFileStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(fs.resolve(path))
}

// WriteFile writes data, creating parent directories as needed.
func (fs *RootFileStore) WriteFile(path string, data []byte, perm os.FileMode) error {
	full := fs.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, data, perm)
}

// Exists checks if a path exists.
func (fs *RootFileStore) Exists(path string) bool {
	_, err := os.Stat(fs.resolve(path))
	return err == nil
}

// Remove deletes the target. Missing targets are not an error.
func (fs *RootFileStore) Remove(path string) error {
	err := os.Remove(fs.resolve(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Allocate creates a file of exactly size bytes. fallocate is the fast
// path; filesystems without extent support (or non-Linux test runs) fall
// back to writing zeros. Mode 0600: swap files must not be world-readable.
func (fs *RootFileStore) Allocate(path string, size uint64) error {
	full := fs.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Fallocate(int(f.Fd()), 0, 0, int64(size)); err == nil {
		return f.Sync()
	}

	// Slow path: zero-fill in chunks until the requested size is reached.
	chunk := make([]byte, fillChunkBytes)
	var written uint64
	for written < size {
		n := uint64(len(chunk))
		if size-written < n {
			n = size - written
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			return fmt.Errorf("zero-fill %s: %w", path, err)
		}
		written += n
	}
	return f.Sync()
}

// Ensure RootFileStore implements domain.PrivilegedFileStore.
var _ domain.PrivilegedFileStore = (*RootFileStore)(nil)
