package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// TimestampBackupStore implements domain.BackupStore under a fixed backup
// root with one subtree per host. Every backup gets a fresh nanosecond
// timestamp suffix; existing backups are never overwritten or pruned.
type TimestampBackupStore struct {
	root     string
	hostname string
	now      func() time.Time
}

// NewBackupStore creates a backup store rooted at dir.
func NewBackupStore(dir string) *TimestampBackupStore {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return &TimestampBackupStore{
		root:     dir,
		hostname: hostname,
		now:      time.Now,
	}
}

// hostDir is the per-host backup subtree.
func (s *TimestampBackupStore) hostDir() string {
	return filepath.Join(s.root, s.hostname)
}

// sanitize flattens an absolute target path into a file name component.
func sanitize(target string) string {
	trimmed := strings.Trim(target, "/")
	return strings.ReplaceAll(trimmed, "/", "_")
}

// Save files the target's pre-mutation bytes into the host subtree.
func (s *TimestampBackupStore) Save(target string, data []byte) (string, error) {
	if err := os.MkdirAll(s.hostDir(), 0700); err != nil {
		return "", &domain.BackupError{Target: target, Err: err}
	}

	// Nanosecond timestamps make collisions effectively impossible, but a
	// counter suffix guards the remaining case so nothing is overwritten.
	stamp := s.now().Format("20060102-150405.000000000")
	base := filepath.Join(s.hostDir(), fmt.Sprintf("%s.%s.bak", sanitize(target), stamp))
	backupPath := base
	for i := 1; ; i++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = fmt.Sprintf("%s.%d", base, i)
	}

	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", &domain.BackupError{Target: target, Err: err}
	}
	return backupPath, nil
}

// Load returns the exact bytes of a previously saved backup.
func (s *TimestampBackupStore) Load(backupPath string) ([]byte, error) {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", backupPath, err)
	}
	return data, nil
}

// List returns all backups filed for a target, oldest first.
func (s *TimestampBackupStore) List(target string) ([]string, error) {
	pattern := filepath.Join(s.hostDir(), sanitize(target)+".*.bak*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Ensure TimestampBackupStore implements domain.BackupStore.
var _ domain.BackupStore = (*TimestampBackupStore)(nil)
