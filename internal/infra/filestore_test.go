package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreWriteReadUnderRoot(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStoreWithRoot(root)

	require.NoError(t, fs.WriteFile("/etc/sysctl.conf", []byte("vm.swappiness=30\n"), 0644))

	// The write lands under the root prefix, not the live /etc.
	_, err := os.Stat(filepath.Join(root, "etc", "sysctl.conf"))
	require.NoError(t, err)

	data, err := fs.ReadFile("/etc/sysctl.conf")
	require.NoError(t, err)
	assert.Equal(t, "vm.swappiness=30\n", string(data))
}

func TestFileStoreExistsAndRemove(t *testing.T) {
	fs := NewFileStoreWithRoot(t.TempDir())

	assert.False(t, fs.Exists("/etc/fstab"))
	require.NoError(t, fs.WriteFile("/etc/fstab", []byte("x"), 0644))
	assert.True(t, fs.Exists("/etc/fstab"))

	require.NoError(t, fs.Remove("/etc/fstab"))
	assert.False(t, fs.Exists("/etc/fstab"))

	// Removing a missing file is not an error.
	assert.NoError(t, fs.Remove("/etc/fstab"))
}

func TestAllocateProducesExactSize(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStoreWithRoot(root)

	const size = 3*fillChunkBytes + 12345
	require.NoError(t, fs.Allocate("/swapfile", size))

	info, err := os.Stat(filepath.Join(root, "swapfile"))
	require.NoError(t, err)
	assert.Equal(t, int64(size), info.Size())
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAllocateTruncatesPreviousContent(t *testing.T) {
	fs := NewFileStoreWithRoot(t.TempDir())

	require.NoError(t, fs.WriteFile("/swapfile", []byte("old swap"), 0600))
	require.NoError(t, fs.Allocate("/swapfile", 1024))

	data, err := fs.ReadFile("/swapfile")
	require.NoError(t, err)
	assert.Len(t, data, 1024)
}
