//go:build unix

package backing

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMappedCreatesAndRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewMapped(dir, "weights", "static", true, 0)

	p, err := m.Acquire(8192)
	require.NoError(t, err)
	require.NotNil(t, p)

	path := filepath.Join(dir, "weights.static.0")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(8192), info.Size())

	buf := unsafe.Slice((*byte)(p), 8192)
	buf[0] = 0xAB
	buf[8191] = 0xCD

	require.NoError(t, m.Release(p, 8192))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "autoRemove should delete the backing file")
}

func TestMappedKeepsFilesWithoutAutoRemove(t *testing.T) {
	dir := t.TempDir()
	m := NewMapped(dir, "cache", "weight", false, 0)

	p, err := m.Acquire(4096)
	require.NoError(t, err)
	require.NoError(t, m.Release(p, 4096))

	_, err = os.Stat(filepath.Join(dir, "cache.weight.0"))
	require.NoError(t, err)
}

func TestMappedSizeLimit(t *testing.T) {
	dir := t.TempDir()
	m := NewMapped(dir, "w", "static", true, 8192)

	p1, err := m.Acquire(4096)
	require.NoError(t, err)
	p2, err := m.Acquire(4096)
	require.NoError(t, err)

	_, err = m.Acquire(4096)
	require.ErrorIs(t, err, ErrMapFull)

	// Releasing makes room under the limit for new mappings.
	require.NoError(t, m.Release(p1, 4096))
	p3, err := m.Acquire(4096)
	require.NoError(t, err)

	require.NoError(t, m.Release(p2, 4096))
	require.NoError(t, m.Release(p3, 4096))
}

func TestMappedUnknownRelease(t *testing.T) {
	dir := t.TempDir()
	m := NewMapped(dir, "w", "static", true, 0)
	h := NewHeap()
	p, err := h.Acquire(4096)
	require.NoError(t, err)
	defer h.Release(p, 4096)

	require.ErrorIs(t, m.Release(p, 4096), ErrUnknownBuffer)
}
