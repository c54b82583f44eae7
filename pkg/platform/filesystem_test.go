package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	fs := OSFileSystem{}

	require.NoError(t, fs.WriteFile(path, []byte("hello"), 0o644))
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.True(t, fs.Exists(path))
}

func TestOSFileSystem_RemoveContentsKeepsDirItself(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	fs := OSFileSystem{}
	require.NoError(t, fs.RemoveContents(dir))

	assert.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOSFileSystem_RemoveContentsOnMissingDirIsNotAnError(t *testing.T) {
	fs := OSFileSystem{}
	require.NoError(t, fs.RemoveContents(filepath.Join(t.TempDir(), "does-not-exist")))
}

func TestOSFileSystem_RemoveIsIdempotent(t *testing.T) {
	fs := OSFileSystem{}
	require.NoError(t, fs.Remove(filepath.Join(t.TempDir(), "does-not-exist")))
}

func TestOSFileSystem_LastWriteTimeIsNonZeroForWrittenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	fs := OSFileSystem{}
	require.NoError(t, fs.WriteFile(path, []byte("1"), 0o644))

	t1, err := fs.LastWriteTime(path)
	require.NoError(t, err)
	assert.NotZero(t, t1)
}

func TestNewGUID_ProducesDistinctValues(t *testing.T) {
	a := NewGUID()
	b := NewGUID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
