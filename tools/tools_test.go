package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFloatEqual(t *testing.T) {
	assert.True(t, IsFloatEqual(1.0, 1.0))
	assert.True(t, IsFloatEqual(1.0, 1.0000001))
	assert.False(t, IsFloatEqual(1.0, 1.1))
}

func TestFmtJSONString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, FmtJSONString(map[string]int{"a": 1}))
}

func TestCreateDirectoryIfDoesNotExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateDirectoryIfDoesNotExist(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	// already existing is a no-op
	require.NoError(t, CreateDirectoryIfDoesNotExist(dir))
}

func TestCreateFileOrFail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	f := CreateFileOrFail(path)
	require.NoError(t, f.Close())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileFinderSingleFile(t *testing.T) {
	finder := NewStandardFileFinder()
	files := finder.GetLidarFilesToProcess("some.las", false, false)
	assert.Equal(t, []string{"some.las"}, files)
}

func TestFileFinderFolder(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range []string{"a.las", "b.LAZ", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "d.las"), nil, 0o644))

	finder := NewStandardFileFinder()
	flat := finder.GetLidarFilesToProcess(dir, true, false)
	assert.Len(t, flat, 2)

	recursive := finder.GetLidarFilesToProcess(dir, true, true)
	assert.Len(t, recursive, 3)
}
