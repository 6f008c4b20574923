package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	_, err := ResolvePath("")
	assert.Error(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ResolvePath("~/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), got)

	got, err = ResolvePath("/a/b/../c")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/a/c"), got)
}

func TestEnsureDirAndParent(t *testing.T) {
	tmp := t.TempDir()

	dir := filepath.Join(tmp, "x", "y")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))

	file := filepath.Join(tmp, "p", "q", "f.txt")
	require.NoError(t, EnsureParent(file))
	assert.True(t, DirExists(filepath.Dir(file)))
	assert.False(t, FileExists(file))

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))
}
