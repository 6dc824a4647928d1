package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureSubDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureSubDir("staging")
	require.NoError(t, err)

	want := filepath.Join(tmp, "staging")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestLoadAsset_DetectsPNGBySniffing(t *testing.T) {
	// PNG magic bytes, extension unknown to the mime table.
	path := filepath.Join(t.TempDir(), "picture.blob")
	blob := []byte("\x89PNG\r\n\x1a\n0000000000")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, mimeType, err := LoadAsset(path)
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Equal(t, "image/png", mimeType)
}

func TestLoadAsset_ExtensionWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drawing.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg></svg>"), 0o600))

	_, mimeType, err := LoadAsset(path)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", mimeType)
}

func TestLoadAsset_MissingFile(t *testing.T) {
	_, _, err := LoadAsset(filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
}
