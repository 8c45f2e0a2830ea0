package workers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-away/tg-ytdl-gofile/config"
)

type staticDirs []string

func (s staticDirs) ActiveDirs() []string { return s }

func newTestSweeper(t *testing.T, active ActiveDirs) (*Sweeper, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewSweeper(
		&config.DownloadConfig{Dir: dir, DownloadTimeout: 30 * time.Minute},
		&config.GofileConfig{UploadTimeout: 30 * time.Minute},
		active,
		zerolog.Nop(),
	)
	return s, dir
}

func mkdirAged(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "video.mp4"), []byte("data"), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestSweep_RemovesStaleUnownedDirs(t *testing.T) {
	var active staticDirs
	s, root := newTestSweeper(t, &active)

	stale := mkdirAged(t, root, "stale", 2*time.Hour)
	fresh := mkdirAged(t, root, "fresh", time.Minute)
	owned := mkdirAged(t, root, "owned", 2*time.Hour)
	active = staticDirs{owned}

	require.NoError(t, os.WriteFile(filepath.Join(root, "users.json"), []byte("{}"), 0o644))

	assert.Equal(t, 1, s.Sweep(s.maxAge))

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, owned)
	assert.FileExists(t, filepath.Join(root, "users.json"))
}

func TestSweep_ZeroAgeRemovesAllUnowned(t *testing.T) {
	s, root := newTestSweeper(t, staticDirs{})

	mkdirAged(t, root, "a", 0)
	mkdirAged(t, root, "b", time.Hour)

	assert.Equal(t, 2, s.Sweep(0))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweep_MissingDir(t *testing.T) {
	s, root := newTestSweeper(t, staticDirs{})
	require.NoError(t, os.RemoveAll(root))

	assert.Zero(t, s.Sweep(0))
}

func TestSweeper_StartStop(t *testing.T) {
	s, root := newTestSweeper(t, staticDirs{})
	s.interval = 10 * time.Millisecond
	leftover := mkdirAged(t, root, "leftover", time.Second)

	s.Start()
	assert.NoDirExists(t, leftover)

	require.NoError(t, s.Stop())
}
