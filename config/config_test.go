package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GALLERY_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, DefaultDatabaseFile), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(dir, DefaultThumbnailsSubDir), cfg.ThumbnailsPath)
	assert.Equal(t, 320, cfg.ThumbnailMaxSize)
	assert.Equal(t, 200, cfg.ThumbnailQueueSize)
	assert.Equal(t, 2, cfg.NumThumbnailWorkers)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.Equal(t, 3*time.Second, cfg.ToastDuration)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GALLERY_DATA_DIR", dir)
	t.Setenv("GALLERY_DATABASE_PATH", filepath.Join(dir, "custom.db"))
	t.Setenv("GALLERY_NUM_THUMBNAIL_WORKERS", "6")
	t.Setenv("GALLERY_WATCH_DEBOUNCE", "500ms")
	t.Setenv("GALLERY_LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "custom.db"), cfg.DatabasePath)
	assert.Equal(t, 6, cfg.NumThumbnailWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadNonPositiveFallsBack(t *testing.T) {
	t.Setenv("GALLERY_DATA_DIR", t.TempDir())
	t.Setenv("GALLERY_THUMBNAIL_QUEUE_SIZE", "-4")
	t.Setenv("GALLERY_TOAST_DURATION", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.ThumbnailQueueSize)
	assert.Equal(t, 3*time.Second, cfg.ToastDuration)
	assert.Len(t, cfg.Warnings, 2)
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("GALLERY_DATA_DIR", t.TempDir())
	t.Setenv("GALLERY_THUMBNAIL_MAX_SIZE", "big")

	_, err := Load()
	assert.Error(t, err)
}

func TestMigrateLegacyDatabase(t *testing.T) {
	home := t.TempDir()
	legacyDir := filepath.Join(home, LegacyDataDirName)
	require.NoError(t, os.MkdirAll(legacyDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(legacyDir, DefaultDatabaseFile), []byte("sqlite"), 0o644))

	data := t.TempDir()
	cfg := Config{DataDir: data, DatabasePath: filepath.Join(data, "nested", DefaultDatabaseFile)}

	migrated, err := MigrateLegacyDatabase(cfg, home)
	require.NoError(t, err)
	assert.True(t, migrated)

	content, err := os.ReadFile(cfg.DatabasePath)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", string(content))
	assert.NoFileExists(t, filepath.Join(legacyDir, DefaultDatabaseFile))

	again, err := MigrateLegacyDatabase(cfg, home)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMigrateLegacyDatabaseKeepsExisting(t *testing.T) {
	home := t.TempDir()
	legacyDir := filepath.Join(home, LegacyDataDirName)
	require.NoError(t, os.MkdirAll(legacyDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(legacyDir, DefaultDatabaseFile), []byte("old"), 0o644))

	data := t.TempDir()
	cfg := Config{DataDir: data, DatabasePath: filepath.Join(data, DefaultDatabaseFile)}
	require.NoError(t, os.WriteFile(cfg.DatabasePath, []byte("new"), 0o644))

	migrated, err := MigrateLegacyDatabase(cfg, home)
	require.NoError(t, err)
	assert.False(t, migrated)

	content, _ := os.ReadFile(cfg.DatabasePath)
	assert.Equal(t, "new", string(content))
	assert.FileExists(t, filepath.Join(legacyDir, DefaultDatabaseFile))
}

func TestEnsureDirs(t *testing.T) {
	data := filepath.Join(t.TempDir(), "app")
	cfg := Config{DataDir: data, DatabasePath: filepath.Join(data, DefaultDatabaseFile), ThumbnailsPath: filepath.Join(data, "thumbs")}
	require.NoError(t, EnsureDirs(cfg))
	assert.DirExists(t, cfg.ThumbnailsPath)
}
