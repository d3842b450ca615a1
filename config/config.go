package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppIdentifier           = "com.imagegallery"
	DefaultDatabaseFile     = "gallery.db"
	DefaultThumbnailsSubDir = "thumbnails"
	LegacyDataDirName       = ".image_gallery"
)

const (
	defaultThumbnailQueueSize  = 200
	defaultNumThumbnailWorkers = 2
	defaultThumbnailMaxSize    = 320
	defaultWatchDebounce       = 2 * time.Second
	defaultToastDuration       = 3 * time.Second
)

type Config struct {
	// application data (database, generated thumbnails)
	DataDir      string `envconfig:"GALLERY_DATA_DIR"`
	DatabasePath string `envconfig:"GALLERY_DATABASE_PATH"`

	ThumbnailsSubDir string `envconfig:"GALLERY_THUMBNAILS_SUBDIR" default:"thumbnails"`
	ThumbnailsPath   string `ignored:"true"` // full-calculated path for thumbnails
	ThumbnailMaxSize int    `envconfig:"GALLERY_THUMBNAIL_MAX_SIZE" default:"320"`

	// worker settings
	ThumbnailQueueSize  int `envconfig:"GALLERY_THUMBNAIL_QUEUE_SIZE" default:"200"`
	NumThumbnailWorkers int `envconfig:"GALLERY_NUM_THUMBNAIL_WORKERS" default:"2"`

	// external tools, resolved from PATH when empty
	FFmpegPath  string `envconfig:"GALLERY_FFMPEG_PATH"`
	FFprobePath string `envconfig:"GALLERY_FFPROBE_PATH"`

	WatchDebounce time.Duration `envconfig:"GALLERY_WATCH_DEBOUNCE" default:"2s"`
	ToastDuration time.Duration `envconfig:"GALLERY_TOAST_DURATION" default:"3s"`

	LogLevel     string `envconfig:"GALLERY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GALLERY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GALLERY_LOG_WARN_STACK" default:"false"`

	// Warnings collects values that were replaced by defaults; logged once the logger exists.
	Warnings []string `ignored:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ThumbnailMaxSize = cfg.positiveOrDefault("GALLERY_THUMBNAIL_MAX_SIZE", cfg.ThumbnailMaxSize, defaultThumbnailMaxSize)
	cfg.ThumbnailQueueSize = cfg.positiveOrDefault("GALLERY_THUMBNAIL_QUEUE_SIZE", cfg.ThumbnailQueueSize, defaultThumbnailQueueSize)
	cfg.NumThumbnailWorkers = cfg.positiveOrDefault("GALLERY_NUM_THUMBNAIL_WORKERS", cfg.NumThumbnailWorkers, defaultNumThumbnailWorkers)
	if cfg.WatchDebounce <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid GALLERY_WATCH_DEBOUNCE %s, using default %s", cfg.WatchDebounce, defaultWatchDebounce))
		cfg.WatchDebounce = defaultWatchDebounce
	}
	if cfg.ToastDuration <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid GALLERY_TOAST_DURATION %s, using default %s", cfg.ToastDuration, defaultToastDuration))
		cfg.ToastDuration = defaultToastDuration
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		cfg.DataDir = filepath.Join(base, AppIdentifier)
	}
	absData, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data dir '%s': %w", cfg.DataDir, err)
	}
	cfg.DataDir = absData

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, DefaultDatabaseFile)
	}
	if cfg.ThumbnailsSubDir == "" {
		cfg.ThumbnailsSubDir = DefaultThumbnailsSubDir
	}
	cfg.ThumbnailsPath = filepath.Join(cfg.DataDir, cfg.ThumbnailsSubDir)

	return cfg, nil
}

func (c *Config) positiveOrDefault(key string, value, def int) int {
	if value > 0 {
		return value
	}
	c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s '%d', using default %d", key, value, def))
	return def
}

// EnsureDirs creates the data and thumbnail directories.
func EnsureDirs(cfg Config) error {
	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.DatabasePath), cfg.ThumbnailsPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MigrateLegacyDatabase moves <home>/.image_gallery/gallery.db to the configured
// database path when only the legacy file exists. It reports whether a copy happened.
func MigrateLegacyDatabase(cfg Config, home string) (bool, error) {
	legacy := filepath.Join(home, LegacyDataDirName, DefaultDatabaseFile)
	if _, err := os.Stat(cfg.DatabasePath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat database %s: %w", cfg.DatabasePath, err)
	}
	if _, err := os.Stat(legacy); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to stat legacy database %s: %w", legacy, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return false, fmt.Errorf("failed to create database dir: %w", err)
	}
	if err := copyFile(legacy, cfg.DatabasePath); err != nil {
		return false, fmt.Errorf("failed to copy legacy database: %w", err)
	}
	if err := os.Remove(legacy); err != nil {
		return true, fmt.Errorf("database migrated but legacy file could not be removed: %w", err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
