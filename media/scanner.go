package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
)

// ScannedFile is one supported file found on disk.
type ScannedFile struct {
	Path     string
	Name     string
	FileType string
	ModTime  time.Time
	Video    *VideoInfo
}

// Model converts the scan result into a new image row.
func (f ScannedFile) Model() *models.Image {
	img := &models.Image{
		FilePath: f.Path,
		FileName: f.Name,
		FileType: f.FileType,
	}
	if f.Video != nil {
		duration := f.Video.DurationSeconds
		width, height := f.Video.Width, f.Video.Height
		codec := f.Video.VideoCodec
		img.DurationSeconds = &duration
		img.Width = &width
		img.Height = &height
		img.VideoCodec = &codec
		img.AudioCodec = f.Video.AudioCodec
	}
	return img
}

type Scanner struct {
	prober Prober
	log    *logger.Logger
}

// NewScanner returns a scanner. A nil prober treats every video as unprobeable
// because the tool is missing.
func NewScanner(prober Prober, log *logger.Logger) *Scanner {
	if prober == nil {
		prober = FFprobe{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{prober: prober, log: log}
}

// Scan walks dir recursively and returns its supported files sorted by path.
// Unreadable entries are skipped, as are videos whose probe fails. Videos are
// kept without metadata when ffprobe is not installed.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]ScannedFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	ctx = s.log.WithField(ctx, "directory", dir)
	files := []ScannedFile{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.log.Debug(s.log.WithField(ctx, "path", path), "skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		file, ok := s.inspect(ctx, path, d)
		if ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	s.log.Info(s.log.WithField(ctx, "files", len(files)), "directory scanned")
	return files, nil
}

// ScanFile inspects a single path. ok is false for unsupported, missing or
// unprobeable files.
func (s *Scanner) ScanFile(ctx context.Context, path string) (ScannedFile, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ScannedFile{}, false
	}
	return s.inspect(ctx, path, fs.FileInfoToDirEntry(info))
}

func (s *Scanner) inspect(ctx context.Context, path string, d fs.DirEntry) (ScannedFile, bool) {
	fileType, ok := FileTypeOf(path)
	if !ok {
		return ScannedFile{}, false
	}
	file := ScannedFile{Path: path, Name: filepath.Base(path), FileType: fileType}
	if info, err := d.Info(); err == nil {
		file.ModTime = info.ModTime()
	}
	if fileType != models.FileTypeVideo {
		return file, true
	}

	video, err := s.prober.Probe(ctx, path)
	switch {
	case err == nil:
		file.Video = video
	case errors.Is(err, ErrToolUnavailable):
		// kept without video metadata
	default:
		s.log.Warn(s.log.WithFields(ctx, map[string]any{"path": path, "error": err.Error()}), "skipping video that could not be probed")
		return ScannedFile{}, false
	}
	return file, true
}
