// Package media finds gallery files on disk, probes videos and renders
// thumbnails with the external ffmpeg tools.
package media

import (
	"path/filepath"
	"strings"

	"github.com/camden-git/mediacatalog/models"
)

type AssetType string

const (
	AssetTypeThumbnail AssetType = "thumbnail"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true,
}

// FileTypeOf classifies a path by extension, ignoring case.
func FileTypeOf(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return models.FileTypeImage, true
	case videoExtensions[ext]:
		return models.FileTypeVideo, true
	}
	return "", false
}

// IsSupported reports whether the gallery tracks files with this extension.
func IsSupported(path string) bool {
	_, ok := FileTypeOf(path)
	return ok
}

// VideoInfo is what ffprobe reports about a video file.
type VideoInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	VideoCodec      string  `json:"video_codec"`
	AudioCodec      *string `json:"audio_codec,omitempty"`
}
