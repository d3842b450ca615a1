// Package catalog holds the in-memory media collection and the pure
// functions that derive the visible view from it.
package catalog

import (
	"slices"
	"strings"
	"time"

	"github.com/camden-git/mediacatalog/models"
)

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// MediaItem is one scanned file's catalog record.
type MediaItem struct {
	ID       int64    `json:"id"`
	FilePath string   `json:"file_path"`
	FileName string   `json:"file_name"`
	FileType FileType `json:"file_type"`

	Rating     int      `json:"rating"`
	Comment    *string  `json:"comment"`
	Tags       []string `json:"tags"`
	IsFavorite bool     `json:"is_favorite"`

	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	VideoCodec      *string  `json:"video_codec,omitempty"`
	AudioCodec      *string  `json:"audio_codec,omitempty"`
	ThumbnailPath   *string  `json:"thumbnail_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTag matches tags exactly, case included.
func (m MediaItem) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

func (m MediaItem) clone() MediaItem {
	c := m
	c.Tags = slices.Clone(m.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

func ItemFromModel(img models.Image) MediaItem {
	return MediaItem{
		ID:              img.ID,
		FilePath:        img.FilePath,
		FileName:        img.FileName,
		FileType:        FileType(img.FileType),
		Rating:          img.Rating,
		Comment:         img.Comment,
		Tags:            models.DecodeTags(img.Tags),
		IsFavorite:      img.IsFavorite,
		DurationSeconds: img.DurationSeconds,
		Width:           img.Width,
		Height:          img.Height,
		VideoCodec:      img.VideoCodec,
		AudioCodec:      img.AudioCodec,
		ThumbnailPath:   img.ThumbnailPath,
		CreatedAt:       time.Unix(img.CreatedAt, 0).UTC(),
		UpdatedAt:       time.Unix(img.UpdatedAt, 0).UTC(),
	}
}

func ItemsFromModels(images []models.Image) []MediaItem {
	items := make([]MediaItem, 0, len(images))
	for _, img := range images {
		items = append(items, ItemFromModel(img))
	}
	return items
}

// AddTag appends tag unless it is blank or already present ignoring case.
// It returns the resulting list and whether it changed.
func AddTag(tags []string, tag string) ([]string, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return tags, false
	}
	for _, existing := range tags {
		if strings.EqualFold(existing, tag) {
			return tags, false
		}
	}
	out := make([]string, 0, len(tags)+1)
	out = append(out, tags...)
	return append(out, tag), true
}

// RemoveTag drops every exact occurrence of tag.
func RemoveTag(tags []string, tag string) ([]string, bool) {
	out := make([]string, 0, len(tags))
	for _, existing := range tags {
		if existing != tag {
			out = append(out, existing)
		}
	}
	return out, len(out) != len(tags)
}
