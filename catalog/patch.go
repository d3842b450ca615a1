package catalog

import (
	"slices"
	"time"
)

// Patch lists the fields to merge into one item. nil means unchanged.
type Patch struct {
	Rating        *int
	Comment       *string
	Tags          []string
	IsFavorite    *bool
	ThumbnailPath *string
	UpdatedAt     *time.Time
}

func (p Patch) apply(item *MediaItem) {
	if p.Rating != nil {
		item.Rating = *p.Rating
	}
	if p.Comment != nil {
		if *p.Comment == "" {
			item.Comment = nil
		} else {
			c := *p.Comment
			item.Comment = &c
		}
	}
	if p.Tags != nil {
		item.Tags = slices.Clone(p.Tags)
	}
	if p.IsFavorite != nil {
		item.IsFavorite = *p.IsFavorite
	}
	if p.ThumbnailPath != nil {
		t := *p.ThumbnailPath
		item.ThumbnailPath = &t
	}
	if p.UpdatedAt != nil {
		item.UpdatedAt = *p.UpdatedAt
	}
}
