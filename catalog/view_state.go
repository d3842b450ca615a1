package catalog

import "slices"

type SortBy string

const (
	SortByName        SortBy = "name"
	SortByNameNatural SortBy = "name_natural"
	SortByCreatedAt   SortBy = "created_at"
	SortByRating      SortBy = "rating"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultSortBy    = SortByCreatedAt
	DefaultSortOrder = SortDesc
)

// IsValidSortBy checks if a string is a known sort key
func IsValidSortBy(s string) bool {
	switch SortBy(s) {
	case SortByName, SortByNameNatural, SortByCreatedAt, SortByRating:
		return true
	default:
		return false
	}
}

func IsValidSortOrder(s string) bool {
	return SortOrder(s) == SortAsc || SortOrder(s) == SortDesc
}

type FileTypeFilter string

const (
	FilterAll    FileTypeFilter = "all"
	FilterImages FileTypeFilter = "image"
	FilterVideos FileTypeFilter = "video"
)

type TagFilterMode string

const (
	TagFilterAny TagFilterMode = "any"
	TagFilterAll TagFilterMode = "all"
)

type FilterSettings struct {
	FileType          FileTypeFilter `json:"fileType"`
	MinRating         int            `json:"minRating"`
	SelectedTags      []string       `json:"selectedTags"`
	TagFilterMode     TagFilterMode  `json:"tagFilterMode"`
	ShowOnlyFavorites bool           `json:"showOnlyFavorites"`
}

func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		FileType:      FilterAll,
		MinRating:     0,
		SelectedTags:  []string{},
		TagFilterMode: TagFilterAny,
	}
}

func (f FilterSettings) clone() FilterSettings {
	c := f
	c.SelectedTags = slices.Clone(f.SelectedTags)
	if c.SelectedTags == nil {
		c.SelectedTags = []string{}
	}
	return c
}

// normalized replaces out-of-range or unknown values with defaults.
func (f FilterSettings) normalized() FilterSettings {
	c := f.clone()
	switch c.FileType {
	case FilterAll, FilterImages, FilterVideos:
	default:
		c.FileType = FilterAll
	}
	switch c.TagFilterMode {
	case TagFilterAny, TagFilterAll:
	default:
		c.TagFilterMode = TagFilterAny
	}
	c.MinRating = min(max(c.MinRating, 0), 5)
	return c
}

// FilterPatch merges into FilterSettings; nil fields are left alone.
type FilterPatch struct {
	FileType          *FileTypeFilter
	MinRating         *int
	SelectedTags      []string
	TagFilterMode     *TagFilterMode
	ShowOnlyFavorites *bool
}

func (p FilterPatch) applyTo(f FilterSettings) FilterSettings {
	if p.FileType != nil {
		f.FileType = *p.FileType
	}
	if p.MinRating != nil {
		f.MinRating = *p.MinRating
	}
	if p.SelectedTags != nil {
		f.SelectedTags = slices.Clone(p.SelectedTags)
	}
	if p.TagFilterMode != nil {
		f.TagFilterMode = *p.TagFilterMode
	}
	if p.ShowOnlyFavorites != nil {
		f.ShowOnlyFavorites = *p.ShowOnlyFavorites
	}
	return f.normalized()
}

// ViewState is everything the derived view depends on besides the items.
type ViewState struct {
	SortBy                SortBy         `json:"sortBy"`
	SortOrder             SortOrder      `json:"sortOrder"`
	Filter                FilterSettings `json:"filterSettings"`
	SearchQuery           string         `json:"searchQuery"`
	SelectedGroupID       *int64         `json:"selectedGroupId"`
	GroupFilteredImageIDs []int64        `json:"groupFilteredImageIds"`
}

func DefaultViewState() ViewState {
	return ViewState{
		SortBy:                DefaultSortBy,
		SortOrder:             DefaultSortOrder,
		Filter:                DefaultFilterSettings(),
		GroupFilteredImageIDs: []int64{},
	}
}

func (v ViewState) clone() ViewState {
	c := v
	c.Filter = v.Filter.clone()
	c.GroupFilteredImageIDs = slices.Clone(v.GroupFilteredImageIDs)
	if c.GroupFilteredImageIDs == nil {
		c.GroupFilteredImageIDs = []int64{}
	}
	if v.SelectedGroupID != nil {
		id := *v.SelectedGroupID
		c.SelectedGroupID = &id
	}
	return c
}

const (
	SlideshowIntervalShort   = 3
	SlideshowIntervalDefault = 5
	SlideshowIntervalLong    = 10
)

func IsValidSlideshowInterval(seconds int) bool {
	return seconds == SlideshowIntervalShort || seconds == SlideshowIntervalDefault || seconds == SlideshowIntervalLong
}

// Preferences is the persisted subset of the view state.
type Preferences struct {
	SortBy            SortBy         `json:"sortBy"`
	SortOrder         SortOrder      `json:"sortOrder"`
	FilterSettings    FilterSettings `json:"filterSettings"`
	SlideshowInterval int            `json:"slideshowInterval"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		SortBy:            DefaultSortBy,
		SortOrder:         DefaultSortOrder,
		FilterSettings:    DefaultFilterSettings(),
		SlideshowInterval: SlideshowIntervalDefault,
	}
}

// Normalized replaces invalid values with defaults.
func (p Preferences) Normalized() Preferences {
	if !IsValidSortBy(string(p.SortBy)) {
		p.SortBy = DefaultSortBy
	}
	if !IsValidSortOrder(string(p.SortOrder)) {
		p.SortOrder = DefaultSortOrder
	}
	if !IsValidSlideshowInterval(p.SlideshowInterval) {
		p.SlideshowInterval = SlideshowIntervalDefault
	}
	p.FilterSettings = p.FilterSettings.normalized()
	return p
}
