package catalog

import (
	"cmp"
	"slices"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DeriveView returns the visible items for vs, in display order. It does not
// modify items and returns the same result for the same inputs.
//
// Filters run in a fixed order: group scope, search, favorites, file type,
// minimum rating, tags. The sort is stable, so items that compare equal keep
// their catalog order in both directions.
func DeriveView(items []MediaItem, vs ViewState) []MediaItem {
	p := newPredicate(vs)
	out := make([]MediaItem, 0, len(items))
	for _, item := range items {
		if p.matches(item) {
			out = append(out, item.clone())
		}
	}

	compare := comparatorFor(vs.SortBy)
	if vs.SortOrder == SortDesc {
		asc := compare
		compare = func(a, b MediaItem) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

// Matches reports whether item passes every active filter of vs.
func Matches(item MediaItem, vs ViewState) bool {
	return newPredicate(vs).matches(item)
}

type predicate struct {
	vs      ViewState
	scope   map[int64]struct{}
	query   string
	byScope bool
}

func newPredicate(vs ViewState) predicate {
	p := predicate{vs: vs}
	// A blank query is off; otherwise surrounding spaces are part of the match.
	if strings.TrimSpace(vs.SearchQuery) != "" {
		p.query = strings.ToLower(vs.SearchQuery)
	}
	if vs.SelectedGroupID != nil {
		p.byScope = true
		p.scope = make(map[int64]struct{}, len(vs.GroupFilteredImageIDs))
		for _, id := range vs.GroupFilteredImageIDs {
			p.scope[id] = struct{}{}
		}
	}
	return p
}

func (p predicate) matches(item MediaItem) bool {
	if p.byScope {
		if _, ok := p.scope[item.ID]; !ok {
			return false
		}
	}
	if p.query != "" && !strings.Contains(strings.ToLower(item.FileName), p.query) {
		return false
	}
	f := p.vs.Filter
	if f.ShowOnlyFavorites && !item.IsFavorite {
		return false
	}
	if f.FileType != "" && f.FileType != FilterAll && string(item.FileType) != string(f.FileType) {
		return false
	}
	if item.Rating < f.MinRating {
		return false
	}
	if len(f.SelectedTags) > 0 {
		if f.TagFilterMode == TagFilterAll {
			for _, tag := range f.SelectedTags {
				if !item.HasTag(tag) {
					return false
				}
			}
		} else if !slices.ContainsFunc(f.SelectedTags, item.HasTag) {
			return false
		}
	}
	return true
}

func comparatorFor(sortBy SortBy) func(a, b MediaItem) int {
	switch sortBy {
	case SortByName:
		// a Collator keeps internal buffers, so each derivation gets its own
		c := collate.New(language.English)
		return func(a, b MediaItem) int { return c.CompareString(a.FileName, b.FileName) }
	case SortByNameNatural:
		return func(a, b MediaItem) int {
			switch {
			case natsort.Compare(a.FileName, b.FileName):
				return -1
			case natsort.Compare(b.FileName, a.FileName):
				return 1
			default:
				return 0
			}
		}
	case SortByRating:
		return func(a, b MediaItem) int { return cmp.Compare(a.Rating, b.Rating) }
	default:
		return func(a, b MediaItem) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

// AllTags returns every distinct tag in the catalog, sorted. Tags that differ
// only by case are kept apart.
func AllTags(items []MediaItem) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, item := range items {
		for _, tag := range item.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagsWithCount counts items per tag, most used first. Ties keep first-seen order.
func TagsWithCount(items []MediaItem) []TagCount {
	index := make(map[string]int)
	counts := []TagCount{}
	for _, item := range items {
		for _, tag := range item.Tags {
			if i, ok := index[tag]; ok {
				counts[i].Count++
				continue
			}
			index[tag] = len(counts)
			counts = append(counts, TagCount{Tag: tag, Count: 1})
		}
	}
	slices.SortStableFunc(counts, func(a, b TagCount) int { return cmp.Compare(b.Count, a.Count) })
	return counts
}
