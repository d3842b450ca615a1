package catalog

import (
	"slices"
	"sync"

	"github.com/camden-git/mediacatalog/realtime"
)

// Publisher receives change notifications. *realtime.Hub satisfies it.
type Publisher interface {
	Publish(event realtime.Event)
}

// Snapshot is a copy of the store's state at one instant.
type Snapshot struct {
	Items            []MediaItem `json:"items"`
	View             ViewState   `json:"view"`
	CurrentDirectory string      `json:"currentDirectory"`
	Loading          bool        `json:"isLoading"`
	Error            string      `json:"error"`
	SlideshowActive  bool        `json:"isSlideshowActive"`
	SlideshowSeconds int         `json:"slideshowInterval"`
	SelectedImageID  *int64      `json:"selectedImageId"`
}

// Store owns the media collection, its view state and a few UI flags.
// Every mutation goes through its methods; reads return copies.
type Store struct {
	mu sync.RWMutex

	items []MediaItem
	index map[int64]int

	currentDirectory string
	loading          bool
	lastError        string

	view             ViewState
	slideshowActive  bool
	slideshowSeconds int
	selectedImageID  *int64

	pub Publisher
}

// NewStore returns an empty store. pub may be nil.
func NewStore(pub Publisher) *Store {
	return &Store{
		index:            make(map[int64]int),
		view:             DefaultViewState(),
		slideshowSeconds: SlideshowIntervalDefault,
		pub:              pub,
	}
}

func (s *Store) publish(event realtime.Event) {
	if s.pub != nil {
		s.pub.Publish(event)
	}
}

// ReplaceAll swaps in a new collection.
func (s *Store) ReplaceAll(items []MediaItem) {
	next := make([]MediaItem, len(items))
	index := make(map[int64]int, len(items))
	for i, item := range items {
		next[i] = item.clone()
		index[item.ID] = i
	}

	s.mu.Lock()
	s.items = next
	s.index = index
	s.mu.Unlock()

	s.publish(realtime.Event{Type: realtime.EventCatalogReplaced, Extra: map[string]any{"count": len(next)}})
}

// PatchOne merges p into the item with id. Unknown ids are ignored and
// reported through the return value.
func (s *Store) PatchOne(id int64, p Patch) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		p.apply(&s.items[i])
	}
	s.mu.Unlock()

	if ok {
		s.publish(realtime.Event{Type: realtime.EventCatalogPatched, ImageID: id})
	}
	return ok
}

// ToggleFavorite flips is_favorite and returns the new value.
// Calling it twice restores the original value.
func (s *Store) ToggleFavorite(id int64) (bool, bool) {
	s.mu.Lock()
	i, ok := s.index[id]
	var value bool
	if ok {
		s.items[i].IsFavorite = !s.items[i].IsFavorite
		value = s.items[i].IsFavorite
	}
	s.mu.Unlock()

	if ok {
		s.publish(realtime.Event{Type: realtime.EventCatalogPatched, ImageID: id, Extra: map[string]any{"is_favorite": value}})
	}
	return value, ok
}

func (s *Store) Item(id int64) (MediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return MediaItem{}, false
	}
	return s.items[i].clone(), true
}

func (s *Store) Items() []MediaItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MediaItem, len(s.items))
	for i, item := range s.items {
		out[i] = item.clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]MediaItem, len(s.items))
	for i, item := range s.items {
		items[i] = item.clone()
	}
	var selected *int64
	if s.selectedImageID != nil {
		id := *s.selectedImageID
		selected = &id
	}
	return Snapshot{
		Items:            items,
		View:             s.view.clone(),
		CurrentDirectory: s.currentDirectory,
		Loading:          s.loading,
		Error:            s.lastError,
		SlideshowActive:  s.slideshowActive,
		SlideshowSeconds: s.slideshowSeconds,
		SelectedImageID:  selected,
	}
}

// View derives the visible items from the current state.
func (s *Store) View() []MediaItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DeriveView(s.items, s.view)
}

// VisibleIDs returns the ids of View() in display order.
func (s *Store) VisibleIDs() []int64 {
	view := s.View()
	ids := make([]int64, len(view))
	for i, item := range view {
		ids[i] = item.ID
	}
	return ids
}

func (s *Store) ViewState() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.clone()
}

func (s *Store) AllTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AllTags(s.items)
}

func (s *Store) TagsWithCount() []TagCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TagsWithCount(s.items)
}

func (s *Store) updateView(fn func(v *ViewState)) {
	s.mu.Lock()
	fn(&s.view)
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventViewChanged})
}

// SetSortBy ignores unknown keys.
func (s *Store) SetSortBy(sortBy SortBy) {
	if !IsValidSortBy(string(sortBy)) {
		return
	}
	s.updateView(func(v *ViewState) { v.SortBy = sortBy })
}

func (s *Store) SetSortOrder(order SortOrder) {
	if !IsValidSortOrder(string(order)) {
		return
	}
	s.updateView(func(v *ViewState) { v.SortOrder = order })
}

func (s *Store) SetFilterSettings(p FilterPatch) {
	s.updateView(func(v *ViewState) { v.Filter = p.applyTo(v.Filter.clone()) })
}

func (s *Store) ResetFilters() {
	s.updateView(func(v *ViewState) { v.Filter = DefaultFilterSettings() })
}

func (s *Store) SetSearchQuery(query string) {
	s.updateView(func(v *ViewState) { v.SearchQuery = query })
}

// SetGroupScope restricts the view to memberIDs of groupID.
func (s *Store) SetGroupScope(groupID int64, memberIDs []int64) {
	ids := slices.Clone(memberIDs)
	if ids == nil {
		ids = []int64{}
	}
	s.updateView(func(v *ViewState) {
		v.SelectedGroupID = &groupID
		v.GroupFilteredImageIDs = ids
	})
}

func (s *Store) ClearGroupScope() {
	s.updateView(func(v *ViewState) {
		v.SelectedGroupID = nil
		v.GroupFilteredImageIDs = []int64{}
	})
}

// GroupScope returns the active group id, if any.
func (s *Store) GroupScope() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view.SelectedGroupID == nil {
		return 0, false
	}
	return *s.view.SelectedGroupID, true
}

func (s *Store) SetCurrentDirectory(path string) {
	s.mu.Lock()
	s.currentDirectory = path
	s.mu.Unlock()
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *Store) ClearError() {
	s.SetError("")
}

// Reset empties the collection and clears the directory, detail and error flags.
// View preferences survive.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.index = make(map[int64]int)
	s.currentDirectory = ""
	s.selectedImageID = nil
	s.loading = false
	s.lastError = ""
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventCatalogReplaced, Extra: map[string]any{"count": 0}})
}

// SetSelectedImageID opens (non-nil) or closes (nil) the detail view.
func (s *Store) SetSelectedImageID(id *int64) {
	s.mu.Lock()
	if id == nil {
		s.selectedImageID = nil
	} else {
		v := *id
		s.selectedImageID = &v
	}
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventViewChanged})
}

// NextImageID returns the item after current in the derived view.
func (s *Store) NextImageID(current int64) (int64, bool) {
	return s.neighbour(current, 1)
}

// PrevImageID returns the item before current in the derived view.
func (s *Store) PrevImageID(current int64) (int64, bool) {
	return s.neighbour(current, -1)
}

func (s *Store) neighbour(current int64, step int) (int64, bool) {
	ids := s.VisibleIDs()
	i := slices.Index(ids, current)
	if i < 0 {
		return 0, false
	}
	j := i + step
	if j < 0 || j >= len(ids) {
		return 0, false
	}
	return ids[j], true
}

func (s *Store) StartSlideshow()  { s.setSlideshow(func(bool) bool { return true }) }
func (s *Store) StopSlideshow()   { s.setSlideshow(func(bool) bool { return false }) }
func (s *Store) ToggleSlideshow() { s.setSlideshow(func(active bool) bool { return !active }) }

func (s *Store) setSlideshow(fn func(bool) bool) {
	s.mu.Lock()
	s.slideshowActive = fn(s.slideshowActive)
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventViewChanged})
}

// SetSlideshowInterval accepts 3, 5 or 10 seconds and reports whether the value was applied.
func (s *Store) SetSlideshowInterval(seconds int) bool {
	if !IsValidSlideshowInterval(seconds) {
		return false
	}
	s.mu.Lock()
	s.slideshowSeconds = seconds
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventViewChanged})
	return true
}

// Preferences returns the persisted subset of the state.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Preferences{
		SortBy:            s.view.SortBy,
		SortOrder:         s.view.SortOrder,
		FilterSettings:    s.view.Filter.clone(),
		SlideshowInterval: s.slideshowSeconds,
	}
}

// ApplyPreferences restores persisted preferences, replacing invalid values with defaults.
func (s *Store) ApplyPreferences(p Preferences) {
	p = p.Normalized()
	s.mu.Lock()
	s.view.SortBy = p.SortBy
	s.view.SortOrder = p.SortOrder
	s.view.Filter = p.FilterSettings
	s.slideshowSeconds = p.SlideshowInterval
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventViewChanged})
}
