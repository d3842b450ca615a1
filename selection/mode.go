// Package selection implements the gallery's interaction modes: normal
// browsing, multi-select, and picking a group's representative image.
package selection

import (
	"maps"
	"slices"
	"sync"

	"github.com/camden-git/mediacatalog/realtime"
)

type Kind int

const (
	KindNormal Kind = iota
	KindMultiSelect
	KindRepresentativeSelect
)

func (k Kind) String() string {
	switch k {
	case KindMultiSelect:
		return "multi_select"
	case KindRepresentativeSelect:
		return "representative_select"
	default:
		return "normal"
	}
}

// Mode is a value copy of the controller state. Only the fields of the
// active kind are meaningful.
type Mode struct {
	Kind     Kind
	Selected map[int64]struct{} // KindMultiSelect
	GroupID  int64              // KindRepresentativeSelect
}

func (m Mode) IsNormal() bool               { return m.Kind == KindNormal }
func (m Mode) IsMultiSelect() bool          { return m.Kind == KindMultiSelect }
func (m Mode) IsRepresentativeSelect() bool { return m.Kind == KindRepresentativeSelect }

// ClickAction tells the caller what a click on a media item should do.
type ClickAction int

const (
	ActionOpenDetail ClickAction = iota
	ActionToggledSelection
	ActionCommitRepresentative
)

type ClickResult struct {
	Action  ClickAction
	ImageID int64
	GroupID int64 // set for ActionCommitRepresentative
}

type Publisher interface {
	Publish(event realtime.Event)
}

// Controller holds the single active mode. The three modes are exclusive by
// construction: entering one replaces whatever was active.
type Controller struct {
	mu       sync.Mutex
	kind     Kind
	selected map[int64]struct{}
	groupID  int64
	pub      Publisher
}

func NewController(pub Publisher) *Controller {
	return &Controller{pub: pub}
}

func (c *Controller) changed() {
	if c.pub == nil {
		return
	}
	c.mu.Lock()
	mode := c.kind
	n := len(c.selected)
	group := c.groupID
	c.mu.Unlock()
	c.pub.Publish(realtime.Event{
		Type:    realtime.EventModeChanged,
		GroupID: group,
		Extra:   map[string]any{"mode": mode.String(), "selected": n},
	})
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := Mode{Kind: c.kind, GroupID: c.groupID}
	if c.kind == KindMultiSelect {
		m.Selected = maps.Clone(c.selected)
		if m.Selected == nil {
			m.Selected = map[int64]struct{}{}
		}
	}
	return m
}

// ToggleSelectionMode enters multi-select (dropping any representative pick)
// or leaves it, clearing the selection.
func (c *Controller) ToggleSelectionMode() {
	c.mu.Lock()
	if c.kind == KindMultiSelect {
		c.setNormal()
	} else {
		c.kind = KindMultiSelect
		c.selected = make(map[int64]struct{})
		c.groupID = 0
	}
	c.mu.Unlock()
	c.changed()
}

// ToggleImage flips id's membership in the selection. Outside multi-select it does nothing.
func (c *Controller) ToggleImage(id int64) bool {
	c.mu.Lock()
	if c.kind != KindMultiSelect {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
	} else {
		c.selected[id] = struct{}{}
	}
	c.mu.Unlock()
	c.changed()
	return true
}

// ToggleSelectAll works on the currently visible ids: when every one of them
// is selected (and there is at least one) the selection is cleared, otherwise
// the selection becomes exactly the visible ids.
func (c *Controller) ToggleSelectAll(visible []int64) bool {
	c.mu.Lock()
	if c.kind != KindMultiSelect {
		c.mu.Unlock()
		return false
	}
	allSelected := len(visible) > 0
	for _, id := range visible {
		if _, ok := c.selected[id]; !ok {
			allSelected = false
			break
		}
	}
	next := make(map[int64]struct{}, len(visible))
	if !allSelected {
		for _, id := range visible {
			next[id] = struct{}{}
		}
	}
	c.selected = next
	c.mu.Unlock()
	c.changed()
	return true
}

func (c *Controller) ClearSelection() {
	c.mu.Lock()
	if c.kind == KindMultiSelect {
		c.selected = make(map[int64]struct{})
	}
	c.mu.Unlock()
	c.changed()
}

// EnterRepresentativeMode starts picking a representative image for groupID,
// leaving multi-select and discarding its selection.
func (c *Controller) EnterRepresentativeMode(groupID int64) {
	c.mu.Lock()
	c.kind = KindRepresentativeSelect
	c.groupID = groupID
	c.selected = nil
	c.mu.Unlock()
	c.changed()
}

// CancelRepresentative returns to normal without committing. It reports
// whether representative mode was active.
func (c *Controller) CancelRepresentative() bool {
	c.mu.Lock()
	active := c.kind == KindRepresentativeSelect
	if active {
		c.setNormal()
	}
	c.mu.Unlock()
	if active {
		c.changed()
	}
	return active
}

// FinishRepresentative leaves representative mode after a successful commit
// for groupID. A stale groupID (the mode changed meanwhile) is ignored.
func (c *Controller) FinishRepresentative(groupID int64) {
	c.mu.Lock()
	done := c.kind == KindRepresentativeSelect && c.groupID == groupID
	if done {
		c.setNormal()
	}
	c.mu.Unlock()
	if done {
		c.changed()
	}
}

// Click resolves a click on a media item according to the active mode.
func (c *Controller) Click(id int64) ClickResult {
	c.mu.Lock()
	kind := c.kind
	group := c.groupID
	c.mu.Unlock()

	switch kind {
	case KindMultiSelect:
		c.ToggleImage(id)
		return ClickResult{Action: ActionToggledSelection, ImageID: id}
	case KindRepresentativeSelect:
		return ClickResult{Action: ActionCommitRepresentative, ImageID: id, GroupID: group}
	default:
		return ClickResult{Action: ActionOpenDetail, ImageID: id}
	}
}

// ResetAllModes returns to normal and drops any selection. Used at navigation boundaries.
func (c *Controller) ResetAllModes() {
	c.mu.Lock()
	c.setNormal()
	c.mu.Unlock()
	c.changed()
}

// SelectedIDs returns the selection sorted ascending; empty outside multi-select.
func (c *Controller) SelectedIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := slices.Collect(maps.Keys(c.selected))
	slices.Sort(ids)
	if ids == nil {
		ids = []int64{}
	}
	return ids
}

func (c *Controller) IsSelected(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

func (c *Controller) setNormal() {
	c.kind = KindNormal
	c.selected = nil
	c.groupID = 0
}
