package gallery

import (
	"context"
	"strings"

	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/groups"
	"github.com/camden-git/mediacatalog/history"
	"github.com/camden-git/mediacatalog/selection"
)

// ClickItem resolves a click on a media item in the current mode. In
// representative mode the clicked item is committed as the group's cover;
// the mode stays active when that fails so another item can be picked.
func (g *Gallery) ClickItem(ctx context.Context, id int64) (selection.ClickResult, error) {
	res := g.modes.Click(id)
	switch res.Action {
	case selection.ActionOpenDetail:
		g.store.SetSelectedImageID(&id)
	case selection.ActionCommitRepresentative:
		if err := g.groups.SetRepresentativeImage(ctx, res.GroupID, &id); err != nil {
			return res, err
		}
		g.modes.FinishRepresentative(res.GroupID)
	}
	return res, nil
}

// ToggleSelectAll selects every visible item, or clears the selection when
// all of them are already selected.
func (g *Gallery) ToggleSelectAll() bool {
	return g.modes.ToggleSelectAll(g.store.VisibleIDs())
}

func (g *Gallery) CloseDetail() {
	g.store.SetSelectedImageID(nil)
}

// OpenGroup scopes the view to one group.
func (g *Gallery) OpenGroup(ctx context.Context, groupID int64) error {
	return g.projection.EnterGroupScope(ctx, groupID)
}

// LeaveGroup returns to "All Images" and drops any mode or selection.
func (g *Gallery) LeaveGroup() {
	g.projection.ExitGroupScope()
	g.modes.ResetAllModes()
}

func (g *Gallery) StartRepresentativeSelection(groupID int64) {
	g.modes.EnterRepresentativeMode(groupID)
}

// AddSelectionToGroup adds the multi-select selection to a group and leaves
// multi-select on success.
func (g *Gallery) AddSelectionToGroup(ctx context.Context, groupID int64) (int64, error) {
	ids := g.modes.SelectedIDs()
	if len(ids) == 0 {
		return 0, nil
	}
	added, err := g.groups.AddImages(ctx, ids, groupID)
	if err != nil {
		return 0, err
	}
	g.modes.ResetAllModes()
	return added, nil
}

// HandleKey applies the gallery's keyboard shortcuts and reports whether the
// key was consumed.
func (g *Gallery) HandleKey(ctx context.Context, ev history.KeyEvent) (bool, error) {
	switch history.ShortcutFor(ev) {
	case history.ShortcutUndo:
		_, err := g.history.Undo(ctx)
		return true, err
	case history.ShortcutRedo:
		_, err := g.history.Redo(ctx)
		return true, err
	}

	mode := g.modes.Mode()
	if ev.Key == "Escape" {
		switch {
		case mode.IsRepresentativeSelect():
			if g.modes.CancelRepresentative() {
				g.toasts.Info(groups.MessageRepCancelled)
			}
			return true, nil
		case mode.IsMultiSelect():
			g.modes.ToggleSelectionMode()
			return true, nil
		case !ev.InTextInput && g.store.Snapshot().SelectedImageID != nil:
			g.CloseDetail()
			return true, nil
		}
		return false, nil
	}

	if ev.InTextInput || !(ev.Ctrl || ev.Meta) || !mode.IsMultiSelect() {
		return false, nil
	}
	switch strings.ToLower(ev.Key) {
	case "a":
		g.ToggleSelectAll()
		return true, nil
	case "d":
		g.modes.ClearSelection()
		return true, nil
	}
	return false, nil
}

// SetSortBy and the other preference setters update the view and persist
// the preferences.
func (g *Gallery) SetSortBy(ctx context.Context, sortBy catalog.SortBy) error {
	g.store.SetSortBy(sortBy)
	return g.savePreferences(ctx)
}

func (g *Gallery) SetSortOrder(ctx context.Context, order catalog.SortOrder) error {
	g.store.SetSortOrder(order)
	return g.savePreferences(ctx)
}

func (g *Gallery) SetFilterSettings(ctx context.Context, patch catalog.FilterPatch) error {
	g.store.SetFilterSettings(patch)
	return g.savePreferences(ctx)
}

func (g *Gallery) ResetFilters(ctx context.Context) error {
	g.store.ResetFilters()
	return g.savePreferences(ctx)
}

func (g *Gallery) SetSlideshowInterval(ctx context.Context, seconds int) (bool, error) {
	if !g.store.SetSlideshowInterval(seconds) {
		return false, nil
	}
	return true, g.savePreferences(ctx)
}

// SetSearchQuery is not persisted.
func (g *Gallery) SetSearchQuery(query string) {
	g.store.SetSearchQuery(query)
}
