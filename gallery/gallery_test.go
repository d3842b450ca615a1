package gallery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/config"
	"github.com/camden-git/mediacatalog/groups"
	"github.com/camden-git/mediacatalog/history"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/notify"
	"github.com/camden-git/mediacatalog/repository"
	"github.com/camden-git/mediacatalog/testutil"
	"github.com/camden-git/mediacatalog/watcher"
)

type failingUpdates struct {
	repository.ImageRepositoryInterface
}

func (failingUpdates) UpdateMetadata(context.Context, int64, repository.MetadataUpdate) error {
	return errors.New("disk I/O error")
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataDir:             t.TempDir(),
		ThumbnailsSubDir:    config.DefaultThumbnailsSubDir,
		ThumbnailMaxSize:    64,
		ThumbnailQueueSize:  4,
		NumThumbnailWorkers: 1,
		WatchDebounce:       50 * time.Millisecond,
		ToastDuration:       time.Minute,
	}
}

func newGallery(t *testing.T, db *gorm.DB) *Gallery {
	t.Helper()
	g, err := New(Options{DB: db, Config: testConfig(t), Logger: logger.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

// seeded returns a loaded gallery over a directory of three images, keyed by file name.
func seeded(t *testing.T) (*Gallery, map[string]int64) {
	t.Helper()
	g := newGallery(t, testutil.NewDB(t))
	ctx := context.Background()

	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	_, err := g.Library().ScanPath(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, g.Load(ctx))

	ids := map[string]int64{}
	for _, item := range g.Store().Items() {
		ids[item.FileName] = item.ID
	}
	require.Len(t, ids, 3)
	return g, ids
}

func toastMessages(n *notify.Notifier) []string {
	var out []string
	for _, toast := range n.List() {
		out = append(out, toast.Message)
	}
	return out
}

func TestToggleFavoriteIsRecorded(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()
	id := ids["a.jpg"]

	fav, err := g.ToggleFavorite(ctx, id)
	require.NoError(t, err)
	assert.True(t, fav)
	item, _ := g.Store().Item(id)
	assert.True(t, item.IsFavorite)

	state, err := g.History().State(ctx)
	require.NoError(t, err)
	require.True(t, state.CanUndo)
	assert.Equal(t, "update_is_favorite", state.LastAction.ActionType)

	undone, err := g.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, undone)
	item, _ = g.Store().Item(id)
	assert.False(t, item.IsFavorite)
}

func TestToggleFavoriteRollsBackOnFailure(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()
	g.images = failingUpdates{g.images}

	_, err := g.ToggleFavorite(ctx, ids["b.jpg"])
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDependency))

	item, _ := g.Store().Item(ids["b.jpg"])
	assert.False(t, item.IsFavorite)
	state, err := g.History().State(ctx)
	require.NoError(t, err)
	assert.False(t, state.CanUndo)
	assert.Contains(t, toastMessages(g.Toasts()), MessageFavoriteFailed)
}

func TestToggleFavoriteUnknownImage(t *testing.T) {
	g, _ := seeded(t)
	_, err := g.ToggleFavorite(context.Background(), 9999)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestSaveMetadataLogsEachChangedField(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()
	id := ids["a.jpg"]

	err := g.SaveMetadata(ctx, id, MetadataEdit{Rating: 4, Comment: "  sunset ", Tags: []string{"beach", "Beach", " ", "sun"}})
	require.NoError(t, err)

	item, _ := g.Store().Item(id)
	assert.Equal(t, 4, item.Rating)
	require.NotNil(t, item.Comment)
	assert.Equal(t, "sunset", *item.Comment)
	assert.Equal(t, []string{"beach", "sun"}, item.Tags)

	entries, err := repository.NewActionLogRepository(g.db).ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	types := []string{entries[0].ActionType, entries[1].ActionType, entries[2].ActionType}
	assert.ElementsMatch(t, []string{"update_rating", "update_comment", "update_tags"}, types)

	require.NoError(t, g.SaveMetadata(ctx, id, MetadataEdit{Rating: 4, Comment: "sunset", Tags: []string{"beach", "sun"}}))
	entries, err = repository.NewActionLogRepository(g.db).ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	_, err = g.Undo(ctx)
	require.NoError(t, err)
	_, err = g.Undo(ctx)
	require.NoError(t, err)
	_, err = g.Undo(ctx)
	require.NoError(t, err)
	item, _ = g.Store().Item(id)
	assert.Equal(t, 0, item.Rating)
	assert.Nil(t, item.Comment)
	assert.Empty(t, item.Tags)
}

func TestRemovedFileKeepsHistoryUndoable(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()

	require.NoError(t, g.SaveMetadata(ctx, ids["a.jpg"], MetadataEdit{Rating: 4}))
	require.NoError(t, g.SaveMetadata(ctx, ids["b.jpg"], MetadataEdit{Rating: 2}))

	gone, _ := g.Store().Item(ids["b.jpg"])
	require.NoError(t, os.Remove(gone.FilePath))
	require.NoError(t, g.Library().HandleBatch(ctx, watcher.Batch{Removed: []string{gone.FilePath}}))
	assert.Equal(t, 3, g.Store().Len())

	for range 2 {
		undone, err := g.Undo(ctx)
		require.NoError(t, err)
		assert.True(t, undone)
	}
	a, _ := g.Store().Item(ids["a.jpg"])
	b, _ := g.Store().Item(ids["b.jpg"])
	assert.Equal(t, 0, a.Rating)
	assert.Equal(t, 0, b.Rating)

	state, err := g.History().State(ctx)
	require.NoError(t, err)
	assert.False(t, state.CanUndo)
}

func TestSaveMetadataFailureKeepsState(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()
	g.images = failingUpdates{g.images}

	err := g.SaveMetadata(ctx, ids["c.png"], MetadataEdit{Rating: 2})
	require.Error(t, err)
	item, _ := g.Store().Item(ids["c.png"])
	assert.Equal(t, 0, item.Rating)
	assert.Contains(t, toastMessages(g.Toasts()), MessageSaveFailed)

	err = g.SaveMetadata(ctx, ids["c.png"], MetadataEdit{Rating: 7})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestRepresentativeSelection(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()

	group, err := g.Groups().Create(ctx, groups.GroupInput{Name: "Trip"})
	require.NoError(t, err)
	_, err = g.Groups().AddImages(ctx, []int64{ids["a.jpg"]}, group.ID)
	require.NoError(t, err)

	g.StartRepresentativeSelection(group.ID)
	_, err = g.ClickItem(ctx, ids["b.jpg"])
	require.Error(t, err)
	assert.True(t, g.Modes().Mode().IsRepresentativeSelect())

	_, err = g.ClickItem(ctx, ids["a.jpg"])
	require.NoError(t, err)
	assert.True(t, g.Modes().Mode().IsNormal())

	stored, err := g.Groups().Get(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RepresentativeImageID)
	assert.Equal(t, ids["a.jpg"], *stored.RepresentativeImageID)
}

func TestClickOpensDetailInNormalMode(t *testing.T) {
	g, ids := seeded(t)
	_, err := g.ClickItem(context.Background(), ids["b.jpg"])
	require.NoError(t, err)
	selected := g.Store().Snapshot().SelectedImageID
	require.NotNil(t, selected)
	assert.Equal(t, ids["b.jpg"], *selected)
}

func TestHandleKey(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()

	g.StartRepresentativeSelection(1)
	handled, err := g.HandleKey(ctx, history.KeyEvent{Key: "Escape"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, g.Modes().Mode().IsNormal())
	assert.Contains(t, toastMessages(g.Toasts()), groups.MessageRepCancelled)

	g.Modes().ToggleSelectionMode()
	handled, err = g.HandleKey(ctx, history.KeyEvent{Key: "a", Ctrl: true})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Len(t, g.Modes().SelectedIDs(), 3)

	handled, _ = g.HandleKey(ctx, history.KeyEvent{Key: "d", Meta: true, InTextInput: true})
	assert.False(t, handled)
	assert.Len(t, g.Modes().SelectedIDs(), 3)

	handled, _ = g.HandleKey(ctx, history.KeyEvent{Key: "Escape"})
	assert.True(t, handled)
	assert.True(t, g.Modes().Mode().IsNormal())

	_, err = g.ToggleFavorite(ctx, ids["a.jpg"])
	require.NoError(t, err)
	handled, err = g.HandleKey(ctx, history.KeyEvent{Key: "z", Ctrl: true})
	require.NoError(t, err)
	assert.True(t, handled)
	item, _ := g.Store().Item(ids["a.jpg"])
	assert.False(t, item.IsFavorite)

	handled, err = g.HandleKey(ctx, history.KeyEvent{Key: "Z", Meta: true, Shift: true})
	require.NoError(t, err)
	assert.True(t, handled)
	item, _ = g.Store().Item(ids["a.jpg"])
	assert.True(t, item.IsFavorite)
}

func TestLeaveGroupResetsModes(t *testing.T) {
	g, ids := seeded(t)
	ctx := context.Background()

	group, err := g.Groups().Create(ctx, groups.GroupInput{Name: "Pair"})
	require.NoError(t, err)
	_, err = g.Groups().AddImages(ctx, []int64{ids["a.jpg"], ids["c.png"]}, group.ID)
	require.NoError(t, err)

	require.NoError(t, g.OpenGroup(ctx, group.ID))
	assert.Len(t, g.View(), 2)

	g.Modes().ToggleSelectionMode()
	g.ToggleSelectAll()
	added, err := g.AddSelectionToGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), added)
	assert.True(t, g.Modes().Mode().IsNormal())

	g.Modes().ToggleSelectionMode()
	g.LeaveGroup()
	assert.True(t, g.Modes().Mode().IsNormal())
	assert.Len(t, g.View(), 3)
}

func TestPreferencesPersist(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	first := newGallery(t, db)
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.SetSortBy(ctx, catalog.SortByName))
	require.NoError(t, first.SetSortOrder(ctx, catalog.SortAsc))
	minRating := 3
	require.NoError(t, first.SetFilterSettings(ctx, catalog.FilterPatch{MinRating: &minRating}))
	ok, err := first.SetSlideshowInterval(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = first.SetSlideshowInterval(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	first.SetSearchQuery("beach")

	second := newGallery(t, db)
	require.NoError(t, second.Load(ctx))
	prefs := second.Store().Preferences()
	assert.Equal(t, catalog.SortByName, prefs.SortBy)
	assert.Equal(t, catalog.SortAsc, prefs.SortOrder)
	assert.Equal(t, 3, prefs.FilterSettings.MinRating)
	assert.Equal(t, 10, prefs.SlideshowInterval)
	assert.Empty(t, second.Store().ViewState().SearchQuery)
}

func TestLoadIgnoresUnreadablePreferences(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	require.NoError(t, repository.NewSettingsRepository(db).Set(ctx, SettingsKey, "{not json"))

	g := newGallery(t, db)
	require.NoError(t, g.Load(ctx))
	assert.Equal(t, catalog.DefaultPreferences(), g.Store().Preferences())
}

func TestStopWatchingBeforeStart(t *testing.T) {
	g := newGallery(t, testutil.NewDB(t))
	assert.False(t, g.Watching())
	require.NoError(t, g.StopWatching())
}
