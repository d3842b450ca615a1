package history_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/history"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/repository"
	"github.com/camden-git/mediacatalog/testutil"
)

type recordingToasts struct {
	mu    sync.Mutex
	infos []string
	errs  []string
}

func (r *recordingToasts) Info(msg string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
	return "info"
}

func (r *recordingToasts) Error(msg string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
	return "error"
}

type fixture struct {
	images  *repository.ImageRepository
	actions *repository.ActionLogRepository
	store   *catalog.Store
	toasts  *recordingToasts
	engine  *history.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		images:  repository.NewImageRepository(db),
		actions: repository.NewActionLogRepository(db),
		store:   catalog.NewStore(nil),
		toasts:  &recordingToasts{},
	}
	f.engine = history.NewEngine(f.actions, f.images, f.store, f.toasts, logger.Nop(), nil)
	return f
}

func (f *fixture) seed(t *testing.T, path string, rating int) int64 {
	t.Helper()
	ctx := context.Background()
	img := &models.Image{FilePath: path, FileType: models.FileTypeImage, Rating: rating}
	_, err := f.images.InsertIfAbsent(ctx, img)
	require.NoError(t, err)
	all, err := f.images.ListAll(ctx)
	require.NoError(t, err)
	f.store.ReplaceAll(catalog.ItemsFromModels(all))
	return img.ID
}

// edit persists a rating change the way the gallery does and logs it.
func (f *fixture) editRating(t *testing.T, id int64, from, to int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.images.UpdateMetadata(ctx, id, repository.MetadataUpdate{Rating: &to}))
	f.store.PatchOne(id, catalog.Patch{Rating: &to})
	_, err := f.engine.LogChange(ctx, id, history.FieldRating, from, to)
	require.NoError(t, err)
}

func (f *fixture) rating(t *testing.T, id int64) (int, int) {
	t.Helper()
	stored, err := f.images.GetByID(context.Background(), id)
	require.NoError(t, err)
	item, ok := f.store.Item(id)
	require.True(t, ok)
	return stored.Rating, item.Rating
}

func TestUndoRedoRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(t, "/p/a.jpg", 3)
	f.editRating(t, id, 3, 5)

	ok, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	dbRating, storeRating := f.rating(t, id)
	assert.Equal(t, 3, dbRating)
	assert.Equal(t, 3, storeRating)

	entry, err := f.engine.LastRedoable(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsUndone)

	ok, err = f.engine.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	dbRating, storeRating = f.rating(t, id)
	assert.Equal(t, 5, dbRating)
	assert.Equal(t, 5, storeRating)

	entry, err = f.engine.LastUndoable(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.IsUndone)

	assert.Equal(t, []string{history.MessageUndone, history.MessageRedone}, f.toasts.infos)
	assert.Empty(t, f.toasts.errs)
}

func TestUndoRedoConvergesWithoutDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(t, "/p/a.jpg", 1)
	f.editRating(t, id, 1, 4)

	for i := 0; i < 5; i++ {
		_, err := f.engine.Undo(ctx)
		require.NoError(t, err)
		_, err = f.engine.Redo(ctx)
		require.NoError(t, err)
	}

	dbRating, storeRating := f.rating(t, id)
	assert.Equal(t, 4, dbRating)
	assert.Equal(t, 4, storeRating)

	recent, err := f.actions.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestUndoWalksBackwardsThroughTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(t, "/p/a.jpg", 0)
	f.editRating(t, id, 0, 2)
	f.editRating(t, id, 2, 4)

	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	dbRating, _ := f.rating(t, id)
	assert.Equal(t, 2, dbRating)

	_, err = f.engine.Undo(ctx)
	require.NoError(t, err)
	dbRating, _ = f.rating(t, id)
	assert.Equal(t, 0, dbRating)

	ok, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := f.engine.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.CanUndo)
	assert.True(t, state.CanRedo)
}

func TestNothingToUndoIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.engine.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, f.toasts.infos)
	assert.Empty(t, f.toasts.errs)
}

func TestRedoEntrySurvivesNewEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(t, "/p/a.jpg", 1)
	f.editRating(t, id, 1, 2)

	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	f.editRating(t, id, 1, 3)

	redoable, err := f.engine.LastRedoable(ctx)
	require.NoError(t, err)
	require.NotNil(t, redoable)
	assert.Equal(t, "2", *redoable.NewValue)
}

func TestUndoOfMissingImageLeavesCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.LogChange(ctx, 999, history.FieldRating, 1, 2)
	require.NoError(t, err)

	ok, err := f.engine.Undo(ctx)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{history.MessageUndoFailed}, f.toasts.errs)

	entry, err := f.engine.LastUndoable(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.IsUndone)
}

type failingApply struct {
	*repository.ActionLogRepository
}

func (failingApply) ApplyAction(context.Context, *models.ActionLog, repository.MetadataUpdate, bool) error {
	return errors.New("disk I/O error")
}

func TestRedoFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(t, "/p/a.jpg", 1)
	f.editRating(t, id, 1, 5)
	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)

	broken := history.NewEngine(failingApply{f.actions}, f.images, f.store, f.toasts, logger.Nop(), nil)
	ok, err := broken.Redo(ctx)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDependency))
	assert.Equal(t, []string{history.MessageRedoFailed}, f.toasts.errs)

	dbRating, storeRating := f.rating(t, id)
	assert.Equal(t, 1, dbRating)
	assert.Equal(t, 1, storeRating)
	redoable, err := f.engine.LastRedoable(ctx)
	require.NoError(t, err)
	assert.NotNil(t, redoable)
}

func TestUndoCommentTagsAndFavorite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seed(t, "/p/a.jpg", 0)

	comment := "sunset"
	tags := []string{"beach", "summer"}
	fav := true
	require.NoError(t, f.images.UpdateMetadata(ctx, id, repository.MetadataUpdate{Comment: &comment, Tags: tags, IsFavorite: &fav}))
	_, err := f.engine.LogChange(ctx, id, history.FieldComment, nil, comment)
	require.NoError(t, err)
	_, err = f.engine.LogChange(ctx, id, history.FieldTags, []string{}, tags)
	require.NoError(t, err)
	_, err = f.engine.LogChange(ctx, id, history.FieldIsFavorite, false, true)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.engine.Undo(ctx)
		require.NoError(t, err)
	}

	stored, err := f.images.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stored.Comment)
	assert.Empty(t, models.DecodeTags(stored.Tags))
	assert.False(t, stored.IsFavorite)

	item, ok := f.store.Item(id)
	require.True(t, ok)
	assert.Nil(t, item.Comment)
	assert.Empty(t, item.Tags)
	assert.False(t, item.IsFavorite)
}

func TestLogChangeRejectsUnknownField(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.LogChange(context.Background(), 1, history.Field("file_path"), "a", "b")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
