package gallery

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/history"
	"github.com/camden-git/mediacatalog/repository"
)

const (
	MessageFavoriteFailed = "Failed to update favorite"
	MessageSaveFailed     = "Failed to save changes"
)

// MetadataEdit is the full content of the detail edit form.
type MetadataEdit struct {
	Rating  int
	Comment string
	Tags    []string
}

// ToggleFavorite flips the favorite flag locally, persists it and rolls the
// local change back when persisting fails. Only a persisted toggle is
// recorded in the history.
func (g *Gallery) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	ctx = g.log.WithField(g.log.WithOperation(ctx, "gallery.toggle_favorite"), "image_id", id)
	item, ok := g.store.Item(id)
	if !ok {
		return false, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("image %d is not in the catalog", id))
	}
	oldValue := item.IsFavorite
	newValue := !oldValue

	err := catalog.Optimistic(ctx,
		func() { g.store.ToggleFavorite(id) },
		func(ctx context.Context) error {
			return g.images.UpdateMetadata(ctx, id, repository.MetadataUpdate{IsFavorite: &newValue})
		},
		func() { g.store.ToggleFavorite(id) },
	)
	if err != nil {
		g.log.Error(ctx, MessageFavoriteFailed, err)
		g.toasts.Error(MessageFavoriteFailed)
		return oldValue, apperrors.FromStore(err, MessageFavoriteFailed)
	}

	if _, err := g.history.LogChange(ctx, id, history.FieldIsFavorite, oldValue, newValue); err != nil {
		g.log.Error(ctx, "failed to record favorite change", err)
	}
	return newValue, nil
}

// SaveMetadata persists an edit form. Nothing changes locally until the
// store accepts the write; each changed field becomes one history entry.
func (g *Gallery) SaveMetadata(ctx context.Context, id int64, edit MetadataEdit) error {
	ctx = g.log.WithField(g.log.WithOperation(ctx, "gallery.save_metadata"), "image_id", id)
	item, ok := g.store.Item(id)
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("image %d is not in the catalog", id))
	}
	if edit.Rating < 0 || edit.Rating > 5 {
		err := apperrors.New(apperrors.CodeValidation, "Rating must be between 0 and 5")
		g.toasts.Error(err.Message())
		return err
	}

	comment := strings.TrimSpace(edit.Comment)
	tags := []string{}
	for _, t := range edit.Tags {
		tags, _ = catalog.AddTag(tags, t)
	}

	oldComment := ""
	if item.Comment != nil {
		oldComment = *item.Comment
	}

	var upd repository.MetadataUpdate
	type change struct {
		field    history.Field
		from, to any
	}
	var changes []change
	if edit.Rating != item.Rating {
		upd.Rating = &edit.Rating
		changes = append(changes, change{history.FieldRating, item.Rating, edit.Rating})
	}
	if comment != oldComment {
		upd.Comment = &comment
		changes = append(changes, change{history.FieldComment, item.Comment, optionalString(comment)})
	}
	if !slices.Equal(tags, item.Tags) {
		upd.Tags = tags
		changes = append(changes, change{history.FieldTags, item.Tags, tags})
	}
	if len(changes) == 0 {
		return nil
	}

	if err := g.images.UpdateMetadata(ctx, id, upd); err != nil {
		g.log.Error(ctx, MessageSaveFailed, err)
		g.toasts.Error(MessageSaveFailed)
		return apperrors.FromStore(err, MessageSaveFailed)
	}

	g.refreshItem(ctx, id, catalog.Patch{Rating: upd.Rating, Comment: upd.Comment, Tags: upd.Tags})

	for _, c := range changes {
		if _, err := g.history.LogChange(ctx, id, c.field, c.from, c.to); err != nil {
			g.log.Error(g.log.WithField(ctx, "field", string(c.field)), "failed to record metadata change", err)
		}
	}
	return nil
}

func (g *Gallery) Undo(ctx context.Context) (bool, error) {
	return g.history.Undo(ctx)
}

func (g *Gallery) Redo(ctx context.Context) (bool, error) {
	return g.history.Redo(ctx)
}

// refreshItem reloads one image from the store, patching from fallback when
// the read fails.
func (g *Gallery) refreshItem(ctx context.Context, id int64, fallback catalog.Patch) {
	img, err := g.images.GetByID(ctx, id)
	if err != nil {
		g.log.Warn(g.log.WithField(ctx, "error", err.Error()), "failed to reload image after save")
		g.store.PatchOne(id, fallback)
		return
	}
	fresh := catalog.ItemFromModel(*img)
	g.store.PatchOne(id, catalog.Patch{
		Rating:        &fresh.Rating,
		Comment:       commentPatch(fresh.Comment),
		Tags:          fresh.Tags,
		IsFavorite:    &fresh.IsFavorite,
		ThumbnailPath: fresh.ThumbnailPath,
		UpdatedAt:     &fresh.UpdatedAt,
	})
}

func commentPatch(c *string) *string {
	if c == nil {
		empty := ""
		return &empty
	}
	return c
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
