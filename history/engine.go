// Package history records metadata edits and replays them backwards and
// forwards through the persisted action log.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/realtime"
	"github.com/camden-git/mediacatalog/repository"
)

const (
	MessageUndone     = "Undone"
	MessageRedone     = "Redone"
	MessageUndoFailed = "Undo failed"
	MessageRedoFailed = "Redo failed"
)

// ImageReader reloads a single image after a history step.
type ImageReader interface {
	GetByID(ctx context.Context, id int64) (*models.Image, error)
}

// Notifier shows user-facing toasts. *notify.Notifier satisfies it.
type Notifier interface {
	Info(message string) string
	Error(message string) string
}

// State summarizes what the undo and redo controls can do right now.
type State struct {
	CanUndo    bool              `json:"canUndo"`
	CanRedo    bool              `json:"canRedo"`
	LastAction *models.ActionLog `json:"lastAction,omitempty"`
}

// Engine applies undo and redo steps. Steps are serialized so two rapid
// requests never pick the same entry.
type Engine struct {
	mu sync.Mutex

	actions repository.ActionLogRepositoryInterface
	images  ImageReader
	store   *catalog.Store
	toasts  Notifier
	log     *logger.Logger
	pub     catalog.Publisher
}

func NewEngine(actions repository.ActionLogRepositoryInterface, images ImageReader, store *catalog.Store, toasts Notifier, log *logger.Logger, pub catalog.Publisher) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		actions: actions,
		images:  images,
		store:   store,
		toasts:  toasts,
		log:     log,
		pub:     pub,
	}
}

// LogChange appends an entry for one field edit on an image.
func (e *Engine) LogChange(ctx context.Context, imageID int64, field Field, oldValue, newValue any) (*models.ActionLog, error) {
	if !field.valid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported field %q", field))
	}
	oldEnc, err := EncodeValue(oldValue)
	if err != nil {
		return nil, err
	}
	newEnc, err := EncodeValue(newValue)
	if err != nil {
		return nil, err
	}

	entry, err := e.actions.Append(ctx, field.ActionType(), models.TargetTableImages, imageID, oldEnc, newEnc)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to record change")
	}
	e.publish(realtime.Event{Type: realtime.EventHistoryChanged, ImageID: imageID})
	return entry, nil
}

func (e *Engine) LastUndoable(ctx context.Context) (*models.ActionLog, error) {
	entry, err := e.actions.LastUndoable(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to read history")
	}
	return entry, nil
}

func (e *Engine) LastRedoable(ctx context.Context) (*models.ActionLog, error) {
	entry, err := e.actions.LastRedoable(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to read history")
	}
	return entry, nil
}

func (e *Engine) State(ctx context.Context) (State, error) {
	undoable, err := e.LastUndoable(ctx)
	if err != nil {
		return State{}, err
	}
	redoable, err := e.LastRedoable(ctx)
	if err != nil {
		return State{}, err
	}
	return State{
		CanUndo:    undoable != nil,
		CanRedo:    redoable != nil,
		LastAction: undoable,
	}, nil
}

// Undo restores the old value of the latest entry that is not undone.
// It returns false with no error when there is nothing to undo.
func (e *Engine) Undo(ctx context.Context) (bool, error) {
	return e.step(ctx, true)
}

// Redo re-applies the new value of the latest undone entry.
// It returns false with no error when there is nothing to redo.
func (e *Engine) Redo(ctx context.Context) (bool, error) {
	return e.step(ctx, false)
}

func (e *Engine) step(ctx context.Context, undo bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	op, okMsg, failMsg := "redo", MessageRedone, MessageRedoFailed
	if undo {
		op, okMsg, failMsg = "undo", MessageUndone, MessageUndoFailed
	}
	ctx = e.log.WithOperation(ctx, "history."+op)

	var (
		entry *models.ActionLog
		err   error
	)
	if undo {
		entry, err = e.actions.LastUndoable(ctx)
	} else {
		entry, err = e.actions.LastRedoable(ctx)
	}
	if err != nil {
		return false, e.fail(ctx, failMsg, apperrors.FromStore(err, "failed to read history"))
	}
	if entry == nil {
		return false, nil
	}
	ctx = e.log.WithFields(ctx, map[string]any{"action_id": entry.ID, "action_type": entry.ActionType, "image_id": entry.TargetID})

	if entry.TargetTable != models.TargetTableImages {
		return false, e.fail(ctx, failMsg, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported target table %q", entry.TargetTable)))
	}
	field, err := FieldFromActionType(entry.ActionType)
	if err != nil {
		return false, e.fail(ctx, failMsg, err)
	}
	raw := entry.NewValue
	if undo {
		raw = entry.OldValue
	}
	upd, patch, err := DecodeValue(field, raw)
	if err != nil {
		return false, e.fail(ctx, failMsg, err)
	}

	if err := e.actions.ApplyAction(ctx, entry, upd, undo); err != nil {
		return false, e.fail(ctx, failMsg, apperrors.FromStore(err, "failed to apply history step"))
	}

	e.refresh(ctx, entry.TargetID, patch)
	e.toasts.Info(okMsg)
	e.log.Info(ctx, "history step applied")
	e.publish(realtime.Event{Type: realtime.EventHistoryChanged, ImageID: entry.TargetID})
	return true, nil
}

// refresh reloads the target from the store so the catalog mirrors what was
// persisted. If the reload fails the decoded patch is applied instead.
func (e *Engine) refresh(ctx context.Context, imageID int64, fallback catalog.Patch) {
	if e.store == nil {
		return
	}
	if e.images != nil {
		img, err := e.images.GetByID(ctx, imageID)
		if err == nil {
			e.store.PatchOne(imageID, patchFromModel(*img))
			return
		}
		e.log.Warn(e.log.WithField(ctx, "error", err.Error()), "reload after history step failed")
	}
	now := time.Now().UTC()
	fallback.UpdatedAt = &now
	e.store.PatchOne(imageID, fallback)
}

func (e *Engine) fail(ctx context.Context, message string, err error) error {
	e.log.Error(ctx, message, err)
	e.toasts.Error(message)
	return err
}

func (e *Engine) publish(event realtime.Event) {
	if e.pub != nil {
		e.pub.Publish(event)
	}
}

func patchFromModel(img models.Image) catalog.Patch {
	item := catalog.ItemFromModel(img)
	comment := ""
	if item.Comment != nil {
		comment = *item.Comment
	}
	return catalog.Patch{
		Rating:     &item.Rating,
		Comment:    &comment,
		Tags:       item.Tags,
		IsFavorite: &item.IsFavorite,
		UpdatedAt:  &item.UpdatedAt,
	}
}
