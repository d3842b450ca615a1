// Package groups manages user-defined image groups, their comments and the
// group-scoped view of the catalog.
package groups

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/realtime"
	"github.com/camden-git/mediacatalog/repository"
)

const (
	MessageCreated          = "Group created successfully"
	MessageUpdated          = "Group updated successfully"
	MessageDeleted          = "Group deleted successfully"
	MessageCreateFailed     = "Failed to create group"
	MessageUpdateFailed     = "Failed to update group"
	MessageDeleteFailed     = "Failed to delete group"
	MessageAddFailed        = "Failed to add to group"
	MessageRemoveFailed     = "Failed to remove from group"
	MessageCommentAdded     = "Comment added successfully"
	MessageCommentDeleted   = "Comment deleted successfully"
	MessageCommentFailed    = "Failed to add comment"
	MessageCommentDelFailed = "Failed to delete comment"
	MessageRepresentative   = "Representative image set successfully"
	MessageRepFailed        = "Failed to set representative image"
	MessageRepCancelled     = "Representative image selection cancelled"
)

// Notifier shows user-facing toasts. *notify.Notifier satisfies it.
type Notifier interface {
	Success(message string) string
	Error(message string) string
}

// Service runs group commands against the store, keeps a cached group list
// and refreshes the projection when membership changes.
type Service struct {
	groups     repository.GroupRepositoryInterface
	comments   repository.CommentRepositoryInterface
	projection *Projection
	toasts     Notifier
	log        *logger.Logger
	pub        catalog.Publisher

	mu     sync.RWMutex
	cached []models.Group
}

func NewService(groups repository.GroupRepositoryInterface, comments repository.CommentRepositoryInterface, projection *Projection, toasts Notifier, log *logger.Logger, pub catalog.Publisher) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		groups:     groups,
		comments:   comments,
		projection: projection,
		toasts:     toasts,
		log:        log,
		pub:        pub,
		cached:     []models.Group{},
	}
}

// List returns the cached groups ordered by name.
func (s *Service) List() []models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cached)
}

// Reload refreshes the cached group list, including image counts.
func (s *Service) Reload(ctx context.Context) ([]models.Group, error) {
	groups, err := s.groups.ListAll(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to list groups")
	}
	s.mu.Lock()
	s.cached = groups
	s.mu.Unlock()
	s.publish(realtime.Event{Type: realtime.EventGroupsChanged})
	return slices.Clone(groups), nil
}

func (s *Service) Get(ctx context.Context, groupID int64) (*models.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, apperrors.FromStore(err, fmt.Sprintf("group %d not found", groupID))
	}
	return group, nil
}

func (s *Service) Create(ctx context.Context, in GroupInput) (*models.Group, error) {
	ctx = s.log.WithOperation(ctx, "groups.create")
	in = in.normalized()
	if err := validateStruct(in); err != nil {
		return nil, s.rejected(err)
	}

	group := &models.Group{Name: in.Name, Description: in.Description, Color: in.Color}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, s.failed(ctx, MessageCreateFailed, err)
	}
	s.toasts.Success(MessageCreated)
	s.reloadQuietly(ctx)
	return group, nil
}

func (s *Service) Update(ctx context.Context, groupID int64, in GroupInput) error {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.update"), "group_id", groupID)
	in = in.normalized()
	if err := validateStruct(in); err != nil {
		return s.rejected(err)
	}
	if err := s.groups.Update(ctx, groupID, in.Name, in.Description, in.Color); err != nil {
		return s.failed(ctx, MessageUpdateFailed, err)
	}
	s.toasts.Success(MessageUpdated)
	s.reloadQuietly(ctx)
	return nil
}

// Delete removes the group with its memberships and comments. Member images
// are kept. If the group was the active scope the view returns to all images.
func (s *Service) Delete(ctx context.Context, groupID int64) error {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.delete"), "group_id", groupID)
	if err := s.groups.Delete(ctx, groupID); err != nil {
		return s.failed(ctx, MessageDeleteFailed, err)
	}
	if active, ok := s.projection.ActiveGroupID(); ok && active == groupID {
		s.projection.ExitGroupScope()
	}
	s.toasts.Success(MessageDeleted)
	s.reloadQuietly(ctx)
	return nil
}

// AddImages adds the images to the group and returns how many were new.
func (s *Service) AddImages(ctx context.Context, imageIDs []int64, groupID int64) (int64, error) {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.add_images"), "group_id", groupID)
	if len(imageIDs) == 0 {
		return 0, nil
	}
	added, err := s.groups.AddImages(ctx, imageIDs, groupID)
	if err != nil {
		return 0, s.failed(ctx, MessageAddFailed, err)
	}
	s.toasts.Success(fmt.Sprintf("%d item(s) added to group", len(imageIDs)))
	s.afterMembershipChange(ctx, groupID)
	return added, nil
}

// RemoveImages drops the images from the group. A removed representative
// image is cleared from the group.
func (s *Service) RemoveImages(ctx context.Context, imageIDs []int64, groupID int64) (int64, error) {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.remove_images"), "group_id", groupID)
	if len(imageIDs) == 0 {
		return 0, nil
	}
	removed, err := s.groups.RemoveImages(ctx, imageIDs, groupID)
	if err != nil {
		return 0, s.failed(ctx, MessageRemoveFailed, err)
	}
	s.toasts.Success(fmt.Sprintf("%d item(s) removed from group", removed))
	s.afterMembershipChange(ctx, groupID)
	return removed, nil
}

func (s *Service) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	ids, err := s.groups.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load group members")
	}
	return ids, nil
}

func (s *Service) GroupsForImage(ctx context.Context, imageID int64) ([]int64, error) {
	ids, err := s.groups.GroupIDsForImage(ctx, imageID)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load image groups")
	}
	return ids, nil
}

// SetRepresentativeImage sets or, with a nil imageID, clears the group's
// cover image. Only members can become the cover.
func (s *Service) SetRepresentativeImage(ctx context.Context, groupID int64, imageID *int64) error {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.set_representative"), "group_id", groupID)
	if imageID != nil {
		member, err := s.groups.IsMember(ctx, groupID, *imageID)
		if err != nil {
			return s.failed(ctx, MessageRepFailed, err)
		}
		if !member {
			err := apperrors.New(apperrors.CodeValidation, fmt.Sprintf("image %d is not in group %d", *imageID, groupID))
			s.toasts.Error(MessageRepFailed)
			return err
		}
	}
	if err := s.groups.SetRepresentativeImage(ctx, groupID, imageID); err != nil {
		return s.failed(ctx, MessageRepFailed, err)
	}
	s.toasts.Success(MessageRepresentative)
	s.reloadQuietly(ctx)
	return nil
}

func (s *Service) AddComment(ctx context.Context, groupID int64, text string) (*models.GroupComment, error) {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.add_comment"), "group_id", groupID)
	in := commentInput{Comment: strings.TrimSpace(text)}
	if err := validateStruct(in); err != nil {
		return nil, s.rejected(err)
	}
	comment, err := s.comments.Add(ctx, groupID, in.Comment)
	if err != nil {
		return nil, s.failed(ctx, MessageCommentFailed, err)
	}
	s.toasts.Success(MessageCommentAdded)
	return comment, nil
}

// ListComments returns the group's comments, newest first.
func (s *Service) ListComments(ctx context.Context, groupID int64) ([]models.GroupComment, error) {
	comments, err := s.comments.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load comments")
	}
	return comments, nil
}

func (s *Service) DeleteComment(ctx context.Context, commentID int64) error {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "groups.delete_comment"), "comment_id", commentID)
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return s.failed(ctx, MessageCommentDelFailed, err)
	}
	s.toasts.Success(MessageCommentDeleted)
	return nil
}

func (s *Service) afterMembershipChange(ctx context.Context, groupID int64) {
	if active, ok := s.projection.ActiveGroupID(); ok && active == groupID {
		// Refresh reports its own failure.
		_ = s.projection.Refresh(ctx)
	}
	s.reloadQuietly(ctx)
}

func (s *Service) reloadQuietly(ctx context.Context) {
	if _, err := s.Reload(ctx); err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "failed to reload groups")
	}
}

// rejected surfaces a validation error without logging it.
func (s *Service) rejected(err error) error {
	s.toasts.Error(apperrors.As(err).Message())
	return err
}

func (s *Service) failed(ctx context.Context, message string, err error) error {
	appErr := apperrors.FromStore(err, message)
	s.log.Error(ctx, message, err)
	s.toasts.Error(message)
	return appErr
}

func (s *Service) publish(event realtime.Event) {
	if s.pub != nil {
		s.pub.Publish(event)
	}
}
