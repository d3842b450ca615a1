package groups

import (
	"context"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/logger"
)

const MessageLoadFailed = "Failed to load group images"

// MembershipReader is the slice of the group store the projection needs.
type MembershipReader interface {
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// Projection keeps the catalog's group scope in sync with stored membership.
type Projection struct {
	members MembershipReader
	store   *catalog.Store
	toasts  Notifier
	log     *logger.Logger
}

func NewProjection(members MembershipReader, store *catalog.Store, toasts Notifier, log *logger.Logger) *Projection {
	if log == nil {
		log = logger.Nop()
	}
	return &Projection{members: members, store: store, toasts: toasts, log: log}
}

// EnterGroupScope narrows the view to the group's members. If membership
// cannot be read the scope is cleared rather than left stale.
func (p *Projection) EnterGroupScope(ctx context.Context, groupID int64) error {
	ids, err := p.members.MemberIDs(ctx, groupID)
	if err != nil {
		p.store.ClearGroupScope()
		ctx = p.log.WithField(p.log.WithOperation(ctx, "groups.enter_scope"), "group_id", groupID)
		p.log.Error(ctx, "failed to load group members", err)
		p.toasts.Error(MessageLoadFailed)
		return apperrors.FromStore(err, "failed to load group members")
	}
	p.store.SetGroupScope(groupID, ids)
	return nil
}

func (p *Projection) ExitGroupScope() {
	p.store.ClearGroupScope()
}

// Refresh re-reads membership for the active group, if any.
func (p *Projection) Refresh(ctx context.Context) error {
	groupID, ok := p.store.GroupScope()
	if !ok {
		return nil
	}
	return p.EnterGroupScope(ctx, groupID)
}

func (p *Projection) ActiveGroupID() (int64, bool) {
	return p.store.GroupScope()
}
