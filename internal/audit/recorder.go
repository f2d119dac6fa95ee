// Package audit writes the activity log and the admin action trail.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
	"github.com/angelmondragon/gigledger-backend/pkg/pagination"
)

// Override marks a mutation performed by an admin outside the ordinary rules.
type Override struct {
	Reason string
}

// ValidateOverride checks that an override, when present, comes from an admin
// and carries a reason.
func ValidateOverride(actor auth.Actor, override *Override) error {
	if override == nil {
		return nil
	}
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if strings.TrimSpace(override.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "override reason is required")
	}
	return nil
}

// Entry describes one audited mutation.
type Entry struct {
	Actor       auth.Actor
	Action      enums.ActivityAction
	ContractID  *uuid.UUID
	MilestoneID *uuid.UUID
	TargetType  enums.AdminTargetType
	TargetID    uuid.UUID
	Payload     map[string]any
	Override    *Override
	Events      []outbox.DomainEvent
}

// Page is a cursor-paginated slice of audit rows.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	ContractActivity(ctx context.Context, contractID uuid.UUID, params pagination.Params) (*Page[models.ActivityLog], error)
	AdminActions(ctx context.Context, filter AdminActionFilter, params pagination.Params) (*Page[models.AdminAction], error)
}

type service struct {
	repo   Repository
	events outbox.Emitter
	now    func() time.Time
}

func NewService(repo Repository, events outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, events: events, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Record writes the activity row, the admin action row when an override is
// present, and the outbox events, all inside tx.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if !entry.Action.IsValid() {
		return fmt.Errorf("invalid activity action %q", entry.Action)
	}
	if err := entry.Actor.Validate(); err != nil {
		return err
	}
	if err := ValidateOverride(entry.Actor, entry.Override); err != nil {
		return err
	}

	payload := make(map[string]any, len(entry.Payload)+2)
	for k, v := range entry.Payload {
		payload[k] = v
	}
	if entry.Override != nil {
		payload["override"] = true
		payload["override_reason"] = entry.Override.Reason
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}

	now := s.now()
	repo := s.repo.WithTx(tx)
	activity := &models.ActivityLog{
		ContractID:  entry.ContractID,
		MilestoneID: entry.MilestoneID,
		ActorID:     entry.Actor.UserID,
		ActorRole:   entry.Actor.Role,
		Action:      entry.Action,
		Payload:     raw,
		CreatedAt:   now,
	}
	if err := repo.CreateActivity(ctx, activity); err != nil {
		return db.Classify(err, "record activity")
	}

	if entry.Override != nil {
		reason := strings.TrimSpace(entry.Override.Reason)
		action := &models.AdminAction{
			AdminID:    entry.Actor.UserID,
			Action:     entry.Action,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			ContractID: entry.ContractID,
			Reason:     &reason,
			Payload:    raw,
			CreatedAt:  now,
		}
		if !action.TargetType.IsValid() || action.TargetID == uuid.Nil {
			return fmt.Errorf("admin action for %s needs a target", entry.Action)
		}
		if err := repo.CreateAdminAction(ctx, action); err != nil {
			return db.Classify(err, "record admin action")
		}
	}

	for _, event := range entry.Events {
		if event.Actor == nil {
			event.Actor = &outbox.ActorRef{UserID: entry.Actor.UserID, Role: entry.Actor.Role.String()}
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = now
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return db.Classify(err, "queue domain event")
		}
	}
	return nil
}

func (s *service) ContractActivity(ctx context.Context, contractID uuid.UUID, params pagination.Params) (*Page[models.ActivityLog], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListActivity(ctx, contractID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, db.Classify(err, "list activity")
	}
	page := &Page[models.ActivityLog]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) AdminActions(ctx context.Context, filter AdminActionFilter, params pagination.Params) (*Page[models.AdminAction], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListAdminActions(ctx, filter, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, db.Classify(err, "list admin actions")
	}
	page := &Page[models.AdminAction]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func parseCursor(raw string) (*pagination.Cursor, error) {
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return cursor, nil
}
