package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

// Actor is the authenticated caller of a domain operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// SystemActor is used by background jobs that mutate state without a user.
var SystemActor = Actor{UserID: uuid.Nil, Role: enums.ActorRoleSystem}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// Validate rejects anonymous or malformed actors.
func (a Actor) Validate() error {
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role is invalid")
	}
	if a.UserID == uuid.Nil && a.Role != enums.ActorRoleSystem {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor id is required")
	}
	return nil
}

// RequireAdmin returns FORBIDDEN unless the actor holds the admin role.
func (a Actor) RequireAdmin() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}
