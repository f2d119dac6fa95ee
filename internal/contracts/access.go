package contracts

import (
	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

// Access names who may act on a contract.
type Access int

const (
	// AccessClient admits only the paying party.
	AccessClient Access = iota
	// AccessDeveloper admits only the assigned developer.
	AccessDeveloper
	// AccessParty admits either party, and admins for read paths.
	AccessParty
	// AccessAdmin admits platform admins.
	AccessAdmin
)

// Authorize checks actor against the contract for the requested access level.
func Authorize(contract *models.Contract, actor auth.Actor, access Access) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	switch access {
	case AccessClient:
		if contract.IsClient(actor.UserID) {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the contract client may do this")
	case AccessDeveloper:
		if contract.IsDeveloper(actor.UserID) {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned developer may do this")
	case AccessParty:
		if actor.IsAdmin() || contract.IsClient(actor.UserID) || contract.IsDeveloper(actor.UserID) {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this contract")
	case AccessAdmin:
		return actor.RequireAdmin()
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown access level")
	}
}

// AuthorizeOrOverride applies the ordinary access rule, or the admin override
// rule when an override is supplied.
func AuthorizeOrOverride(contract *models.Contract, actor auth.Actor, access Access, override *audit.Override) error {
	if override != nil {
		return audit.ValidateOverride(actor, override)
	}
	return Authorize(contract, actor, access)
}
