package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-board/internal/domain"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// Requirement names what an operation demands of its caller.
type Requirement int

const (
	RequireAuthenticated Requirement = iota
	RequireApplicant
	RequireRecruiterOrAdmin
	RequireAdmin
	RequireResourceOwnerOrAdmin
)

// DenyReason explains a denial.
type DenyReason string

const (
	ReasonNotAuthenticated DenyReason = apperrors.CodeNotAuthenticated
	ReasonWrongRole        DenyReason = apperrors.CodeWrongRole
	ReasonNotOwner         DenyReason = apperrors.CodeNotOwner
)

// Decision is the gate's verdict.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision                 { return Decision{Allowed: true} }
func deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Err converts a denial into a DomainError; it returns nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNotAuthenticated:
		return apperrors.NewNotAuthenticated("authentication required")
	case ReasonNotOwner:
		return apperrors.NewNotOwner("you do not have access to this resource")
	default:
		return apperrors.NewWrongRole("your role does not permit this action")
	}
}

// Authorize checks identity against req. ownerIDs are consulted only for
// RequireResourceOwnerOrAdmin and list the users who own the resource.
func Authorize(identity *domain.User, req Requirement, ownerIDs ...string) Decision {
	if identity == nil {
		return deny(ReasonNotAuthenticated)
	}
	switch req {
	case RequireAuthenticated:
		return allow()
	case RequireApplicant:
		if identity.Role == domain.RoleApplicant {
			return allow()
		}
	case RequireRecruiterOrAdmin:
		if identity.Role == domain.RoleRecruiter || identity.Role == domain.RoleAdmin {
			return allow()
		}
	case RequireAdmin:
		if identity.Role == domain.RoleAdmin {
			return allow()
		}
	case RequireResourceOwnerOrAdmin:
		if identity.Role == domain.RoleAdmin {
			return allow()
		}
		for _, id := range ownerIDs {
			if id != "" && id == identity.ID {
				return allow()
			}
		}
		return deny(ReasonNotOwner)
	}
	return deny(ReasonWrongRole)
}

// AuthorizeOwner allows admins and the listed owners.
func AuthorizeOwner(identity *domain.User, ownerIDs ...string) Decision {
	return Authorize(identity, RequireResourceOwnerOrAdmin, ownerIDs...)
}

// AccountAction names an admin action on a user account.
type AccountAction string

const (
	AccountDeactivate AccountAction = "deactivate"
	AccountDelete     AccountAction = "delete"
)

// AuthorizeAccountChange enforces admin-only access and forbids admins from
// deactivating or deleting themselves.
func AuthorizeAccountChange(actor *domain.User, targetID string, action AccountAction) error {
	if err := Authorize(actor, RequireAdmin).Err(); err != nil {
		return err
	}
	if actor.ID == targetID {
		return apperrors.NewSelfModification("cannot " + string(action) + " your own account")
	}
	return nil
}

// Require returns a route guard enforcing req.
func Require(req Requirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := Authorize(IdentityFromContext(c), req).Err(); err != nil {
			return err
		}
		return c.Next()
	}
}
