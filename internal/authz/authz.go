// Package authz decides, per request and per form, whether an actor may
// perform an operation. The rule table is evaluated in order and the first
// matching rule wins; it is pure data in, decision out, so it can be tested
// without any HTTP or storage context.
package authz

import (
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

// Operation names a request-level action on a form.
type Operation string

const (
	OpCreate        Operation = "create"
	OpReadPublic    Operation = "read_public"
	OpReadPrivate   Operation = "read_private"
	OpUpdate        Operation = "update"
	OpDelete        Operation = "delete"
	OpViewResponses Operation = "view_responses"
	OpSubmit        Operation = "submit"
)

// Actor is the resolved identity attached to a request. A nil *Actor is a
// valid state and means anonymous.
type Actor struct {
	ID   string
	Role models.UserRole
}

// FromClaims converts token claims into an actor. Nil claims stay nil.
func FromClaims(claims *models.JWTClaims) *Actor {
	if claims == nil {
		return nil
	}
	return &Actor{ID: claims.UserID, Role: claims.Role}
}

// Authorize returns nil when the actor may perform op on form, or a typed
// error describing the denial. grants is the capability set the actor holds
// on this form; callers pass nil when the actor is anonymous or the
// operation cannot be grant-delegated.
//
// Rules, in order, first match wins:
//  1. submit and read_public are always allowed, anonymous included.
//  2. anonymous actors are denied everything else.
//  3. admins are allowed everything.
//  4. any authenticated actor may create (becoming owner).
//  5. the owner is allowed everything on their form.
//  6. update requires an "edit" grant.
//  7. view_responses requires a "view_responses" grant.
//  8. read_private (detail by id) requires any grant; without one the form
//     must look like it does not exist, so the denial is NotFound.
//  9. delete is owner-only (rule 5) or admin (rule 3); no grant delegates it.
func Authorize(actor *Actor, form *models.Form, op Operation, grants models.CapabilitySet) error {
	if op == OpSubmit || op == OpReadPublic {
		return nil
	}
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if op == OpCreate {
		return nil
	}
	if form != nil && form.OwnerID != nil && *form.OwnerID == actor.ID {
		return nil
	}

	switch op {
	case OpUpdate:
		if grants.Has(models.CapabilityEdit) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to edit this form")
	case OpViewResponses:
		if grants.Has(models.CapabilityViewResponses) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to view responses")
	case OpReadPrivate:
		if len(grants) > 0 {
			return nil
		}
		return appErrors.Clone(appErrors.ErrNotFound, "form not found")
	case OpDelete:
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner can delete this form")
	}

	return appErrors.ErrForbidden
}
