package service

import (
	"github.com/moodyoga/studio-api/internal/models"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

// Authorizer centralises the studio's role policy so every mutating
// operation runs the same checks: authentication first, then role or
// ownership. Role checks are advisory client-of-record policy; there is no
// external authority behind them.
type Authorizer struct{}

// RequireAuthenticated fails when no actor is present.
func (Authorizer) RequireAuthenticated(actor *models.CurrentUser) error {
	if actor == nil || actor.ID == "" {
		return appErrors.Clone(appErrors.ErrNotAuthenticated, "")
	}
	return nil
}

// RequireRole fails when the actor is missing or holds a different role.
func (a Authorizer) RequireRole(actor *models.CurrentUser, role models.UserRole) error {
	if err := a.RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.Role != role {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "requires "+string(role)+" role")
	}
	return nil
}

// RequireAdmin is shorthand for the admin gate used by catalog mutations and
// payment confirmation.
func (a Authorizer) RequireAdmin(actor *models.CurrentUser) error {
	return a.RequireRole(actor, models.RoleAdmin)
}

// RequireClassOwnerOrAdmin allows admins, or the instructor who owns the
// given class.
func (a Authorizer) RequireClassOwnerOrAdmin(actor *models.CurrentUser, class *models.ClassOffering) error {
	if err := a.RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role == models.RoleInstructor && class != nil && class.InstructorID == actor.ID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrPermissionDenied, "only the owning instructor or an admin may do this")
}
