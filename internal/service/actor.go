package service

import (
	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID       string
	Username string
	Name     string
	Role     models.UserRole
	Admin    bool
}

// ActorFromClaims builds an Actor from verified token claims.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{
		ID:       claims.UserID,
		Username: claims.Username,
		Name:     claims.Name,
		Role:     claims.Role,
		Admin:    claims.Admin,
	}
}

// IsManagement reports whether the actor is TCM or TP.
func (a Actor) IsManagement() bool {
	return a.Role.IsManagement()
}

// CanModerate reports whether the actor may act on records owned by ownerID:
// the owner, TCM or TP.
func (a Actor) CanModerate(ownerID string) bool {
	return a.ID == ownerID || a.IsManagement()
}

func requireManagement(a Actor) error {
	if !a.IsManagement() {
		return appErrors.Clone(appErrors.ErrForbidden, "only TCM or TP may perform this action")
	}
	return nil
}

func requireMainAdmin(a Actor) error {
	if !a.Admin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the main admin may perform this action")
	}
	return nil
}
