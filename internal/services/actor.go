package services

import (
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Actor is the authenticated caller of a service operation. The zero Actor is anonymous.
type Actor struct {
	UserID utils.SixID
	Role   models.Role
}

func (a Actor) Anonymous() bool {
	return a.UserID.IsZero()
}

func (a Actor) Can(c models.Capability) bool {
	return !a.Anonymous() && a.Role.Can(c)
}

// Owns reports whether the actor is the given user.
func (a Actor) Owns(userID utils.SixID) bool {
	return !a.Anonymous() && a.UserID == userID
}
