package services

import "github.com/huangang/studyroom/internal/models"

// Identity is the authenticated caller of an operation. Middleware builds it
// from the resolved session and handlers pass it explicitly.
type Identity struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"-"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Authenticated is false for the zero Identity.
func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

func requireIdentity(id Identity) error {
	if !id.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}
