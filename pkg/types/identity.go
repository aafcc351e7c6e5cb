package types

import "github.com/google/uuid"

// Identity binds a request to a browsing session and, once logged in, a user.
// SessionID is always present; UserID is nil for guests.
type Identity struct {
	SessionID string
	UserID    *uuid.UUID
}

// IsGuest reports whether the identity carries no user.
func (i Identity) IsGuest() bool {
	return i.UserID == nil
}
