// Package model defines the core data types shared by every other
// component: user identifiers, message identifiers, messages, friendships
// and their update events, and read/unread tags.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// UserID is a 128-bit identifier. It is a named type over uuid.UUID so it
// remains comparable and hashable (usable directly as a map key) while
// giving us a place to hang domain-specific parsing/formatting.
type UserID uuid.UUID

// NilUserID is the zero-value UserID, never a valid user.
var NilUserID UserID

// NewUserID generates a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID parses the canonical 36-byte hyphenated textual form.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return UserID(u), nil
}

// String returns the canonical 36-byte hyphenated form.
func (u UserID) String() string {
	return uuid.UUID(u).String()
}

// IsNil reports whether u is the zero value.
func (u UserID) IsNil() bool {
	return u == NilUserID
}
