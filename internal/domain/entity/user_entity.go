package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Passwords are stored as bcrypt hashes in PasswordHash.
// AvatarID references an Avatar row and may be nil.
//
// IsAdmin is never writable through the public API; it is set by
// the seed tool or directly in the database.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Description  string
	Birthday     *time.Time
	Course       string
	IsAdmin      bool
	AvatarID     *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
