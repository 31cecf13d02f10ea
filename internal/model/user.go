package model

import (
	"regexp"
	"time"
)

// Username is the opaque identity of a user. It is unique across the system.
type Username string

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// Valid reports whether the username is usable as an identity.
// Usernames never contain the room id separator.
func (u Username) Valid() bool {
	return usernamePattern.MatchString(string(u))
}

// User is a registered identity
type User struct {
	Username     Username
	PasswordHash string // bcrypt hash, empty when the account has no password
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword returns true if the account is password protected
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Session binds an opaque token to a username
type Session struct {
	Token     string
	Username  Username
	CreatedAt time.Time
	ExpiresAt time.Time
}
