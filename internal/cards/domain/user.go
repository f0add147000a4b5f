package domain

import (
	"errors"
	"strings"
	"time"
)

// User is a card holder or an administrator.
type User struct {
	id           UserID
	email        string
	passwordHash string
	fullName     string
	role         Role
	createdAt    time.Time
}

// NewUser creates a user. The email is stored lower-cased.
func NewUser(email, passwordHash, fullName string, role Role, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if passwordHash == "" {
		return nil, errors.New("password hash is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &User{
		id:           NewUserID(),
		email:        email,
		passwordHash: passwordHash,
		fullName:     strings.TrimSpace(fullName),
		role:         role,
		createdAt:    now,
	}, nil
}

// ReconstructUser reconstructs a User from persistence.
func ReconstructUser(id UserID, email, passwordHash, fullName string, role Role, createdAt time.Time) *User {
	return &User{
		id:           id,
		email:        email,
		passwordHash: passwordHash,
		fullName:     fullName,
		role:         role,
		createdAt:    createdAt,
	}
}

// NormalizeEmail trims and lower-cases an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool { return u.role == RoleAdmin }

func (u *User) ID() UserID           { return u.id }
func (u *User) Email() string        { return u.email }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) FullName() string     { return u.fullName }
func (u *User) Role() Role           { return u.role }
func (u *User) CreatedAt() time.Time { return u.createdAt }
