package domain

import (
	"fmt"
	"strings"
)

// CardStatus represents the lifecycle state of a card.
type CardStatus string

const (
	CardStatusActive       CardStatus = "ACTIVE"
	CardStatusBlocked      CardStatus = "BLOCKED"
	CardStatusExpired      CardStatus = "EXPIRED"
	CardStatusPendingBlock CardStatus = "PENDING_BLOCK"
)

// ParseCardStatus parses a status name, case-insensitively.
func ParseCardStatus(s string) (CardStatus, error) {
	status := CardStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// IsValid reports whether s is a known status.
func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusActive, CardStatusBlocked, CardStatusExpired, CardStatusPendingBlock:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s CardStatus) String() string {
	return string(s)
}

// TransferStatus represents the outcome recorded for a transfer.
// Only completed transfers are ever persisted; rejected ones leave no record.
type TransferStatus string

const (
	TransferStatusCompleted TransferStatus = "COMPLETED"
)

// String returns the string representation.
func (s TransferStatus) String() string {
	return string(s)
}

// Role is the capability level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}
