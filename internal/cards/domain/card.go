package domain

import (
	"fmt"
	"time"

	"bankcards/internal/common/types"
)

// Card is a bank card with its balance (aggregate root).
// Invariants:
//   - balance is never negative
//   - version moves by exactly one per persisted mutation
type Card struct {
	id              CardID
	number          string
	ownerID         UserID
	ownerName       string
	expiresAt       time.Time
	status          CardStatus
	balance         types.Money
	version         int
	expectedVersion int
	createdAt       time.Time
	updatedAt       time.Time
}

// NewCard issues a new ACTIVE card.
// The now parameter makes the function pure and testable.
// Returns error if the number is malformed, the owner is empty or the balance is negative.
func NewCard(
	number string,
	ownerID UserID,
	ownerName string,
	expiresAt time.Time,
	balance types.Money,
	now time.Time,
) (*Card, error) {
	if err := ValidateCardNumber(number); err != nil {
		return nil, err
	}
	if ownerID.IsZero() {
		return nil, ErrUserNotFound
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance %s", ErrInvalidAmount, balance)
	}
	return &Card{
		id:        NewCardID(),
		number:    number,
		ownerID:   ownerID,
		ownerName: ownerName,
		expiresAt: DateOf(expiresAt),
		status:    CardStatusActive,
		balance:   balance,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructCard reconstructs a Card from persistence.
// This bypasses validation - only use for loading from database.
func ReconstructCard(
	id CardID,
	number string,
	ownerID UserID,
	ownerName string,
	expiresAt time.Time,
	status CardStatus,
	balance types.Money,
	version int,
	createdAt time.Time,
	updatedAt time.Time,
) *Card {
	return &Card{
		id:              id,
		number:          number,
		ownerID:         ownerID,
		ownerName:       ownerName,
		expiresAt:       DateOf(expiresAt),
		status:          status,
		balance:         balance,
		version:         version,
		expectedVersion: version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// SetStatus overwrites the status. Any transition is allowed; administrators are trusted callers.
func (c *Card) SetStatus(status CardStatus, now time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	c.status = status
	c.touch(now)
	return nil
}

// RequestBlock moves an ACTIVE card to PENDING_BLOCK.
// Returns ErrInvalidStateTransition from any other status.
func (c *Card) RequestBlock(now time.Time) error {
	if c.status != CardStatusActive {
		return fmt.Errorf("%w: cannot request block for %s card", ErrInvalidStateTransition, c.status)
	}
	c.status = CardStatusPendingBlock
	c.touch(now)
	return nil
}

// Debit removes amount from the balance.
// Returns ErrNotEnoughFunds if the balance cannot cover it.
func (c *Card) Debit(amount types.Money, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if c.balance.LessThan(amount) {
		return ErrNotEnoughFunds
	}
	c.balance = c.balance.Subtract(amount)
	c.touch(now)
	return nil
}

// Credit adds amount to the balance.
func (c *Card) Credit(amount types.Money, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	c.balance = c.balance.Add(amount)
	c.touch(now)
	return nil
}

func (c *Card) touch(now time.Time) {
	c.version = c.expectedVersion + 1
	c.updatedAt = now
}

// IsNew reports whether the card has never been persisted.
func (c *Card) IsNew() bool { return c.expectedVersion == 0 }

// OwnedBy reports whether userID owns the card.
func (c *Card) OwnedBy(userID UserID) bool { return c.ownerID == userID }

// MaskedNumber returns the display form of the card number.
func (c *Card) MaskedNumber() string { return MaskPAN(c.number) }

// Getters

func (c *Card) ID() CardID           { return c.id }
func (c *Card) Number() string       { return c.number }
func (c *Card) OwnerID() UserID      { return c.ownerID }
func (c *Card) OwnerName() string    { return c.ownerName }
func (c *Card) ExpiresAt() time.Time { return c.expiresAt }
func (c *Card) Status() CardStatus   { return c.status }
func (c *Card) Balance() types.Money { return c.balance }
func (c *Card) Version() int         { return c.version }
func (c *Card) ExpectedVersion() int { return c.expectedVersion }
func (c *Card) CreatedAt() time.Time { return c.createdAt }
func (c *Card) UpdatedAt() time.Time { return c.updatedAt }
