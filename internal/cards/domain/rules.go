package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"bankcards/internal/common/types"
)

var cardNumberPattern = regexp.MustCompile(`^[0-9 ]{12,23}$`)

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Card rules

// RequireActive fails with ErrCardInactive unless the card is ACTIVE.
func RequireActive(card *Card) error {
	if card.Status() != CardStatusActive {
		return fmt.Errorf("%w: card %s is %s", ErrCardInactive, card.ID(), card.Status())
	}
	return nil
}

// RequireNotExpired fails with ErrCardExpired if the card expired strictly before asOf's date.
func RequireNotExpired(card *Card, asOf time.Time) error {
	if card.ExpiresAt().Before(DateOf(asOf)) {
		return fmt.Errorf("%w: card %s expired on %s", ErrCardExpired, card.ID(), card.ExpiresAt().Format(time.DateOnly))
	}
	return nil
}

// RequireOwnedBy fails with ErrOwnershipViolation unless userID owns the card.
func RequireOwnedBy(card *Card, userID UserID) error {
	if !card.OwnedBy(userID) {
		return fmt.Errorf("%w: card %s", ErrOwnershipViolation, card.ID())
	}
	return nil
}

// RequireFuture fails with ErrInvalidDate if date is strictly before today.
func RequireFuture(date time.Time, field string, today time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("%w: %s is required", ErrInvalidDate, field)
	}
	if DateOf(date).Before(DateOf(today)) {
		return fmt.Errorf("%w: %s %s", ErrInvalidDate, field, date.Format(time.DateOnly))
	}
	return nil
}

// ValidateCardNumber checks that the number has 12-23 digits or spaces.
func ValidateCardNumber(number string) error {
	if !cardNumberPattern.MatchString(number) {
		return ErrInvalidCardNumber
	}
	return nil
}

// Transfer rules

// RequireDifferent fails with ErrSameCard if both ids are the same card.
func RequireDifferent(from, to CardID) error {
	if from == to {
		return ErrSameCard
	}
	return nil
}

// NormalizeAmount rejects missing or non-positive amounts and rounds half-up to two places.
// A positive amount that rounds to zero is rejected as well.
func NormalizeAmount(amount decimal.NullDecimal) (types.Money, error) {
	if !amount.Valid {
		return types.Money{}, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if !amount.Decimal.IsPositive() {
		return types.Money{}, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.Decimal)
	}
	normalized := types.NewMoney(amount.Decimal)
	if !normalized.IsPositive() {
		return types.Money{}, fmt.Errorf("%w: %s rounds to %s", ErrInvalidAmount, amount.Decimal, normalized)
	}
	return normalized, nil
}
