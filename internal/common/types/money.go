package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every Money value is held at.
const MoneyScale = 2

// Money represents a card balance or transfer amount.
// Uses decimal.Decimal for precise financial calculations and always carries
// exactly two fractional digits (rounded half-up on construction).
type Money struct {
	Amount decimal.Decimal
}

// NewMoney creates a new Money instance rounded to MoneyScale.
func NewMoney(amount decimal.Decimal) Money {
	return Money{Amount: amount.Round(MoneyScale)}
}

// NewMoneyFromString creates Money from a string amount.
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewMoney(d), nil
}

// MustMoney is NewMoneyFromString for literals; it panics on malformed input.
func MustMoney(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMoneyFromInt creates Money from an integer (whole units).
func NewMoneyFromInt(amount int64) Money {
	return NewMoney(decimal.NewFromInt(amount))
}

// Zero returns zero Money.
func Zero() Money {
	return NewMoney(decimal.Zero)
}

// Add adds two Money values.
func (m Money) Add(other Money) Money {
	return NewMoney(m.Amount.Add(other.Amount))
}

// Subtract subtracts other from m.
func (m Money) Subtract(other Money) Money {
	return NewMoney(m.Amount.Sub(other.Amount))
}

// IsPositive returns true if amount > 0.
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsNegative returns true if amount < 0.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// IsZero returns true if amount == 0.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// GreaterThan returns true if m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.Amount.GreaterThan(other.Amount)
}

// LessThan returns true if m < other.
func (m Money) LessThan(other Money) bool {
	return m.Amount.LessThan(other.Amount)
}

// Equal returns true if both amounts are numerically equal.
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount)
}

// String returns the fixed two-digit representation, e.g. "60.00".
func (m Money) String() string {
	return m.Amount.StringFixed(MoneyScale)
}

// MarshalJSON encodes Money as a quoted fixed-point string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = NewMoney(d)
	return nil
}
