package domain

import "github.com/google/uuid"

// UserID uniquely identifies a user.
type UserID uuid.UUID

// NewUserID generates a new UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID parses a string into a UserID.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(id), nil
}

// String returns the string representation.
func (id UserID) String() string {
	return uuid.UUID(id).String()
}

// IsZero returns true if the ID is the zero value.
func (id UserID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// CardID uniquely identifies a card.
type CardID uuid.UUID

// NewCardID generates a new CardID.
func NewCardID() CardID {
	return CardID(uuid.New())
}

// ParseCardID parses a string into a CardID.
func ParseCardID(s string) (CardID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CardID{}, err
	}
	return CardID(id), nil
}

// String returns the string representation.
func (id CardID) String() string {
	return uuid.UUID(id).String()
}

// IsZero returns true if the ID is the zero value.
func (id CardID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// TransferID uniquely identifies a transfer.
type TransferID uuid.UUID

// NewTransferID generates a new TransferID.
func NewTransferID() TransferID {
	return TransferID(uuid.New())
}

// ParseTransferID parses a string into a TransferID.
func ParseTransferID(s string) (TransferID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TransferID{}, err
	}
	return TransferID(id), nil
}

// String returns the string representation.
func (id TransferID) String() string {
	return uuid.UUID(id).String()
}

// IsZero returns true if the ID is the zero value.
func (id TransferID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}
