package domain

import (
	"time"

	"bankcards/internal/common/types"
)

// Transfer is the historical record of a completed balance movement.
// It is created once and never mutated.
type Transfer struct {
	id         TransferID
	userID     UserID
	fromCardID CardID
	toCardID   CardID
	amount     types.Money
	status     TransferStatus
	createdAt  time.Time
}

// NewCompletedTransfer records a transfer that has been applied to both cards.
func NewCompletedTransfer(userID UserID, from, to CardID, amount types.Money, now time.Time) *Transfer {
	return &Transfer{
		id:         NewTransferID(),
		userID:     userID,
		fromCardID: from,
		toCardID:   to,
		amount:     amount,
		status:     TransferStatusCompleted,
		createdAt:  now,
	}
}

// ReconstructTransfer reconstructs a Transfer from persistence.
func ReconstructTransfer(
	id TransferID,
	userID UserID,
	from, to CardID,
	amount types.Money,
	status TransferStatus,
	createdAt time.Time,
) *Transfer {
	return &Transfer{
		id:         id,
		userID:     userID,
		fromCardID: from,
		toCardID:   to,
		amount:     amount,
		status:     status,
		createdAt:  createdAt,
	}
}

func (t *Transfer) ID() TransferID         { return t.id }
func (t *Transfer) UserID() UserID         { return t.userID }
func (t *Transfer) FromCardID() CardID     { return t.fromCardID }
func (t *Transfer) ToCardID() CardID       { return t.toCardID }
func (t *Transfer) Amount() types.Money    { return t.amount }
func (t *Transfer) Status() TransferStatus { return t.status }
func (t *Transfer) CreatedAt() time.Time   { return t.createdAt }
