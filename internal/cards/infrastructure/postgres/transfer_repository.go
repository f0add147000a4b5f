package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"bankcards/internal/cards/domain"
)

// TransferRepository implements domain.TransferRepository using PostgreSQL.
// Rows are never updated; card ids are kept after the cards are deleted.
type TransferRepository struct {
	db Executor
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(db Executor) *TransferRepository {
	return &TransferRepository{db: db}
}

// Save appends a transfer record.
func (r *TransferRepository) Save(ctx context.Context, t *domain.Transfer) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bank.transfers (id, user_id, from_card_id, to_card_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(t.ID()),
		uuid.UUID(t.UserID()),
		uuid.UUID(t.FromCardID()),
		uuid.UUID(t.ToCardID()),
		moneyToNumeric(t.Amount()),
		string(t.Status()),
		t.CreatedAt(),
	)
	return err
}

// FindByID retrieves a transfer by ID.
func (r *TransferRepository) FindByID(ctx context.Context, id domain.TransferID) (*domain.Transfer, error) {
	var (
		transferID uuid.UUID
		userID     uuid.UUID
		fromCardID uuid.UUID
		toCardID   uuid.UUID
		amount     pgtype.Numeric
		status     string
		createdAt  time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, from_card_id, to_card_id, amount, status, created_at
		FROM bank.transfers
		WHERE id = $1`,
		uuid.UUID(id),
	).Scan(&transferID, &userID, &fromCardID, &toCardID, &amount, &status, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}

	money, err := numericToMoney(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: transfer %s amount: %v", domain.ErrCorruptData, transferID, err)
	}

	return domain.ReconstructTransfer(
		domain.TransferID(transferID),
		domain.UserID(userID),
		domain.CardID(fromCardID),
		domain.CardID(toCardID),
		money,
		domain.TransferStatus(status),
		createdAt.UTC(),
	), nil
}

// Verify interface implementation.
var _ domain.TransferRepository = (*TransferRepository)(nil)
