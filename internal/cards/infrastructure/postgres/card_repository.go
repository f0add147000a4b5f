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

const cardColumns = `
	c.id, c.number, c.owner_id, u.full_name, c.expires_at,
	c.status, c.balance, c.version, c.created_at, c.updated_at`

const cardFrom = `
	FROM bank.cards c
	JOIN bank.users u ON u.id = c.owner_id`

const cardOrder = `
	ORDER BY c.created_at, c.id`

// CardRepository implements domain.CardRepository using PostgreSQL.
type CardRepository struct {
	db Executor
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db Executor) *CardRepository {
	return &CardRepository{db: db}
}

// Save inserts a new card or updates an existing one.
// Updates are conditional on the version the card was loaded with.
func (r *CardRepository) Save(ctx context.Context, card *domain.Card) error {
	if card.IsNew() {
		_, err := r.db.Exec(ctx, `
			INSERT INTO bank.cards (
				id, number, owner_id, expires_at, status, balance,
				version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.UUID(card.ID()),
			card.Number(),
			uuid.UUID(card.OwnerID()),
			dateFromTime(card.ExpiresAt()),
			string(card.Status()),
			moneyToNumeric(card.Balance()),
			card.Version(),
			card.CreatedAt(),
			card.UpdatedAt(),
		)
		switch {
		case isUniqueViolation(err, constraintCardNumber):
			return domain.ErrDuplicateCardNumber
		case isForeignKeyViolation(err, constraintCardOwnerFK):
			return domain.ErrUserNotFound
		}
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE bank.cards
		SET status = $1,
			balance = $2,
			version = $3,
			updated_at = $4
		WHERE id = $5 AND version = $6`,
		string(card.Status()),
		moneyToNumeric(card.Balance()),
		card.Version(),
		card.UpdatedAt(),
		uuid.UUID(card.ID()),
		card.ExpectedVersion(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// FindByID retrieves a card by ID.
func (r *CardRepository) FindByID(ctx context.Context, id domain.CardID) (*domain.Card, error) {
	row := r.db.QueryRow(ctx, `SELECT `+cardColumns+cardFrom+` WHERE c.id = $1`, uuid.UUID(id))
	card, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCardNotFound
	}
	return card, err
}

// Delete removes a card permanently.
func (r *CardRepository) Delete(ctx context.Context, id domain.CardID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bank.cards WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// ExistsByID reports whether a card exists.
func (r *CardRepository) ExistsByID(ctx context.Context, id domain.CardID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bank.cards WHERE id = $1)`, uuid.UUID(id)).Scan(&exists)
	return exists, err
}

// FindByOwner lists a user's cards.
func (r *CardRepository) FindByOwner(ctx context.Context, ownerID domain.UserID, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, page, `c.owner_id = $1`, uuid.UUID(ownerID))
}

// FindByOwnerAndSuffix lists a user's cards whose digits end with suffix.
func (r *CardRepository) FindByOwnerAndSuffix(ctx context.Context, ownerID domain.UserID, suffix string, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, page,
		`c.owner_id = $1 AND right(replace(c.number, ' ', ''), length($2)) = $2`,
		uuid.UUID(ownerID), domain.StripSpaces(suffix),
	)
}

// FindByStatuses lists cards in any of the statuses.
func (r *CardRepository) FindByStatuses(ctx context.Context, statuses []domain.CardStatus, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, page, `c.status = ANY($1)`, statusStrings(statuses))
}

// FindByOwnerAndStatuses lists a user's cards in any of the statuses.
func (r *CardRepository) FindByOwnerAndStatuses(ctx context.Context, ownerID domain.UserID, statuses []domain.CardStatus, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, page, `c.owner_id = $1 AND c.status = ANY($2)`, uuid.UUID(ownerID), statusStrings(statuses))
}

// FindAll lists every card.
func (r *CardRepository) FindAll(ctx context.Context, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, page, `TRUE`)
}

// list runs a filtered count and a page query with the same predicate.
// The predicate's placeholders start at $1; limit and offset are appended after args.
func (r *CardRepository) list(ctx context.Context, page domain.PageRequest, where string, args ...any) (domain.Page[*domain.Card], error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bank.cards c WHERE `+where, args...).Scan(&total); err != nil {
		return domain.Page[*domain.Card]{}, fmt.Errorf("count cards: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s %s LIMIT $%d OFFSET $%d`,
		cardColumns, cardFrom, where, cardOrder, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return domain.Page[*domain.Card]{}, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	content := make([]*domain.Card, 0, page.Size)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return domain.Page[*domain.Card]{}, err
		}
		content = append(content, card)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[*domain.Card]{}, err
	}

	return domain.NewPage(content, page, total), nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var (
		id        uuid.UUID
		number    string
		ownerID   uuid.UUID
		ownerName string
		expiresAt pgtype.Date
		status    string
		balance   pgtype.Numeric
		version   int
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&id, &number, &ownerID, &ownerName, &expiresAt,
		&status, &balance, &version, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	expiry, err := dateToTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: card %s expires_at: %v", domain.ErrCorruptData, id, err)
	}
	amount, err := numericToMoney(balance)
	if err != nil {
		return nil, fmt.Errorf("%w: card %s balance: %v", domain.ErrCorruptData, id, err)
	}
	cardStatus, err := domain.ParseCardStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: card %s status %q", domain.ErrCorruptData, id, status)
	}

	return domain.ReconstructCard(
		domain.CardID(id),
		number,
		domain.UserID(ownerID),
		ownerName,
		expiry,
		cardStatus,
		amount,
		version,
		createdAt.UTC(),
		updatedAt.UTC(),
	), nil
}

// Verify interface implementation.
var _ domain.CardRepository = (*CardRepository)(nil)
