package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bankcards/internal/cards/domain"
)

// IdempotencyStore implements domain.IdempotencyStore using PostgreSQL.
type IdempotencyStore struct {
	db Executor
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(db Executor) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Get retrieves an idempotency entry by user and key.
// Returns (nil, nil) when no entry exists; absence is not treated as an error.
func (s *IdempotencyStore) Get(ctx context.Context, userID domain.UserID, key string) (*domain.IdempotencyEntry, error) {
	var (
		resourceID   string
		requestHash  string
		responseBody []byte
		createdAt    time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT resource_id, request_hash, response_body, created_at
		FROM bank.idempotency_keys
		WHERE user_id = $1 AND idempotency_key = $2`,
		uuid.UUID(userID), key,
	).Scan(&resourceID, &requestHash, &responseBody, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &domain.IdempotencyEntry{
		UserID:         userID,
		IdempotencyKey: key,
		ResourceID:     resourceID,
		RequestHash:    requestHash,
		ResponseBody:   responseBody,
		CreatedAt:      createdAt.UTC(),
	}, nil
}

// Save stores a new entry. A second entry for the same user and key is rejected.
func (s *IdempotencyStore) Save(ctx context.Context, entry *domain.IdempotencyEntry) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO bank.idempotency_keys (user_id, idempotency_key, resource_id, request_hash, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING`,
		uuid.UUID(entry.UserID),
		entry.IdempotencyKey,
		entry.ResourceID,
		entry.RequestHash,
		entry.ResponseBody,
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdempotencyKeyExists
	}
	return nil
}

// Verify interface implementation.
var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
