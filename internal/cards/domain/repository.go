package domain

import (
	"context"
	"math"
	"time"

	"bankcards/internal/common/types"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Page int
	Size int
}

// NewPageRequest clamps page and size to valid values.
// Page is capped so that Offset never overflows.
func NewPageRequest(page, size int) PageRequest {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	page = max(page, 0)
	page = min(page, math.MaxInt/size)
	return PageRequest{Page: page, Size: size}
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of a larger result set.
type Page[T any] struct {
	Content       []T
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
}

// NewPage builds a Page and computes TotalPages.
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

// MapPage converts the content of a page, keeping its paging metadata.
func MapPage[T, R any](p Page[T], fn func(T) R) Page[R] {
	out := make([]R, 0, len(p.Content))
	for _, item := range p.Content {
		out = append(out, fn(item))
	}
	return Page[R]{
		Content:       out,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}

// CardRepository defines the interface for card persistence.
// Listings are ordered by creation time, then id.
type CardRepository interface {
	// FindByID retrieves a card by ID.
	// Returns ErrCardNotFound when no record exists.
	FindByID(ctx context.Context, id CardID) (*Card, error)
	// Save inserts a new card or updates an existing one.
	// Updates succeed only while the stored version equals card.ExpectedVersion();
	// otherwise ErrOptimisticLock is returned. A reused number yields ErrDuplicateCardNumber.
	Save(ctx context.Context, card *Card) error
	// Delete removes a card permanently.
	// Returns ErrCardNotFound when no record exists.
	Delete(ctx context.Context, id CardID) error
	// ExistsByID reports whether a card exists.
	ExistsByID(ctx context.Context, id CardID) (bool, error)
	// FindByOwner lists a user's cards.
	FindByOwner(ctx context.Context, ownerID UserID, page PageRequest) (Page[*Card], error)
	// FindByOwnerAndSuffix lists a user's cards whose space-stripped number ends with suffix.
	FindByOwnerAndSuffix(ctx context.Context, ownerID UserID, suffix string, page PageRequest) (Page[*Card], error)
	// FindByStatuses lists cards in any of the statuses.
	FindByStatuses(ctx context.Context, statuses []CardStatus, page PageRequest) (Page[*Card], error)
	// FindByOwnerAndStatuses lists a user's cards in any of the statuses.
	FindByOwnerAndStatuses(ctx context.Context, ownerID UserID, statuses []CardStatus, page PageRequest) (Page[*Card], error)
	// FindAll lists every card.
	FindAll(ctx context.Context, page PageRequest) (Page[*Card], error)
}

// TransferRepository defines the interface for the append-only transfer log.
type TransferRepository interface {
	// Save appends a transfer record.
	Save(ctx context.Context, transfer *Transfer) error
	// FindByID retrieves a transfer by ID.
	// Returns ErrTransferNotFound when no record exists.
	FindByID(ctx context.Context, id TransferID) (*Transfer, error)
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	// Save inserts a user. Returns ErrEmailTaken when the email is in use.
	Save(ctx context.Context, user *User) error
	// FindByID retrieves a user by ID.
	// Returns ErrUserNotFound when no record exists.
	FindByID(ctx context.Context, id UserID) (*User, error)
	// FindByEmail retrieves a user by normalized email.
	// Returns ErrUserNotFound when no record exists.
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// IdempotencyEntry represents a stored idempotency record.
type IdempotencyEntry struct {
	UserID         UserID
	IdempotencyKey string
	ResourceID     string
	RequestHash    string
	ResponseBody   []byte
	CreatedAt      time.Time
}

// IdempotencyStore defines the interface for idempotency key storage.
type IdempotencyStore interface {
	// Get retrieves an idempotency entry by user and key.
	// Returns (nil, nil) when no entry exists.
	Get(ctx context.Context, userID UserID, key string) (*IdempotencyEntry, error)
	// Save stores a new entry.
	// Returns ErrIdempotencyKeyExists if the user already used the key.
	Save(ctx context.Context, entry *IdempotencyEntry) error
}

// Repositories provides access to all repositories within a transaction.
// This is used with the Atomic pattern to ensure all operations share the same transaction.
type Repositories interface {
	Cards() CardRepository
	Transfers() TransferRepository
	Users() UserRepository
	IdempotencyStore() IdempotencyStore
	Outbox() OutboxRepository
}

// AtomicCallback is the function signature for atomic operations.
// Any error returned will cause the transaction to be rolled back.
type AtomicCallback func(repos Repositories) error

// AtomicExecutor runs a set of repository operations as one unit of work.
// Commits and rollbacks are left to the implementation.
//
// Example usage:
//
//	err := executor.Atomic(ctx, func(repos Repositories) error {
//	    card, err := repos.Cards().FindByID(ctx, id)
//	    if err != nil {
//	        return err
//	    }
//	    if err := card.RequestBlock(now); err != nil {
//	        return err
//	    }
//	    return repos.Cards().Save(ctx, card)
//	})
type AtomicExecutor interface {
	// Atomic executes the callback within a database transaction.
	// If the callback returns nil, the transaction is committed.
	// If the callback returns an error, the transaction is rolled back.
	Atomic(ctx context.Context, fn AtomicCallback) error
}

// OutboxEntry represents a domain event waiting to be published.
type OutboxEntry struct {
	ID            types.EventID
	EventType     string
	AggregateID   string
	CorrelationID types.CorrelationID
	Payload       []byte
	OccurredAt    time.Time
	PublishedAt   *time.Time
}

// OutboxRepository defines the interface for the outbox pattern.
// Events are written to the outbox within the same transaction as the domain changes,
// then published asynchronously by a separate process.
type OutboxRepository interface {
	// Append adds an event to the outbox.
	Append(ctx context.Context, entry *OutboxEntry) error
	// FetchUnpublished retrieves unpublished events, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// MarkPublished marks events as published.
	MarkPublished(ctx context.Context, ids []types.EventID, at time.Time) error
	// CountUnpublished returns the number of events not yet published.
	CountUnpublished(ctx context.Context) (int, error)
}
