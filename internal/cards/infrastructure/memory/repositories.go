package memory

import (
	"context"
	"time"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/types"
)

// Non-transactional repository implementations (for direct access).
// Each call runs as its own single-statement unit of work.

// CardRepository provides non-transactional access to in-memory cards.
type CardRepository struct {
	store *DataStore
}

// FindByID loads a card by ID. Returns ErrCardNotFound when missing.
func (r *CardRepository) FindByID(ctx context.Context, id domain.CardID) (card *domain.Card, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		card, err = repos.Cards().FindByID(ctx, id)
		return err
	})
	return card, err
}

// Save stores a card, applying the optimistic version check.
func (r *CardRepository) Save(ctx context.Context, card *domain.Card) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Cards().Save(ctx, card)
	})
}

// Delete removes a card. Returns ErrCardNotFound when missing.
func (r *CardRepository) Delete(ctx context.Context, id domain.CardID) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Cards().Delete(ctx, id)
	})
}

// ExistsByID reports whether a card exists.
func (r *CardRepository) ExistsByID(ctx context.Context, id domain.CardID) (exists bool, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		exists, err = repos.Cards().ExistsByID(ctx, id)
		return err
	})
	return exists, err
}

// FindByOwner lists a user's cards.
func (r *CardRepository) FindByOwner(ctx context.Context, ownerID domain.UserID, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, func(cards domain.CardRepository) (domain.Page[*domain.Card], error) {
		return cards.FindByOwner(ctx, ownerID, page)
	})
}

// FindByOwnerAndSuffix lists a user's cards ending with suffix.
func (r *CardRepository) FindByOwnerAndSuffix(ctx context.Context, ownerID domain.UserID, suffix string, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, func(cards domain.CardRepository) (domain.Page[*domain.Card], error) {
		return cards.FindByOwnerAndSuffix(ctx, ownerID, suffix, page)
	})
}

// FindByStatuses lists cards in any of the statuses.
func (r *CardRepository) FindByStatuses(ctx context.Context, statuses []domain.CardStatus, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, func(cards domain.CardRepository) (domain.Page[*domain.Card], error) {
		return cards.FindByStatuses(ctx, statuses, page)
	})
}

// FindByOwnerAndStatuses lists a user's cards in any of the statuses.
func (r *CardRepository) FindByOwnerAndStatuses(ctx context.Context, ownerID domain.UserID, statuses []domain.CardStatus, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, func(cards domain.CardRepository) (domain.Page[*domain.Card], error) {
		return cards.FindByOwnerAndStatuses(ctx, ownerID, statuses, page)
	})
}

// FindAll lists every card.
func (r *CardRepository) FindAll(ctx context.Context, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.list(ctx, func(cards domain.CardRepository) (domain.Page[*domain.Card], error) {
		return cards.FindAll(ctx, page)
	})
}

func (r *CardRepository) list(ctx context.Context, fn func(domain.CardRepository) (domain.Page[*domain.Card], error)) (page domain.Page[*domain.Card], err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		page, err = fn(repos.Cards())
		return err
	})
	return page, err
}

// TransferRepository provides non-transactional access to in-memory transfers.
type TransferRepository struct {
	store *DataStore
}

// Save appends a transfer record.
func (r *TransferRepository) Save(ctx context.Context, t *domain.Transfer) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Transfers().Save(ctx, t)
	})
}

// FindByID loads a transfer. Returns ErrTransferNotFound when missing.
func (r *TransferRepository) FindByID(ctx context.Context, id domain.TransferID) (t *domain.Transfer, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		t, err = repos.Transfers().FindByID(ctx, id)
		return err
	})
	return t, err
}

// Count returns the number of stored transfers.
func (r *TransferRepository) Count() int {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.transfers)
}

// UserRepository provides non-transactional access to in-memory users.
type UserRepository struct {
	store *DataStore
}

// Save inserts a user. Returns ErrEmailTaken for a reused email.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Users().Save(ctx, u)
	})
}

// FindByID loads a user. Returns ErrUserNotFound when missing.
func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (u *domain.User, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		u, err = repos.Users().FindByID(ctx, id)
		return err
	})
	return u, err
}

// FindByEmail loads a user by email. Returns ErrUserNotFound when missing.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (u *domain.User, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		u, err = repos.Users().FindByEmail(ctx, email)
		return err
	})
	return u, err
}

// IdempotencyStore provides non-transactional access to in-memory idempotency records.
type IdempotencyStore struct {
	store *DataStore
}

// Get retrieves an idempotency entry. Returns (nil, nil) when no entry exists.
func (s *IdempotencyStore) Get(ctx context.Context, userID domain.UserID, key string) (entry *domain.IdempotencyEntry, err error) {
	err = s.store.Atomic(ctx, func(repos domain.Repositories) error {
		entry, err = repos.IdempotencyStore().Get(ctx, userID, key)
		return err
	})
	return entry, err
}

// Save stores a new entry. Returns ErrIdempotencyKeyExists for a reused key.
func (s *IdempotencyStore) Save(ctx context.Context, entry *domain.IdempotencyEntry) error {
	return s.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.IdempotencyStore().Save(ctx, entry)
	})
}

// OutboxRepository provides non-transactional access to in-memory outbox entries.
type OutboxRepository struct {
	store *DataStore
}

// Append adds an event entry to the outbox.
func (r *OutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().Append(ctx, entry)
	})
}

// FetchUnpublished returns unpublished events in insertion order, up to the limit.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) (entries []*domain.OutboxEntry, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		entries, err = repos.Outbox().FetchUnpublished(ctx, limit)
		return err
	})
	return entries, err
}

// MarkPublished sets PublishedAt for the specified events.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []types.EventID, at time.Time) error {
	return r.store.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().MarkPublished(ctx, ids, at)
	})
}

// CountUnpublished returns the number of events not yet published.
func (r *OutboxRepository) CountUnpublished(ctx context.Context) (count int, err error) {
	err = r.store.Atomic(ctx, func(repos domain.Repositories) error {
		count, err = repos.Outbox().CountUnpublished(ctx)
		return err
	})
	return count, err
}

var (
	_ domain.CardRepository     = (*CardRepository)(nil)
	_ domain.TransferRepository = (*TransferRepository)(nil)
	_ domain.UserRepository     = (*UserRepository)(nil)
	_ domain.IdempotencyStore   = (*IdempotencyStore)(nil)
	_ domain.OutboxRepository   = (*OutboxRepository)(nil)
)
