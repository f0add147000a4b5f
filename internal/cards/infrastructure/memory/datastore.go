package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/types"
)

// DataStore implements domain.AtomicExecutor and domain.Repositories in memory.
// Cards are stored as copies so that a stale aggregate can be detected on Save
// the same way the Postgres store does it.
// Concurrency: all access is guarded by a mutex.
type DataStore struct {
	mu              sync.Mutex
	cards           map[domain.CardID]*domain.Card
	transfers       map[domain.TransferID]*domain.Transfer
	users           map[domain.UserID]*domain.User
	idempotencyKeys map[string]*domain.IdempotencyEntry
	outboxEntries   []*domain.OutboxEntry

	cardRepo         *CardRepository
	transferRepo     *TransferRepository
	userRepo         *UserRepository
	idempotencyStore *IdempotencyStore
	outboxRepo       *OutboxRepository
}

// NewDataStore creates a new in-memory DataStore.
func NewDataStore() *DataStore {
	ds := &DataStore{
		cards:           make(map[domain.CardID]*domain.Card),
		transfers:       make(map[domain.TransferID]*domain.Transfer),
		users:           make(map[domain.UserID]*domain.User),
		idempotencyKeys: make(map[string]*domain.IdempotencyEntry),
		outboxEntries:   make([]*domain.OutboxEntry, 0),
	}

	ds.cardRepo = &CardRepository{store: ds}
	ds.transferRepo = &TransferRepository{store: ds}
	ds.userRepo = &UserRepository{store: ds}
	ds.idempotencyStore = &IdempotencyStore{store: ds}
	ds.outboxRepo = &OutboxRepository{store: ds}

	return ds
}

// Cards returns the card repository.
func (ds *DataStore) Cards() domain.CardRepository { return ds.cardRepo }

// Transfers returns the transfer repository.
func (ds *DataStore) Transfers() domain.TransferRepository { return ds.transferRepo }

// Users returns the user repository.
func (ds *DataStore) Users() domain.UserRepository { return ds.userRepo }

// IdempotencyStore returns the idempotency store.
func (ds *DataStore) IdempotencyStore() domain.IdempotencyStore { return ds.idempotencyStore }

// Outbox returns the outbox repository.
func (ds *DataStore) Outbox() domain.OutboxRepository { return ds.outboxRepo }

// Atomic executes the callback atomically.
// It locks the store, runs the callback against a transactional snapshot,
// and commits staged changes only if the callback succeeds.
// Concurrency: the store is locked for the duration of the callback.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	tx := &transactionalDataStore{
		parent:            ds,
		stagedCards:       make(map[domain.CardID]*domain.Card),
		deletedCards:      make(map[domain.CardID]bool),
		stagedTransfers:   make(map[domain.TransferID]*domain.Transfer),
		stagedUsers:       make(map[domain.UserID]*domain.User),
		stagedIdempotency: make(map[string]*domain.IdempotencyEntry),
		stagedOutbox:      make([]*domain.OutboxEntry, 0),
		published:         make(map[types.EventID]time.Time),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// transactionalDataStore provides transaction isolation for memory operations.
type transactionalDataStore struct {
	parent            *DataStore
	stagedCards       map[domain.CardID]*domain.Card
	deletedCards      map[domain.CardID]bool
	stagedTransfers   map[domain.TransferID]*domain.Transfer
	stagedUsers       map[domain.UserID]*domain.User
	stagedIdempotency map[string]*domain.IdempotencyEntry
	stagedOutbox      []*domain.OutboxEntry
	published         map[types.EventID]time.Time
}

func (tx *transactionalDataStore) commit() {
	ds := tx.parent
	for id := range tx.deletedCards {
		delete(ds.cards, id)
	}
	for id, card := range tx.stagedCards {
		ds.cards[id] = card
	}
	for id, t := range tx.stagedTransfers {
		ds.transfers[id] = t
	}
	for id, u := range tx.stagedUsers {
		ds.users[id] = u
	}
	for k, v := range tx.stagedIdempotency {
		ds.idempotencyKeys[k] = v
	}
	for _, entry := range ds.outboxEntries {
		if at, ok := tx.published[entry.ID]; ok {
			publishedAt := at
			entry.PublishedAt = &publishedAt
		}
	}
	ds.outboxEntries = append(ds.outboxEntries, tx.stagedOutbox...)
}

func (tx *transactionalDataStore) Cards() domain.CardRepository {
	return &txCardRepository{tx: tx}
}

func (tx *transactionalDataStore) Transfers() domain.TransferRepository {
	return &txTransferRepository{tx: tx}
}

func (tx *transactionalDataStore) Users() domain.UserRepository {
	return &txUserRepository{tx: tx}
}

func (tx *transactionalDataStore) IdempotencyStore() domain.IdempotencyStore {
	return &txIdempotencyStore{tx: tx}
}

func (tx *transactionalDataStore) Outbox() domain.OutboxRepository {
	return &txOutboxRepository{tx: tx}
}

// card returns the stored copy visible to this transaction.
func (tx *transactionalDataStore) card(id domain.CardID) (*domain.Card, bool) {
	if tx.deletedCards[id] {
		return nil, false
	}
	if card, ok := tx.stagedCards[id]; ok {
		return card, true
	}
	card, ok := tx.parent.cards[id]
	return card, ok
}

// visibleCards returns every card visible to this transaction, in listing order.
func (tx *transactionalDataStore) visibleCards() []*domain.Card {
	cards := make([]*domain.Card, 0, len(tx.parent.cards)+len(tx.stagedCards))
	for id, card := range tx.parent.cards {
		if _, staged := tx.stagedCards[id]; staged || tx.deletedCards[id] {
			continue
		}
		cards = append(cards, card)
	}
	for id, card := range tx.stagedCards {
		if !tx.deletedCards[id] {
			cards = append(cards, card)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt().Equal(cards[j].CreatedAt()) {
			return cards[i].CreatedAt().Before(cards[j].CreatedAt())
		}
		return cards[i].ID().String() < cards[j].ID().String()
	})
	return cards
}

func (tx *transactionalDataStore) user(id domain.UserID) (*domain.User, bool) {
	if u, ok := tx.stagedUsers[id]; ok {
		return u, true
	}
	u, ok := tx.parent.users[id]
	return u, ok
}

// load returns a fresh aggregate as if read from a database row.
func (tx *transactionalDataStore) load(stored *domain.Card) *domain.Card {
	ownerName := stored.OwnerName()
	if owner, ok := tx.user(stored.OwnerID()); ok {
		ownerName = owner.FullName()
	}
	return domain.ReconstructCard(
		stored.ID(),
		stored.Number(),
		stored.OwnerID(),
		ownerName,
		stored.ExpiresAt(),
		stored.Status(),
		stored.Balance(),
		stored.Version(),
		stored.CreatedAt(),
		stored.UpdatedAt(),
	)
}

func (tx *transactionalDataStore) page(match func(*domain.Card) bool, req domain.PageRequest) domain.Page[*domain.Card] {
	var matched []*domain.Card
	for _, card := range tx.visibleCards() {
		if match(card) {
			matched = append(matched, card)
		}
	}

	total := int64(len(matched))
	start := min(max(req.Offset(), 0), len(matched))
	end := min(start+req.Size, len(matched))

	content := make([]*domain.Card, 0, end-start)
	for _, card := range matched[start:end] {
		content = append(content, tx.load(card))
	}
	return domain.NewPage(content, req, total)
}

func idempotencyKey(userID domain.UserID, key string) string {
	return userID.String() + ":" + key
}

func hasStatus(card *domain.Card, statuses []domain.CardStatus) bool {
	for _, s := range statuses {
		if card.Status() == s {
			return true
		}
	}
	return false
}

// Transactional repository implementations

type txCardRepository struct {
	tx *transactionalDataStore
}

func (r *txCardRepository) FindByID(ctx context.Context, id domain.CardID) (*domain.Card, error) {
	stored, ok := r.tx.card(id)
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	return r.tx.load(stored), nil
}

func (r *txCardRepository) Save(ctx context.Context, card *domain.Card) error {
	current, exists := r.tx.card(card.ID())

	if card.IsNew() {
		if exists {
			return domain.ErrOptimisticLock
		}
		number := domain.StripSpaces(card.Number())
		for _, other := range r.tx.visibleCards() {
			if domain.StripSpaces(other.Number()) == number {
				return domain.ErrDuplicateCardNumber
			}
		}
	} else if !exists || current.Version() != card.ExpectedVersion() {
		return domain.ErrOptimisticLock
	}

	r.tx.stagedCards[card.ID()] = r.tx.load(card)
	return nil
}

func (r *txCardRepository) Delete(ctx context.Context, id domain.CardID) error {
	if _, ok := r.tx.card(id); !ok {
		return domain.ErrCardNotFound
	}
	delete(r.tx.stagedCards, id)
	r.tx.deletedCards[id] = true
	return nil
}

func (r *txCardRepository) ExistsByID(ctx context.Context, id domain.CardID) (bool, error) {
	_, ok := r.tx.card(id)
	return ok, nil
}

func (r *txCardRepository) FindByOwner(ctx context.Context, ownerID domain.UserID, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.tx.page(func(c *domain.Card) bool { return c.OwnedBy(ownerID) }, page), nil
}

func (r *txCardRepository) FindByOwnerAndSuffix(ctx context.Context, ownerID domain.UserID, suffix string, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.tx.page(func(c *domain.Card) bool {
		return c.OwnedBy(ownerID) && strings.HasSuffix(domain.StripSpaces(c.Number()), suffix)
	}, page), nil
}

func (r *txCardRepository) FindByStatuses(ctx context.Context, statuses []domain.CardStatus, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.tx.page(func(c *domain.Card) bool { return hasStatus(c, statuses) }, page), nil
}

func (r *txCardRepository) FindByOwnerAndStatuses(ctx context.Context, ownerID domain.UserID, statuses []domain.CardStatus, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.tx.page(func(c *domain.Card) bool { return c.OwnedBy(ownerID) && hasStatus(c, statuses) }, page), nil
}

func (r *txCardRepository) FindAll(ctx context.Context, page domain.PageRequest) (domain.Page[*domain.Card], error) {
	return r.tx.page(func(*domain.Card) bool { return true }, page), nil
}

type txTransferRepository struct {
	tx *transactionalDataStore
}

func (r *txTransferRepository) Save(ctx context.Context, t *domain.Transfer) error {
	r.tx.stagedTransfers[t.ID()] = t
	return nil
}

func (r *txTransferRepository) FindByID(ctx context.Context, id domain.TransferID) (*domain.Transfer, error) {
	if t, ok := r.tx.stagedTransfers[id]; ok {
		return t, nil
	}
	if t, ok := r.tx.parent.transfers[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTransferNotFound
}

type txUserRepository struct {
	tx *transactionalDataStore
}

func (r *txUserRepository) Save(ctx context.Context, u *domain.User) error {
	if _, err := r.FindByEmail(ctx, u.Email()); err == nil {
		return domain.ErrEmailTaken
	}
	r.tx.stagedUsers[u.ID()] = u
	return nil
}

func (r *txUserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if u, ok := r.tx.user(id); ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *txUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	for _, u := range r.tx.stagedUsers {
		if u.Email() == email {
			return u, nil
		}
	}
	for _, u := range r.tx.parent.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type txIdempotencyStore struct {
	tx *transactionalDataStore
}

func (s *txIdempotencyStore) Get(ctx context.Context, userID domain.UserID, key string) (*domain.IdempotencyEntry, error) {
	k := idempotencyKey(userID, key)
	if entry, ok := s.tx.stagedIdempotency[k]; ok {
		return entry, nil
	}
	if entry, ok := s.tx.parent.idempotencyKeys[k]; ok {
		return entry, nil
	}
	return nil, nil
}

func (s *txIdempotencyStore) Save(ctx context.Context, entry *domain.IdempotencyEntry) error {
	existing, err := s.Get(ctx, entry.UserID, entry.IdempotencyKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrIdempotencyKeyExists
	}
	s.tx.stagedIdempotency[idempotencyKey(entry.UserID, entry.IdempotencyKey)] = entry
	return nil
}

type txOutboxRepository struct {
	tx *transactionalDataStore
}

func (r *txOutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	r.tx.stagedOutbox = append(r.tx.stagedOutbox, entry)
	return nil
}

func (r *txOutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry
	for _, entry := range r.tx.parent.outboxEntries {
		if len(entries) >= limit {
			break
		}
		if entry.PublishedAt == nil {
			if _, marked := r.tx.published[entry.ID]; !marked {
				copied := *entry
				entries = append(entries, &copied)
			}
		}
	}
	return entries, nil
}

func (r *txOutboxRepository) MarkPublished(ctx context.Context, ids []types.EventID, at time.Time) error {
	for _, id := range ids {
		r.tx.published[id] = at
	}
	return nil
}

func (r *txOutboxRepository) CountUnpublished(ctx context.Context) (int, error) {
	count := len(r.tx.stagedOutbox)
	for _, entry := range r.tx.parent.outboxEntries {
		if _, marked := r.tx.published[entry.ID]; entry.PublishedAt == nil && !marked {
			count++
		}
	}
	return count, nil
}

var (
	_ domain.AtomicExecutor = (*DataStore)(nil)
	_ domain.Repositories   = (*DataStore)(nil)
	_ domain.Repositories   = (*transactionalDataStore)(nil)
)
