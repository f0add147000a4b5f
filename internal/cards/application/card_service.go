package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/logging"
	"bankcards/internal/common/metrics"
	"bankcards/internal/common/types"
)

// maxSuffixSearch is the longest search term treated as a trailing-digits filter.
const maxSuffixSearch = 6

// CardService orchestrates the card lifecycle: issuing, status changes,
// deletion, listings and user block requests.
// Reads go straight to the repositories; writes run through Atomic.
type CardService struct {
	dataStore domain.AtomicExecutor
	repos     domain.Repositories
	now       func() time.Time
}

// NewCardService creates a new CardService.
func NewCardService(dataStore DataStore, opts ...Option) *CardService {
	o := buildOptions(opts)
	return &CardService{
		dataStore: dataStore,
		repos:     dataStore,
		now:       o.now,
	}
}

// CreateCardRequest represents a request to issue a card.
type CreateCardRequest struct {
	OwnerID       domain.UserID
	Number        string
	ExpiresAt     time.Time
	Balance       decimal.NullDecimal
	CorrelationID types.CorrelationID
}

// Create issues an ACTIVE card to an existing user.
// The balance defaults to zero and must not be negative.
func (s *CardService) Create(ctx context.Context, req CreateCardRequest) (*CardResult, error) {
	var result CardResult
	now := s.now()

	err := s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		owner, err := repos.Users().FindByID(ctx, req.OwnerID)
		if err != nil {
			return err
		}

		if err := domain.RequireFuture(req.ExpiresAt, "expires_at", now); err != nil {
			return err
		}

		balance := types.Zero()
		if req.Balance.Valid {
			// checked before rounding so -0.004 does not become 0.00
			if req.Balance.Decimal.IsNegative() {
				return fmt.Errorf("%w: initial balance %s", domain.ErrInvalidAmount, req.Balance.Decimal)
			}
			balance = types.NewMoney(req.Balance.Decimal)
		}

		card, err := domain.NewCard(req.Number, owner.ID(), owner.FullName(), req.ExpiresAt, balance, now)
		if err != nil {
			return err
		}
		if err := repos.Cards().Save(ctx, card); err != nil {
			return err
		}

		entry, err := domain.NewCardCreatedOutboxEntry(card, req.CorrelationID, now)
		if err != nil {
			return err
		}
		if err := repos.Outbox().Append(ctx, entry); err != nil {
			return err
		}

		result = toCardResult(card)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCardCreated()
	logging.InfoContext(ctx, "Card created",
		"card_id", result.ID,
		"owner_id", result.OwnerID,
		"masked_number", result.MaskedNumber,
		"balance", result.Balance.String(),
	)
	return &result, nil
}

// UpdateCardStatusRequest represents an administrative status change.
type UpdateCardStatusRequest struct {
	CardID        domain.CardID
	Status        domain.CardStatus
	CorrelationID types.CorrelationID
}

// UpdateStatus overwrites a card's status. Any transition is allowed.
func (s *CardService) UpdateStatus(ctx context.Context, req UpdateCardStatusRequest) (*CardResult, error) {
	var (
		result CardResult
		from   domain.CardStatus
	)
	now := s.now()

	err := s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		card, err := repos.Cards().FindByID(ctx, req.CardID)
		if err != nil {
			return err
		}

		from = card.Status()
		if err := card.SetStatus(req.Status, now); err != nil {
			return err
		}
		if err := repos.Cards().Save(ctx, card); err != nil {
			return err
		}

		entry, err := domain.NewCardStatusChangedOutboxEntry(card, from, req.CorrelationID, now)
		if err != nil {
			return err
		}
		if err := repos.Outbox().Append(ctx, entry); err != nil {
			return err
		}

		result = toCardResult(card)
		return nil
	})
	if err != nil {
		s.recordConflict(ctx, err, req.CardID)
		return nil, err
	}

	metrics.RecordCardStatusChange(result.Status)
	logging.InfoContext(ctx, "Card status changed",
		"card_id", result.ID,
		"from_status", from.String(),
		"to_status", result.Status,
	)
	return &result, nil
}

// DeleteCardRequest represents an administrative card removal.
type DeleteCardRequest struct {
	CardID        domain.CardID
	CorrelationID types.CorrelationID
}

// Delete removes a card permanently. Returns ErrCardNotFound if it does not exist.
func (s *CardService) Delete(ctx context.Context, req DeleteCardRequest) error {
	now := s.now()

	err := s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		exists, err := repos.Cards().ExistsByID(ctx, req.CardID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrCardNotFound
		}
		if err := repos.Cards().Delete(ctx, req.CardID); err != nil {
			return err
		}

		entry, err := domain.NewCardDeletedOutboxEntry(req.CardID, req.CorrelationID, now)
		if err != nil {
			return err
		}
		return repos.Outbox().Append(ctx, entry)
	})
	if err != nil {
		return err
	}

	logging.InfoContext(ctx, "Card deleted", "card_id", req.CardID.String())
	return nil
}

// GetUserCardsRequest represents a user's card listing.
type GetUserCardsRequest struct {
	UserID domain.UserID
	Search string
	Page   int
	Size   int
}

// GetUserCards lists a user's cards. A non-blank search term of at most six
// digits (spaces ignored) filters by the trailing digits of the card number.
func (s *CardService) GetUserCards(ctx context.Context, req GetUserCardsRequest) (*PageResult[CardResult], error) {
	page := domain.NewPageRequest(req.Page, req.Size)

	var (
		result domain.Page[*domain.Card]
		err    error
	)
	if suffix, ok := suffixFilter(req.Search); ok {
		result, err = s.repos.Cards().FindByOwnerAndSuffix(ctx, req.UserID, suffix, page)
	} else {
		result, err = s.repos.Cards().FindByOwner(ctx, req.UserID, page)
	}
	if err != nil {
		return nil, err
	}
	return toCardPage(result), nil
}

func suffixFilter(search string) (string, bool) {
	if strings.TrimSpace(search) == "" {
		return "", false
	}
	suffix := domain.StripSpaces(search)
	if len(suffix) > maxSuffixSearch {
		return "", false
	}
	return suffix, true
}

// GetUserCard returns one of the user's cards.
// Cards owned by someone else are reported as ErrCardNotFound.
func (s *CardService) GetUserCard(ctx context.Context, userID domain.UserID, cardID domain.CardID) (*CardResult, error) {
	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	result := toCardResult(card)
	return &result, nil
}

// GetUserCardBalance returns the balance of one of the user's cards.
// Cards owned by someone else are reported as ErrCardNotFound.
func (s *CardService) GetUserCardBalance(ctx context.Context, userID domain.UserID, cardID domain.CardID) (*BalanceResult, error) {
	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	result := toBalanceResult(card)
	return &result, nil
}

func (s *CardService) ownedCard(ctx context.Context, userID domain.UserID, cardID domain.CardID) (*domain.Card, error) {
	card, err := s.repos.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !card.OwnedBy(userID) {
		return nil, domain.ErrCardNotFound
	}
	return card, nil
}

// GetAllCardsRequest represents an administrative listing.
// OwnerID and Status are optional and combine independently.
type GetAllCardsRequest struct {
	OwnerID *domain.UserID
	Status  *domain.CardStatus
	Page    int
	Size    int
}

// GetAll lists cards for administrators.
func (s *CardService) GetAll(ctx context.Context, req GetAllCardsRequest) (*PageResult[CardResult], error) {
	page := domain.NewPageRequest(req.Page, req.Size)
	cards := s.repos.Cards()

	var (
		result domain.Page[*domain.Card]
		err    error
	)
	switch {
	case req.OwnerID != nil && req.Status != nil:
		result, err = cards.FindByOwnerAndStatuses(ctx, *req.OwnerID, []domain.CardStatus{*req.Status}, page)
	case req.Status != nil:
		result, err = cards.FindByStatuses(ctx, []domain.CardStatus{*req.Status}, page)
	case req.OwnerID != nil:
		result, err = cards.FindByOwner(ctx, *req.OwnerID, page)
	default:
		result, err = cards.FindAll(ctx, page)
	}
	if err != nil {
		return nil, err
	}
	return toCardPage(result), nil
}

// GetPendingBlock lists cards awaiting an administrator's block decision.
func (s *CardService) GetPendingBlock(ctx context.Context, page, size int) (*PageResult[CardResult], error) {
	status := domain.CardStatusPendingBlock
	return s.GetAll(ctx, GetAllCardsRequest{Status: &status, Page: page, Size: size})
}

// RequestBlockRequest represents a user's request to block their card.
type RequestBlockRequest struct {
	UserID        domain.UserID
	CardID        domain.CardID
	CorrelationID types.CorrelationID
}

// RequestBlock moves one of the user's ACTIVE cards to PENDING_BLOCK.
// Returns ErrCardNotFound for missing or foreign cards and
// ErrInvalidStateTransition when the card is not ACTIVE.
func (s *CardService) RequestBlock(ctx context.Context, req RequestBlockRequest) (*CardResult, error) {
	var result CardResult
	now := s.now()

	err := s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		card, err := repos.Cards().FindByID(ctx, req.CardID)
		if err != nil {
			return err
		}
		if !card.OwnedBy(req.UserID) {
			return domain.ErrCardNotFound
		}

		if err := card.RequestBlock(now); err != nil {
			return err
		}
		if err := repos.Cards().Save(ctx, card); err != nil {
			return err
		}

		entry, err := domain.NewCardStatusChangedOutboxEntry(card, domain.CardStatusActive, req.CorrelationID, now)
		if err != nil {
			return err
		}
		if err := repos.Outbox().Append(ctx, entry); err != nil {
			return err
		}

		result = toCardResult(card)
		return nil
	})
	if err != nil {
		s.recordConflict(ctx, err, req.CardID)
		return nil, err
	}

	metrics.RecordCardStatusChange(result.Status)
	logging.InfoContext(ctx, "Card block requested", "card_id", result.ID)
	return &result, nil
}

func (s *CardService) recordConflict(ctx context.Context, err error, cardID domain.CardID) {
	if domain.CategoryOf(err) != domain.CategoryTransient {
		return
	}
	metrics.RecordOptimisticLockConflict("cards")
	logging.WarnContext(ctx, "Concurrent card modification", "card_id", cardID.String(), "error", err)
}
