package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/logging"
	"bankcards/internal/common/metrics"
	"bankcards/internal/common/types"
)

// TransferService moves money between two cards of the same user.
//
// Key design decisions:
//   - Every rule is checked before the first write ("fail fast, mutate last")
//   - Debit, credit, transfer log, outbox and idempotency record share one Atomic unit
//   - Stale card versions abort the unit with ErrOptimisticLock; the caller decides whether to retry
type TransferService struct {
	dataStore domain.AtomicExecutor
	repos     domain.Repositories
	now       func() time.Time
}

// NewTransferService creates a new TransferService.
func NewTransferService(dataStore DataStore, opts ...Option) *TransferService {
	o := buildOptions(opts)
	return &TransferService{
		dataStore: dataStore,
		repos:     dataStore,
		now:       o.now,
	}
}

// TransferRequest represents a request to move money between two of the user's cards.
type TransferRequest struct {
	UserID         domain.UserID
	FromCardID     domain.CardID
	ToCardID       domain.CardID
	Amount         decimal.NullDecimal
	IdempotencyKey string
	CorrelationID  types.CorrelationID
}

// Transfer debits the source card and credits the destination card by the
// normalized amount, and records a COMPLETED transfer.
// With an idempotency key, a replay returns the first result without moving money again.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	result, err := s.transfer(ctx, req)
	if err != nil {
		outcome := string(domain.CodeOf(err))
		metrics.RecordTransfer(outcome)
		if domain.CategoryOf(err) == domain.CategoryTransient {
			metrics.RecordOptimisticLockConflict("cards")
			logging.WarnContext(ctx, "Transfer aborted by concurrent card modification",
				"from_card_id", req.FromCardID.String(),
				"to_card_id", req.ToCardID.String(),
			)
		} else {
			logging.InfoContext(ctx, "Transfer rejected", "code", outcome, "error", err)
		}
		return nil, err
	}
	return result, nil
}

func (s *TransferService) transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := domain.RequireDifferent(req.FromCardID, req.ToCardID); err != nil {
		return nil, err
	}
	amount, err := domain.NormalizeAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	var (
		result   TransferResult
		replayed bool
	)
	now := s.now()
	fingerprint := requestFingerprint(req.FromCardID, req.ToCardID, amount)

	err = s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		if req.IdempotencyKey != "" {
			existing, err := repos.IdempotencyStore().Get(ctx, req.UserID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.RequestHash != fingerprint {
					return fmt.Errorf("%w: %q was used for a different transfer", domain.ErrIdempotencyKeyExists, req.IdempotencyKey)
				}
				if err := json.Unmarshal(existing.ResponseBody, &result); err != nil {
					return fmt.Errorf("%w: idempotency record %s", domain.ErrCorruptData, req.IdempotencyKey)
				}
				replayed = true
				return nil
			}
		}

		from, err := repos.Cards().FindByID(ctx, req.FromCardID)
		if err != nil {
			return fmt.Errorf("source card %s: %w", req.FromCardID, err)
		}
		to, err := repos.Cards().FindByID(ctx, req.ToCardID)
		if err != nil {
			return fmt.Errorf("destination card %s: %w", req.ToCardID, err)
		}

		for _, card := range []*domain.Card{from, to} {
			if err := domain.RequireOwnedBy(card, req.UserID); err != nil {
				return err
			}
		}
		for _, card := range []*domain.Card{from, to} {
			if err := domain.RequireActive(card); err != nil {
				return err
			}
			if err := domain.RequireNotExpired(card, now); err != nil {
				return err
			}
		}
		if from.Balance().LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s", domain.ErrNotEnoughFunds, from.Balance(), amount)
		}

		if err := from.Debit(amount, now); err != nil {
			return err
		}
		if err := to.Credit(amount, now); err != nil {
			return err
		}
		if err := repos.Cards().Save(ctx, from); err != nil {
			return err
		}
		if err := repos.Cards().Save(ctx, to); err != nil {
			return err
		}

		transfer := domain.NewCompletedTransfer(req.UserID, from.ID(), to.ID(), amount, now)
		if err := repos.Transfers().Save(ctx, transfer); err != nil {
			return err
		}

		entry, err := domain.NewTransferCompletedOutboxEntry(transfer, req.CorrelationID)
		if err != nil {
			return err
		}
		if err := repos.Outbox().Append(ctx, entry); err != nil {
			return err
		}

		result = toTransferResult(transfer, from.Number(), to.Number())

		if req.IdempotencyKey != "" {
			body, err := json.Marshal(result)
			if err != nil {
				return err
			}
			if err := repos.IdempotencyStore().Save(ctx, &domain.IdempotencyEntry{
				UserID:         req.UserID,
				IdempotencyKey: req.IdempotencyKey,
				ResourceID:     transfer.ID().String(),
				RequestHash:    fingerprint,
				ResponseBody:   body,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		metrics.RecordIdempotencyCacheHit()
		logging.InfoContext(ctx, "Transfer replayed",
			"transfer_id", result.ID,
			"idempotency_key", req.IdempotencyKey,
		)
		return &result, nil
	}

	metrics.RecordTransfer(string(domain.TransferStatusCompleted))
	logging.InfoContext(ctx, "Transfer completed",
		"transfer_id", result.ID,
		"from", result.FromMaskedNumber,
		"to", result.ToMaskedNumber,
		"amount", result.Amount.String(),
	)
	return &result, nil
}

// GetUserTransfer returns a transfer made by the user.
// Transfers made by someone else are reported as ErrTransferNotFound.
func (s *TransferService) GetUserTransfer(ctx context.Context, userID domain.UserID, transferID domain.TransferID) (*TransferResult, error) {
	transfer, err := s.repos.Transfers().FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.UserID() != userID {
		return nil, domain.ErrTransferNotFound
	}

	fromNumber, err := s.cardNumber(ctx, transfer.FromCardID())
	if err != nil {
		return nil, err
	}
	toNumber, err := s.cardNumber(ctx, transfer.ToCardID())
	if err != nil {
		return nil, err
	}

	result := toTransferResult(transfer, fromNumber, toNumber)
	return &result, nil
}

// cardNumber returns the card's number, or "" once the card has been deleted.
func (s *TransferService) cardNumber(ctx context.Context, id domain.CardID) (string, error) {
	card, err := s.repos.Cards().FindByID(ctx, id)
	if errors.Is(err, domain.ErrCardNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return card.Number(), nil
}

// requestFingerprint identifies what a transfer request asks for, so a reused
// idempotency key can be told apart from a genuine retry.
func requestFingerprint(from, to domain.CardID, amount types.Money) string {
	sum := sha256.Sum256([]byte(from.String() + "|" + to.String() + "|" + amount.String()))
	return hex.EncodeToString(sum[:])
}
