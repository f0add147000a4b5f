package cards

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"bankcards/internal/cards/application"
	"bankcards/internal/cards/domain"
	"bankcards/internal/cards/infrastructure/memory"
	"bankcards/internal/common/types"
)

type cardsState struct {
	ctx           context.Context
	now           time.Time
	store         *memory.DataStore
	cardService   *application.CardService
	transfers     *application.TransferService
	correlationID types.CorrelationID
	users         map[string]domain.UserID
	cards         map[string]domain.CardID
	lastTransfer  *application.TransferResult
	lastError     error
}

func InitializeCardsScenario(ctx *godog.ScenarioContext) {
	state := &cardsState{
		ctx:           context.Background(),
		now:           time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		correlationID: types.NewCorrelationID(),
		users:         make(map[string]domain.UserID),
		cards:         make(map[string]domain.CardID),
	}
	state.store = memory.NewDataStore()
	clock := application.WithClock(func() time.Time { return state.now })
	state.cardService = application.NewCardService(state.store, clock)
	state.transfers = application.NewTransferService(state.store, clock)

	// Background steps
	ctx.Step(`^today is (\d{4}-\d{2}-\d{2})$`, state.todayIs)
	ctx.Step(`^a user "([^"]*)"$`, state.aUser)
	ctx.Step(`^"([^"]*)" has a card "([^"]*)" expiring (\d{4}-\d{2}-\d{2}) with balance (\d+\.\d+)$`, state.userHasACard)
	ctx.Step(`^card "([^"]*)" has status "([^"]*)"$`, state.cardHasStatus)

	// Transfer steps
	ctx.Step(`^"([^"]*)" transfers (\d+\.\d+) from "([^"]*)" to "([^"]*)"$`, state.userTransfers)
	ctx.Step(`^"([^"]*)" transfers (\d+\.\d+) from "([^"]*)" to "([^"]*)" with idempotency key "([^"]*)"$`, state.userTransfersWithIdempotencyKey)
	ctx.Step(`^the transfer should complete with amount (\d+\.\d+)$`, state.theTransferShouldComplete)
	ctx.Step(`^(\d+) transfers? should be recorded$`, state.transfersShouldBeRecorded)

	// Block request steps
	ctx.Step(`^"([^"]*)" requests a block of card "([^"]*)"$`, state.userRequestsABlock)
	ctx.Step(`^"([^"]*)" requested a block of card "([^"]*)"$`, state.userRequestedABlock)
	ctx.Step(`^an administrator sets card "([^"]*)" to "([^"]*)"$`, state.cardHasStatus)
	ctx.Step(`^(\d+) cards? should be pending block$`, state.cardsShouldBePendingBlock)

	// Outcome steps
	ctx.Step(`^the request should be rejected with code "([^"]*)"$`, state.theRequestShouldBeRejectedWithCode)
	ctx.Step(`^card "([^"]*)" should have balance (\d+\.\d+)$`, state.cardShouldHaveBalance)
	ctx.Step(`^card "([^"]*)" should have status "([^"]*)"$`, state.cardShouldHaveStatus)
}

func (s *cardsState) todayIs(date string) error {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return err
	}
	s.now = day.Add(12 * time.Hour)
	return nil
}

func (s *cardsState) aUser(email string) error {
	user, err := domain.NewUser(email, "hash", email, domain.RoleUser, s.now)
	if err != nil {
		return err
	}
	if err := s.store.Users().Save(s.ctx, user); err != nil {
		return err
	}
	s.users[email] = user.ID()
	return nil
}

func (s *cardsState) user(email string) (domain.UserID, error) {
	id, ok := s.users[email]
	if !ok {
		return domain.UserID{}, fmt.Errorf("unknown user %q", email)
	}
	return id, nil
}

func (s *cardsState) card(number string) (domain.CardID, error) {
	id, ok := s.cards[number]
	if !ok {
		return domain.CardID{}, fmt.Errorf("unknown card %q", number)
	}
	return id, nil
}

func (s *cardsState) userHasACard(email, number, expiry, balance string) error {
	ownerID, err := s.user(email)
	if err != nil {
		return err
	}
	expiresAt, err := time.Parse(time.DateOnly, expiry)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return err
	}

	resp, err := s.cardService.Create(s.ctx, application.CreateCardRequest{
		OwnerID:       ownerID,
		Number:        number,
		ExpiresAt:     expiresAt,
		Balance:       decimal.NewNullDecimal(amount),
		CorrelationID: s.correlationID,
	})
	if err != nil {
		return err
	}
	cardID, err := domain.ParseCardID(resp.ID)
	if err != nil {
		return err
	}
	s.cards[number] = cardID
	return nil
}

func (s *cardsState) cardHasStatus(number, status string) error {
	cardID, err := s.card(number)
	if err != nil {
		return err
	}
	parsed, err := domain.ParseCardStatus(status)
	if err != nil {
		return err
	}
	_, err = s.cardService.UpdateStatus(s.ctx, application.UpdateCardStatusRequest{
		CardID:        cardID,
		Status:        parsed,
		CorrelationID: s.correlationID,
	})
	return err
}

func (s *cardsState) userTransfers(email, amount, from, to string) error {
	return s.userTransfersWithIdempotencyKey(email, amount, from, to, "")
}

func (s *cardsState) userTransfersWithIdempotencyKey(email, amount, from, to, idempotencyKey string) error {
	userID, err := s.user(email)
	if err != nil {
		return err
	}
	fromID, err := s.card(from)
	if err != nil {
		return err
	}
	toID, err := s.card(to)
	if err != nil {
		return err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}

	s.lastTransfer, s.lastError = s.transfers.Transfer(s.ctx, application.TransferRequest{
		UserID:         userID,
		FromCardID:     fromID,
		ToCardID:       toID,
		Amount:         decimal.NewNullDecimal(value),
		IdempotencyKey: idempotencyKey,
		CorrelationID:  s.correlationID,
	})
	return nil
}

func (s *cardsState) theTransferShouldComplete(amount string) error {
	if s.lastError != nil {
		return fmt.Errorf("expected transfer to complete, got: %w", s.lastError)
	}
	if s.lastTransfer.Status != domain.TransferStatusCompleted.String() {
		return fmt.Errorf("expected status COMPLETED, got %s", s.lastTransfer.Status)
	}
	if got := s.lastTransfer.Amount.String(); got != amount {
		return fmt.Errorf("expected amount %s, got %s", amount, got)
	}
	return nil
}

func (s *cardsState) transfersShouldBeRecorded(count int) error {
	repo, ok := s.store.Transfers().(*memory.TransferRepository)
	if !ok {
		return fmt.Errorf("unexpected transfer repository %T", s.store.Transfers())
	}
	if got := repo.Count(); got != count {
		return fmt.Errorf("expected %d transfers, got %d", count, got)
	}
	return nil
}

func (s *cardsState) userRequestsABlock(email, number string) error {
	userID, err := s.user(email)
	if err != nil {
		return err
	}
	cardID, err := s.card(number)
	if err != nil {
		return err
	}
	_, s.lastError = s.cardService.RequestBlock(s.ctx, application.RequestBlockRequest{
		UserID:        userID,
		CardID:        cardID,
		CorrelationID: s.correlationID,
	})
	return nil
}

func (s *cardsState) userRequestedABlock(email, number string) error {
	if err := s.userRequestsABlock(email, number); err != nil {
		return err
	}
	return s.lastError
}

func (s *cardsState) cardsShouldBePendingBlock(count int) error {
	page, err := s.cardService.GetPendingBlock(s.ctx, 0, 0)
	if err != nil {
		return err
	}
	if page.TotalElements != int64(count) {
		return fmt.Errorf("expected %d pending cards, got %d", count, page.TotalElements)
	}
	return nil
}

func (s *cardsState) theRequestShouldBeRejectedWithCode(code string) error {
	if s.lastError == nil {
		return fmt.Errorf("expected error %s, got none", code)
	}
	if got := domain.CodeOf(s.lastError); string(got) != code {
		return fmt.Errorf("expected code %s, got %s (%v)", code, got, s.lastError)
	}
	return nil
}

func (s *cardsState) loadCard(number string) (*domain.Card, error) {
	cardID, err := s.card(number)
	if err != nil {
		return nil, err
	}
	return s.store.Cards().FindByID(s.ctx, cardID)
}

func (s *cardsState) cardShouldHaveBalance(number, balance string) error {
	card, err := s.loadCard(number)
	if err != nil {
		return err
	}
	if got := card.Balance().String(); got != balance {
		return fmt.Errorf("expected balance %s on %s, got %s", balance, number, got)
	}
	return nil
}

func (s *cardsState) cardShouldHaveStatus(number, status string) error {
	card, err := s.loadCard(number)
	if err != nil {
		return err
	}
	if got := card.Status().String(); got != status {
		return fmt.Errorf("expected status %s on %s, got %s", status, number, got)
	}
	return nil
}
