package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bankcards/internal/cards/application"
	"bankcards/internal/cards/domain"
	"bankcards/internal/cards/infrastructure/memory"
	"bankcards/internal/common/types"
)

// fixedNow is the clock every service in these tests runs on.
var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	ctx       context.Context
	store     *memory.DataStore
	cards     *application.CardService
	transfers *application.TransferService
}

func newFixture() *fixture {
	store := memory.NewDataStore()
	return &fixture{
		ctx:       context.Background(),
		store:     store,
		cards:     application.NewCardService(store, application.WithClock(clock)),
		transfers: application.NewTransferService(store, application.WithClock(clock)),
	}
}

func (f *fixture) user(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(email, "hash", "User "+email, domain.RoleUser, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().Save(f.ctx, u))
	return u
}

func (f *fixture) card(t *testing.T, owner *domain.User, number, balance string) domain.CardID {
	t.Helper()
	res, err := f.cards.Create(f.ctx, application.CreateCardRequest{
		OwnerID:   owner.ID(),
		Number:    number,
		ExpiresAt: fixedNow.AddDate(3, 0, 0),
		Balance:   amount(balance),
	})
	require.NoError(t, err)
	id, err := domain.ParseCardID(res.ID)
	require.NoError(t, err)
	return id
}

// putCard stores a card directly, bypassing the creation rules.
func (f *fixture) putCard(t *testing.T, owner *domain.User, number, balance string, status domain.CardStatus, expiresAt time.Time) domain.CardID {
	t.Helper()
	card, err := domain.NewCard(number, owner.ID(), owner.FullName(), expiresAt, types.MustMoney(balance), fixedNow)
	require.NoError(t, err)
	if status != domain.CardStatusActive {
		require.NoError(t, card.SetStatus(status, fixedNow))
	}
	require.NoError(t, f.store.Cards().Save(f.ctx, card))
	return card.ID()
}

func (f *fixture) balance(t *testing.T, id domain.CardID) string {
	t.Helper()
	card, err := f.store.Cards().FindByID(f.ctx, id)
	require.NoError(t, err)
	return card.Balance().String()
}

func (f *fixture) transferCount() int {
	return f.store.Transfers().(*memory.TransferRepository).Count()
}

func amount(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
