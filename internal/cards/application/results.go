package application

import (
	"time"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/types"
)

// CardResult is the presentation shape of a card. The number is always masked.
type CardResult struct {
	ID           string      `json:"id"`
	MaskedNumber string      `json:"masked_number"`
	OwnerID      string      `json:"owner_id"`
	OwnerName    string      `json:"owner_name"`
	ExpiresAt    string      `json:"expires_at"`
	Status       string      `json:"status"`
	Balance      types.Money `json:"balance"`
}

// BalanceResult is the presentation shape of a card balance.
type BalanceResult struct {
	CardID       string      `json:"card_id"`
	MaskedNumber string      `json:"masked_number"`
	Balance      types.Money `json:"balance"`
}

// TransferResult is the presentation shape of a completed transfer.
type TransferResult struct {
	ID               string      `json:"id"`
	FromMaskedNumber string      `json:"from_masked_number"`
	ToMaskedNumber   string      `json:"to_masked_number"`
	Amount           types.Money `json:"amount"`
	CreatedAt        string      `json:"created_at"`
	Status           string      `json:"status"`
}

// PageResult is one page of results.
type PageResult[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// UserResult is the presentation shape of a user.
type UserResult struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// LoginResult carries an issued access token.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

func toCardResult(c *domain.Card) CardResult {
	return CardResult{
		ID:           c.ID().String(),
		MaskedNumber: c.MaskedNumber(),
		OwnerID:      c.OwnerID().String(),
		OwnerName:    c.OwnerName(),
		ExpiresAt:    c.ExpiresAt().Format(time.DateOnly),
		Status:       c.Status().String(),
		Balance:      c.Balance(),
	}
}

func toBalanceResult(c *domain.Card) BalanceResult {
	return BalanceResult{
		CardID:       c.ID().String(),
		MaskedNumber: c.MaskedNumber(),
		Balance:      c.Balance(),
	}
}

func toTransferResult(t *domain.Transfer, fromNumber, toNumber string) TransferResult {
	return TransferResult{
		ID:               t.ID().String(),
		FromMaskedNumber: domain.MaskPAN(fromNumber),
		ToMaskedNumber:   domain.MaskPAN(toNumber),
		Amount:           t.Amount(),
		CreatedAt:        t.CreatedAt().UTC().Format(time.RFC3339),
		Status:           t.Status().String(),
	}
}

func toUserResult(u *domain.User) UserResult {
	return UserResult{
		ID:        u.ID().String(),
		Email:     u.Email(),
		FullName:  u.FullName(),
		Role:      u.Role().String(),
		CreatedAt: u.CreatedAt().UTC().Format(time.RFC3339),
	}
}

func toCardPage(p domain.Page[*domain.Card]) *PageResult[CardResult] {
	mapped := domain.MapPage(p, toCardResult)
	return &PageResult[CardResult]{
		Content:       mapped.Content,
		Page:          mapped.Page,
		Size:          mapped.Size,
		TotalElements: mapped.TotalElements,
		TotalPages:    mapped.TotalPages,
	}
}
