package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bankcards/internal/common/logging"
)

const minSecretLength = 32

// Claims is the validated content of an access token.
type Claims struct {
	UserID    uuid.UUID
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

type tokenClaims struct {
	UserID uuid.UUID `json:"uid"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC-signed access tokens.
type TokenService struct {
	signingKey []byte
	lifetime   time.Duration
	clockSkew  time.Duration
	timeFunc   func() time.Time
}

// NewTokenService creates a TokenService. The secret must be at least 32 characters.
func NewTokenService(secret string, lifetime time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", lifetime)
	}
	return &TokenService{
		signingKey: []byte(secret),
		lifetime:   lifetime,
		clockSkew:  30 * time.Second,
		timeFunc:   time.Now,
	}, nil
}

// Issue creates a signed token for the user. It returns the token and its expiry.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, role string) (string, time.Time, error) {
	now := s.timeFunc()
	expiresAt := now.Add(s.lifetime)

	claims := tokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		logging.ErrorContext(ctx, "failed to sign access token", "error", err, "user_id", userID.String())
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses the token and returns its claims.
// Returns ErrExpiredToken or ErrInvalidToken on failure.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			logging.DebugContext(ctx, "access token expired")
			return nil, ErrExpiredToken
		}
		logging.DebugContext(ctx, "access token rejected", "error", err)
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		UserID:    claims.UserID,
		Role:      claims.Role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		TokenID:   claims.ID,
	}, nil
}
