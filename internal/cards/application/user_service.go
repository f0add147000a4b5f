package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/logging"
)

const minPasswordLength = 8

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) error
}

// TokenIssuer issues access tokens for authenticated users.
type TokenIssuer interface {
	Issue(ctx context.Context, userID uuid.UUID, role string) (string, time.Time, error)
}

// UserService registers users and logs them in.
type UserService struct {
	dataStore domain.AtomicExecutor
	repos     domain.Repositories
	hasher    PasswordHasher
	tokens    TokenIssuer
	now       func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(dataStore DataStore, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *UserService {
	o := buildOptions(opts)
	return &UserService{
		dataStore: dataStore,
		repos:     dataStore,
		hasher:    hasher,
		tokens:    tokens,
		now:       o.now,
	}
}

// RegisterRequest represents a self-service sign-up.
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
}

// Register creates a USER account. Returns ErrEmailTaken for a reused email.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*UserResult, error) {
	user, err := s.create(ctx, req.Email, req.Password, req.FullName, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	result := toUserResult(user)
	logging.InfoContext(ctx, "User registered", "user_id", result.ID)
	return &result, nil
}

func (s *UserService) create(ctx context.Context, email, password, fullName string, role domain.Role) (*domain.User, error) {
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: at least %d characters required", domain.ErrWeakPassword, minPasswordLength)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := domain.NewUser(email, hash, fullName, role, s.now())
	if err != nil {
		return nil, err
	}

	err = s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Users().Save(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LoginRequest represents an email/password login.
type LoginRequest struct {
	Email    string
	Password string
}

// Login verifies credentials and issues an access token.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.repos.Users().FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash(), req.Password); err != nil {
		logging.InfoContext(ctx, "Login failed", "user_id", user.ID().String())
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(ctx, uuid.UUID(user.ID()), user.Role().String())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		UserID:      user.ID().String(),
		Role:        user.Role().String(),
	}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id domain.UserID) (*UserResult, error) {
	user, err := s.repos.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toUserResult(user)
	return &result, nil
}

// EnsureAdmin creates the bootstrap administrator if no user has the email yet.
// An existing account is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password, fullName string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}

	existing, err := s.repos.Users().FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			logging.WarnContext(ctx, "Bootstrap admin email belongs to a non-admin user", "user_id", existing.ID().String())
		}
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return err
	}

	user, err := s.create(ctx, email, password, fullName, domain.RoleAdmin)
	if errors.Is(err, domain.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	logging.InfoContext(ctx, "Bootstrap admin created", "user_id", user.ID().String())
	return nil
}
