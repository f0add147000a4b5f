package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bankcards/internal/cards/domain"
)

// UserRepository implements domain.UserRepository using PostgreSQL.
type UserRepository struct {
	db Executor
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db Executor) *UserRepository {
	return &UserRepository{db: db}
}

// Save inserts a user.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bank.users (id, email, password_hash, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(u.ID()),
		u.Email(),
		u.PasswordHash(),
		u.FullName(),
		string(u.Role()),
		u.CreatedAt(),
	)
	if isUniqueViolation(err, constraintUserEmail) {
		return domain.ErrEmailTaken
	}
	return err
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, uuid.UUID(id))
}

// FindByEmail retrieves a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `WHERE email = $1`, domain.NormalizeEmail(email))
}

func (r *UserRepository) findOne(ctx context.Context, where string, args ...any) (*domain.User, error) {
	var (
		id           uuid.UUID
		email        string
		passwordHash string
		fullName     string
		role         string
		createdAt    time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, full_name, role, created_at
		FROM bank.users `+where,
		args...,
	).Scan(&id, &email, &passwordHash, &fullName, &role, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	parsedRole, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s role %q", domain.ErrCorruptData, id, role)
	}

	return domain.ReconstructUser(domain.UserID(id), email, passwordHash, fullName, parsedRole, createdAt.UTC()), nil
}

// Verify interface implementation.
var _ domain.UserRepository = (*UserRepository)(nil)
