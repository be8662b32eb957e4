package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/windfall/speakscore/internal/client"
)

// User represents a learner record.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetID returns the user ID as a string.
func (u *User) GetID() string {
	return u.ID.String()
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts user and fills its generated fields. It returns
	// ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, user *User) error
	// GetByEmail returns nil without error when no user has that email.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// PostgresUserRepository implements UserRepository with PostgreSQL.
type PostgresUserRepository struct {
	db *client.PostgresClient
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *client.PostgresClient) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create inserts a new user. The unique index on email arbitrates races.
func (r *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query, user.Name, user.Email).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email address.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT id, name, email, created_at
		FROM users
		WHERE email = $1
	`

	var user User
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// InMemoryUserRepository is the UserRepository used when no database is
// configured.
type InMemoryUserRepository struct {
	store *InMemoryRepository[*User]
}

// NewInMemoryUserRepository creates an empty in-memory user repository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{store: NewInMemoryRepository[*User]()}
}

// Create stores user unless the email is already taken.
func (r *InMemoryUserRepository) Create(ctx context.Context, user *User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()
	return r.store.CreateUnless(ctx, user, func(existing *User) bool {
		return strings.EqualFold(existing.Email, user.Email)
	})
}

// GetByEmail retrieves a user by email address.
func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := r.store.Find(ctx, func(u *User) bool {
		return strings.EqualFold(u.Email, email)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
