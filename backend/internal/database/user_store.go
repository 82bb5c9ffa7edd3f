package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/user/papertrade/backend/internal/auth"
	"github.com/user/papertrade/backend/internal/ledger"
	"github.com/user/papertrade/backend/internal/models"
)

const uniqueViolation = "23505"

// CreateUser inserts a new user into the database.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, cash decimal.Decimal) (*models.User, error) {
	user := &models.User{
		ID:       uuid.New(),
		Username: username,
		Password: passwordHash, // This is the hash
		Cash:     cash,
	}

	query := `INSERT INTO users (id, username, password_hash, cash) VALUES ($1, $2, $3, $4)
			  RETURNING created_at`

	var createdAt time.Time
	err := s.db.QueryRow(ctx, query, user.ID, username, passwordHash, cash).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, auth.ErrUsernameTaken
		}
		return nil, fmt.Errorf("error creating user %s: %w", username, err)
	}
	user.CreatedAt = createdAt

	return user, nil
}

// GetUserByUsername retrieves a user by their username, ignoring case.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, cash, created_at FROM users WHERE lower(username) = lower($1)`
	return s.getUser(ctx, query, username)
}

// GetUserByID retrieves a user by their ID.
func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT id, username, password_hash, cash, created_at FROM users WHERE id = $1`
	return s.getUser(ctx, query, userID)
}

func (s *Store) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Password, &user.Cash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found, return nil without error
		}
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return user, nil
}

// UpdatePassword stores a new password hash.
func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	cmdTag, err := s.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("error updating password for user %s: %w", userID, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return ledger.ErrUserNotFound
	}
	return nil
}
