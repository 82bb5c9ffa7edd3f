package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/papertrade/backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrUsernameTaken      = errors.New("the username is already taken")
	ErrInvalidPassword    = errors.New("invalid password")
)

// FormError reports a missing or inconsistent form field.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

func formError(msg string) error { return &FormError{Message: msg} }

// UserStore persists user accounts.
// Lookups return nil, nil when the user does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string, cash decimal.Decimal) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Service registers users, checks credentials and changes passwords.
type Service struct {
	users        UserStore
	startingCash decimal.Decimal
	cost         int
	log          *zap.Logger
}

// NewService creates an account service. New users are credited startingCash.
func NewService(users UserStore, startingCash decimal.Decimal, log *zap.Logger) *Service {
	return &Service{users: users, startingCash: startingCash, cost: bcrypt.DefaultCost, log: log}
}

// WithHashCost sets the bcrypt cost used for new password hashes.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates a user after checking the form: username, password and
// confirmation are required and confirmation must equal password.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (*models.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, formError("must provide username")
	case password == "":
		return nil, formError("must provide password")
	case confirmation == "":
		return nil, formError("must provide password again")
	}

	existing, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username %s: %w", username, err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}
	if confirmation != password {
		return nil, formError("the confirmation password must be equal to password")
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	// The unique index still guards against a concurrent registration.
	user, err := s.users.CreateUser(ctx, username, hash, s.startingCash)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}

	s.log.Info("User registered", zap.Stringer("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate returns the user owning username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, formError("must provide username")
	case password == "":
		return nil, formError("must provide password")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", username, err)
	}
	if user == nil || !checkPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the password of userID. The current password must
// verify, newPassword must equal confirmation and differ from current.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword, confirmation string) error {
	switch {
	case current == "":
		return formError("must provide current password")
	case newPassword == "":
		return formError("must provide new password")
	case newPassword != confirmation:
		return formError("the confirmation password must be equal to the new password")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("finding user %s: %w", userID, err)
	}
	if user == nil || !checkPassword(user.Password, current) {
		return ErrInvalidPassword
	}
	if newPassword == current {
		return formError("you cannot submit the same password")
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password of user %s: %w", userID, err)
	}

	s.log.Info("Password changed", zap.Stringer("user_id", userID))
	return nil
}
