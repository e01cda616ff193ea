package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"voltflow/internal/models"
	"voltflow/internal/repository"
)

var (
	// ErrEmailInUse is returned when registering a duplicate email.
	ErrEmailInUse = errors.New("auth: email already registered")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// UserStore defines the storage contract used by the service.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service contains registration and login logic.
type Service struct {
	store     UserStore
	hasher    Hasher
	tokenizer *TokenService
	logger    *zap.Logger
}

// NewService builds the auth service.
func NewService(store UserStore, hasher Hasher, tokenizer *TokenService, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Signup registers a new user.
func (s *Service) Signup(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("auth: email required")
	}
	if len(password) < 8 {
		return nil, errors.New("auth: password must be at least 8 characters")
	}

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         "user",
	}

	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login authenticates a user and produces a JWT.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}
