package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/karansanghvi/spendly/internal/core"
)

// UserStore is the storage surface signup and login need.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUserProfile(ctx context.Context, id, fullName, phone, email string) error
}

// Service registers users and exchanges credentials for access tokens.
type Service struct {
	users  UserStore
	tokens *TokenIssuer
}

func NewService(users UserStore, tokens *TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Signup registers a new account and returns the user plus a fresh token.
func (s *Service) Signup(ctx context.Context, fullName, phone, email, password string) (core.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return core.User{}, "", errors.New("empty email")
	}
	if len(password) < 6 {
		return core.User{}, "", errors.New("password too short (min 6 characters)")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, core.User{
		FullName:     strings.TrimSpace(fullName),
		Phone:        strings.TrimSpace(phone),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return core.User{}, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return core.User{}, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user plus a fresh token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (core.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, "", core.ErrUnauthenticated
		}
		return core.User{}, "", err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return core.User{}, "", core.ErrUnauthenticated
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return core.User{}, "", err
	}
	return user, token, nil
}

// Profile returns the caller's own account record.
func (s *Service) Profile(ctx context.Context, userID string) (core.User, error) {
	return s.users.GetUser(ctx, userID)
}

// UpdateProfile edits the caller's name, phone, and email.
func (s *Service) UpdateProfile(ctx context.Context, userID, fullName, phone, email string) (core.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return core.User{}, errors.New("empty email")
	}
	err := s.users.UpdateUserProfile(ctx, userID, strings.TrimSpace(fullName), strings.TrimSpace(phone), email)
	if err != nil {
		return core.User{}, err
	}
	return s.users.GetUser(ctx, userID)
}
