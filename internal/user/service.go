package user

import (
	"context"
	"errors"
	"fmt"
)

// Store is the persistence the user service depends on.
type Store interface {
	Create(ctx context.Context, email, hashedPassword string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, hashedPassword string) error
	MarkVerified(ctx context.Context, id string) (*User, error)
}

// Service contains business logic for user management.
type Service struct {
	repo Store
}

// NewService creates a new user Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new user account.
func (s *Service) Create(ctx context.Context, email, hashedPassword string) (*User, error) {
	u, err := s.repo.Create(ctx, email, hashedPassword)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a user by their email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// SetPassword stores a new password hash for the user.
func (s *Service) SetPassword(ctx context.Context, id, hashedPassword string) error {
	return s.repo.UpdatePassword(ctx, id, hashedPassword)
}

// MarkVerified flags the user as verified.
func (s *Service) MarkVerified(ctx context.Context, id string) (*User, error) {
	return s.repo.MarkVerified(ctx, id)
}

// IsActive reports whether the user exists and may authenticate.
func (s *Service) IsActive(ctx context.Context, id string) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive, nil
}
