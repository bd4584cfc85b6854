package repository

import (
	"context"
	"errors"

	"virtual-wallet/backend/internal/account/domain"
)

var (
	// ErrDuplicatePhone is returned by Create when the phone is already registered.
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrNotFound is returned by Update when the account does not exist.
	ErrNotFound = errors.New("account not found")
)

// Repository defines persistence for accounts. Lookups return nil, nil when nothing matches.
type Repository interface {
	// Create persists a new account and returns it with ID (and CreatedAt if unset) assigned.
	Create(ctx context.Context, a *domain.Account) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// Update overwrites the mutable fields (email, name, password hash, status, mfa flag).
	Update(ctx context.Context, a *domain.Account) (*domain.Account, error)
	// Delete reports whether an account was removed.
	Delete(ctx context.Context, id string) (bool, error)
}
