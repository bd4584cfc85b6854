package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"virtual-wallet/backend/internal/account/domain"
	accountrepo "virtual-wallet/backend/internal/account/repository"
	"virtual-wallet/backend/internal/audit"
)

// Profile is the account view returned to its owner. It never carries the password hash.
type Profile struct {
	UserID     string
	Phone      string
	Email      *string
	Name       *string
	KYCStatus  domain.VerificationStatus
	MFAEnabled bool
	CreatedAt  time.Time
}

func profileOf(a *domain.Account) *Profile {
	return &Profile{
		UserID:     a.ID,
		Phone:      a.Phone,
		Email:      a.Email,
		Name:       a.Name,
		KYCStatus:  a.Status,
		MFAEnabled: a.MFAEnabled,
		CreatedAt:  a.CreatedAt.UTC(),
	}
}

// ProfileService reads and updates an existing account.
type ProfileService struct {
	accounts AccountRepo
	audit    audit.Recorder
	log      *zap.Logger
}

// NewProfileService returns a ProfileService.
func NewProfileService(accounts AccountRepo, recorder audit.Recorder, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{accounts: accounts, audit: recorder, log: log}
}

// GetProfile returns the profile for accountID or ErrUserNotFound.
func (s *ProfileService) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	acc, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return profileOf(acc), nil
}

// SetMFA turns the MFA requirement on or off. Setting the current value is a no-op.
func (s *ProfileService) SetMFA(ctx context.Context, accountID string, enabled bool) (*Profile, error) {
	acc, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.MFAEnabled == enabled {
		return profileOf(acc), nil
	}
	acc.MFAEnabled = enabled
	updated, err := s.save(ctx, acc)
	if err != nil {
		return nil, err
	}
	reason := "disabled"
	if enabled {
		reason = "enabled"
	}
	s.record(ctx, audit.EventMFASettingChange, updated, reason)
	return profileOf(updated), nil
}

// ApplyVerification records a provider's verification result. Only pending accounts may change;
// re-applying the current status succeeds without a write. Returns domain.ErrInvalidTransition otherwise.
func (s *ProfileService) ApplyVerification(ctx context.Context, accountID string, status domain.VerificationStatus) (*Profile, error) {
	acc, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.Status == status {
		return profileOf(acc), nil
	}
	if err := acc.TransitionTo(status); err != nil {
		return nil, err
	}
	updated, err := s.save(ctx, acc)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.EventKYCUpdated, updated, string(status))
	return profileOf(updated), nil
}

func (s *ProfileService) load(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID == "" {
		return nil, ErrUserNotFound
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acc == nil {
		return nil, ErrUserNotFound
	}
	return acc, nil
}

func (s *ProfileService) save(ctx context.Context, acc *domain.Account) (*domain.Account, error) {
	updated, err := s.accounts.Update(ctx, acc)
	if err != nil {
		if errors.Is(err, accountrepo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}
	return updated, nil
}

func (s *ProfileService) record(ctx context.Context, name string, acc *domain.Account, reason string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Event{Name: name, AccountID: acc.ID, Phone: acc.Phone, Reason: reason})
}
