package domain

import (
	"errors"
	"time"
)

// Account is the registered wallet user. PasswordHash never leaves the service boundary.
type Account struct {
	ID           string
	Phone        string // E.164; unique and immutable
	Email        *string
	Name         *string
	PasswordHash string
	Status       VerificationStatus
	MFAEnabled   bool
	CreatedAt    time.Time
}

// VerificationStatus is the identity-verification (KYC) state of an account.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// ErrInvalidTransition is returned when a verification status change is not pending→approved|rejected.
var ErrInvalidTransition = errors.New("invalid verification status transition")

// ParseVerificationStatus maps a provider string to a VerificationStatus.
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	switch VerificationStatus(s) {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return VerificationStatus(s), true
	}
	return "", false
}

// Locked reports whether login is refused for this account.
func (a *Account) Locked() bool {
	return a.Status == VerificationRejected
}

// TransitionTo applies a verification result. Setting the current status again is a no-op.
func (a *Account) TransitionTo(to VerificationStatus) error {
	if a.Status == to {
		return nil
	}
	if a.Status != VerificationPending {
		return ErrInvalidTransition
	}
	if to != VerificationApproved && to != VerificationRejected {
		return ErrInvalidTransition
	}
	a.Status = to
	return nil
}
