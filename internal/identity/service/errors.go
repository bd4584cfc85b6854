package service

import (
	"errors"
	"strconv"

	"virtual-wallet/backend/internal/account/domain"
	"virtual-wallet/backend/internal/mfa"
)

// Sentinel errors for the auth flows; the HTTP handler maps them to status codes.
var (
	ErrDuplicatePhone       = errors.New("phone number already registered")
	ErrVerificationRejected = errors.New("identity verification rejected")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrTempTokenExpired     = errors.New("temporary token expired or invalid")
	// ErrAccountIDMissing means the directory accepted an account without assigning an id.
	ErrAccountIDMissing = errors.New("directory returned account without id")

	ErrTooManyAttempts = mfa.ErrTooManyAttempts
	ErrMalformedPhone  = domain.ErrMalformedPhone
)

// ValidationError is a rejected input field.
type ValidationError = domain.FieldError

// InvalidMFACodeError is returned when the submitted code does not match.
type InvalidMFACodeError struct {
	AttemptsRemaining int
}

func (e *InvalidMFACodeError) Error() string {
	return "invalid MFA code (" + strconv.Itoa(e.AttemptsRemaining) + " attempts remaining)"
}
