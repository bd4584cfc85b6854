package domain

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 128
	EmailMaxLength    = 255
	NameMaxLength     = 100
)

var (
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ErrMalformedPhone is returned when a phone number is not in E.164 format.
var ErrMalformedPhone = errors.New("phone must be in E.164 format (e.g. +573001234567)")

// FieldError is a validation failure tied to an input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidatePhone checks the E.164 shape: '+', a non-zero digit, then 6–14 digits.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return ErrMalformedPhone
	}
	return nil
}

// ValidatePassword enforces the registration password policy. The first failing rule is reported.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength {
		return &FieldError{Field: "password", Message: "Password must be at least 8 characters"}
	}
	if n > PasswordMaxLength {
		return &FieldError{Field: "password", Message: "Password must be at most 128 characters"}
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	switch {
	case !upper:
		return &FieldError{Field: "password", Message: "Password must contain at least one uppercase letter"}
	case !lower:
		return &FieldError{Field: "password", Message: "Password must contain at least one lowercase letter"}
	case !digit:
		return &FieldError{Field: "password", Message: "Password must contain at least one digit"}
	case !special:
		return &FieldError{Field: "password", Message: "Password must contain at least one special character"}
	}
	return nil
}

// ValidateLoginPassword only checks length; strength rules apply at registration.
func ValidateLoginPassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength || n > PasswordMaxLength {
		return &FieldError{Field: "password", Message: "Invalid password format"}
	}
	return nil
}

// ValidateEmail checks an optional email. nil is valid.
func ValidateEmail(email *string) error {
	if email == nil {
		return nil
	}
	if utf8.RuneCountInString(*email) > EmailMaxLength {
		return &FieldError{Field: "email", Message: "Email must be at most 255 characters"}
	}
	if !emailPattern.MatchString(*email) {
		return &FieldError{Field: "email", Message: "Invalid email format"}
	}
	return nil
}

// ValidateName checks an optional display name. nil is valid.
func ValidateName(name *string) error {
	if name == nil {
		return nil
	}
	if utf8.RuneCountInString(*name) > NameMaxLength {
		return &FieldError{Field: "name", Message: "Name must be at most 100 characters"}
	}
	return nil
}
