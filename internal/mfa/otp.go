package mfa

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
)

// CodeLength is the number of digits in a second-factor code.
const CodeLength = 6

// CodeChecker decides whether a submitted code is correct for an account.
type CodeChecker interface {
	Check(ctx context.Context, accountID, code string) bool
}

// StaticCodeChecker accepts one fixed code for every account. It stands in for a real second factor.
type StaticCodeChecker struct {
	digest [sha256.Size]byte
}

// NewStaticCodeChecker returns a checker accepting code.
func NewStaticCodeChecker(code string) *StaticCodeChecker {
	return &StaticCodeChecker{digest: sha256.Sum256([]byte(code))}
}

func (c *StaticCodeChecker) Check(_ context.Context, _ string, code string) bool {
	if !WellFormedCode(code) {
		return false
	}
	got := sha256.Sum256([]byte(code))
	return subtle.ConstantTimeCompare(got[:], c.digest[:]) == 1
}

// WellFormedCode reports whether code is exactly six ASCII digits.
func WellFormedCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
