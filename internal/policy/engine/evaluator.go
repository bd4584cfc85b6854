// Package engine decides login outcomes that depend on account state.
package engine

import (
	"context"

	"virtual-wallet/backend/internal/account/domain"
)

// LoginDecision is the policy outcome for an account that has been found by phone.
type LoginDecision struct {
	// Locked refuses login before the password is checked.
	Locked bool
	// MFARequired sends the account through the temp-token MFA step.
	MFARequired bool
}

// Evaluator evaluates the login policy for an account.
type Evaluator interface {
	EvaluateLogin(ctx context.Context, a *domain.Account) (LoginDecision, error)
}

// StaticEvaluator is the built-in policy: rejected verification locks, the account's MFA flag requires MFA.
type StaticEvaluator struct{}

func (StaticEvaluator) EvaluateLogin(_ context.Context, a *domain.Account) (LoginDecision, error) {
	return LoginDecision{Locked: a.Locked(), MFARequired: a.MFAEnabled}, nil
}
