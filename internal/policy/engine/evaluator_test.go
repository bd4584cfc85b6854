package engine

import (
	"context"
	"testing"

	"virtual-wallet/backend/internal/account/domain"
)

func decisionMatrix() []struct {
	name    string
	account domain.Account
	want    LoginDecision
} {
	return []struct {
		name    string
		account domain.Account
		want    LoginDecision
	}{
		{"pending", domain.Account{Status: domain.VerificationPending}, LoginDecision{}},
		{"approved", domain.Account{Status: domain.VerificationApproved}, LoginDecision{}},
		{"approved with mfa", domain.Account{Status: domain.VerificationApproved, MFAEnabled: true}, LoginDecision{MFARequired: true}},
		{"rejected", domain.Account{Status: domain.VerificationRejected}, LoginDecision{Locked: true}},
		{"rejected with mfa", domain.Account{Status: domain.VerificationRejected, MFAEnabled: true}, LoginDecision{Locked: true, MFARequired: true}},
	}
}

func TestStaticEvaluator(t *testing.T) {
	for _, tt := range decisionMatrix() {
		got, err := StaticEvaluator{}.EvaluateLogin(context.Background(), &tt.account)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestOPAEvaluator_DefaultPolicyMatchesStatic(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, "", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	for _, tt := range decisionMatrix() {
		got, err := e.EvaluateLogin(ctx, &tt.account)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	// Require MFA for everyone still pending verification.
	src := `package wallet.login

default locked = false
default mfa_required = false

locked if {
	input.account.verification_status == "rejected"
}

mfa_required if {
	input.account.mfa_enabled
}

mfa_required if {
	input.account.verification_status == "pending"
}
`
	e, err := NewOPAEvaluator(ctx, src, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	got, _ := e.EvaluateLogin(ctx, &domain.Account{Status: domain.VerificationPending})
	if !got.MFARequired || got.Locked {
		t.Errorf("pending: got %+v", got)
	}
}

func TestOPAEvaluator_BadResultFallsBack(t *testing.T) {
	ctx := context.Background()
	// Package compiles but does not define the expected rules.
	e, err := NewOPAEvaluator(ctx, "package wallet.login\n\nother := 1\n", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should report the missing rules")
	}
	got, err := e.EvaluateLogin(ctx, &domain.Account{Status: domain.VerificationRejected})
	if err != nil {
		t.Fatalf("EvaluateLogin: %v", err)
	}
	if !got.Locked {
		t.Error("fallback must keep rejected accounts locked")
	}
}

func TestNewOPAEvaluator_CompileError(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package wallet.login\n\nlocked if {", nil); err == nil {
		t.Fatal("want compile error")
	}
}
