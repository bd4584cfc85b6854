package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"virtual-wallet/backend/internal/account/domain"
	accountrepo "virtual-wallet/backend/internal/account/repository"
	"virtual-wallet/backend/internal/audit"
	"virtual-wallet/backend/internal/kyc"
	"virtual-wallet/backend/internal/mfa"
	"virtual-wallet/backend/internal/policy/engine"
)

var errDirectoryDown = errors.New("directory unavailable")

// brokenRepo fails the lookups named by its flags.
type brokenRepo struct {
	*accountrepo.MemoryRepository
	phoneLookup bool
	idLookup    bool
	create      bool
}

func (r *brokenRepo) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	if r.phoneLookup {
		return nil, errDirectoryDown
	}
	return r.MemoryRepository.GetByPhone(ctx, phone)
}

func (r *brokenRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if r.idLookup {
		return nil, errDirectoryDown
	}
	return r.MemoryRepository.GetByID(ctx, id)
}

func (r *brokenRepo) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	if r.create {
		return nil, errDirectoryDown
	}
	return r.MemoryRepository.Create(ctx, a)
}

type policyFunc func(ctx context.Context, a *domain.Account) (engine.LoginDecision, error)

func (f policyFunc) EvaluateLogin(ctx context.Context, a *domain.Account) (engine.LoginDecision, error) {
	return f(ctx, a)
}

// downLimiter behaves like a shared limiter whose backend is unreachable.
type downLimiter struct{}

func (downLimiter) CheckAndIncrement(context.Context, string) (int, error) {
	return 0, fmt.Errorf("%w: connection refused", mfa.ErrLimiterUnavailable)
}

func (downLimiter) Clear(context.Context, string) error { return nil }

func (f *authFixture) withDeps(repo AccountRepo, verifier kyc.Verifier, limiter mfa.AttemptLimiter, policy engine.Evaluator) *AuthService {
	if verifier == nil {
		verifier = kyc.SuffixVerifier{}
	}
	if limiter == nil {
		limiter = f.limiter
	}
	return NewAuthService(repo, verifier, f.hasher, f.tokens, limiter, mfa.NewStaticCodeChecker("123456"), policy, f.events, nil)
}

func assertInternalEvent(t *testing.T, f *authFixture, err error, wantName string) {
	t.Helper()
	if err == nil {
		t.Fatal("want error")
	}
	e := f.events.last()
	if e.Name != wantName || e.Reason != reasonInternal {
		t.Errorf("audit = %+v, want %s/%s", e, wantName, reasonInternal)
	}
}

func TestLogin_InfrastructureFailuresAreAudited(t *testing.T) {
	t.Run("phone lookup", func(t *testing.T) {
		f := newAuthFixture(t)
		svc := f.withDeps(&brokenRepo{MemoryRepository: f.repo, phoneLookup: true}, nil, nil, nil)
		_, err := svc.Login(context.Background(), "+573001234599", testPassword)
		if !errors.Is(err, errDirectoryDown) {
			t.Fatalf("err = %v, want wrapped directory error", err)
		}
		assertInternalEvent(t, f, err, audit.EventLoginFailed)
		if f.events.last().Phone != "+573001234599" {
			t.Errorf("phone = %q", f.events.last().Phone)
		}
	})
	t.Run("policy evaluation", func(t *testing.T) {
		f := newAuthFixture(t)
		acc := f.seed(t, "+573001234599", domain.VerificationApproved, false)
		boom := errors.New("policy bundle missing")
		svc := f.withDeps(f.repo, nil, nil, policyFunc(func(context.Context, *domain.Account) (engine.LoginDecision, error) {
			return engine.LoginDecision{}, boom
		}))
		_, err := svc.Login(context.Background(), acc.Phone, testPassword)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped policy error", err)
		}
		assertInternalEvent(t, f, err, audit.EventLoginFailed)
		if f.events.last().AccountID != acc.ID {
			t.Errorf("account id = %q, want %q", f.events.last().AccountID, acc.ID)
		}
	})
}

func TestVerifyMFA_InfrastructureFailuresAreAudited(t *testing.T) {
	t.Run("limiter unavailable", func(t *testing.T) {
		f := newAuthFixture(t)
		acc := f.seed(t, "+573001234599", domain.VerificationApproved, true)
		temp, _, err := f.tokens.IssueTemp(acc.ID)
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.withDeps(f.repo, nil, downLimiter{}, nil).VerifyMFA(context.Background(), temp, "123456")
		if !errors.Is(err, mfa.ErrLimiterUnavailable) {
			t.Fatalf("err = %v, want ErrLimiterUnavailable", err)
		}
		assertInternalEvent(t, f, err, audit.EventMFAVerifyFailed)
	})
	t.Run("account lookup", func(t *testing.T) {
		f := newAuthFixture(t)
		acc := f.seed(t, "+573001234599", domain.VerificationApproved, true)
		temp, _, err := f.tokens.IssueTemp(acc.ID)
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.withDeps(&brokenRepo{MemoryRepository: f.repo, idLookup: true}, nil, nil, nil).VerifyMFA(context.Background(), temp, "123456")
		if !errors.Is(err, errDirectoryDown) {
			t.Fatalf("err = %v, want wrapped directory error", err)
		}
		assertInternalEvent(t, f, err, audit.EventMFAVerifyFailed)
		if f.events.last().AccountID != acc.ID {
			t.Errorf("account id = %q", f.events.last().AccountID)
		}
	})
}

func TestRegister_InfrastructureFailuresAreAudited(t *testing.T) {
	tests := []struct {
		name     string
		repo     func(*accountrepo.MemoryRepository) AccountRepo
		verifier kyc.Verifier
	}{
		{"phone lookup", func(m *accountrepo.MemoryRepository) AccountRepo {
			return &brokenRepo{MemoryRepository: m, phoneLookup: true}
		}, nil},
		{"create", func(m *accountrepo.MemoryRepository) AccountRepo {
			return &brokenRepo{MemoryRepository: m, create: true}
		}, nil},
		{"verifier", func(m *accountrepo.MemoryRepository) AccountRepo { return m },
			verifierFunc(func(context.Context, string) (domain.VerificationStatus, error) {
				return "", errors.New("provider down")
			})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			_, err := f.withDeps(tt.repo(f.repo), tt.verifier, nil, nil).Register(context.Background(),
				RegisterInput{Phone: "+573001234567", Password: testPassword})
			assertInternalEvent(t, f, err, audit.EventRegisterFailed)
		})
	}
}
