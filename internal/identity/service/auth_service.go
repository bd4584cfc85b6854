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
	"virtual-wallet/backend/internal/kyc"
	"virtual-wallet/backend/internal/mfa"
	"virtual-wallet/backend/internal/policy/engine"
	"virtual-wallet/backend/internal/security"
)

// Audit reasons.
const (
	reasonValidation       = "validation_error"
	reasonMalformedPhone   = "malformed_phone"
	reasonDuplicatePhone   = "duplicate_phone"
	reasonRejected         = "verification_rejected"
	reasonInvalidFormat    = "invalid_password_format"
	reasonUserNotFound     = "user_not_found"
	reasonAccountLocked    = "account_locked"
	reasonWrongPassword    = "wrong_password"
	reasonTempTokenExpired = "temp_token_expired"
	reasonTooManyAttempts  = "too_many_attempts"
	reasonInvalidCode      = "invalid_code"
	reasonAccountNotFound  = "account_not_found"
	// reasonInternal marks a failure of a dependency (directory, policy, limiter, tokens) rather than of the caller.
	reasonInternal = "internal_error"
)

// TokenTypeBearer is the token_type reported with every token pair.
const TokenTypeBearer = "Bearer"

// AccountRepo is the minimal account directory needed by the services.
type AccountRepo interface {
	Create(ctx context.Context, a *domain.Account) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, a *domain.Account) (*domain.Account, error)
}

// RegisterInput is the registration request. Email and Name are optional.
type RegisterInput struct {
	Phone    string
	Password string
	Email    *string
	Name     *string
}

// TokenPair is issued on a completed login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int
}

// LoginResult is either a token pair or, when MFARequired, a temp token for VerifyMFA.
type LoginResult struct {
	MFARequired bool
	TempToken   string
	Tokens      *TokenPair
}

// AuthService implements registration, password login and MFA verification.
type AuthService struct {
	accounts AccountRepo
	verifier kyc.Verifier
	hasher   security.PasswordHasher
	tokens   *security.TokenProvider
	limiter  mfa.AttemptLimiter
	codes    mfa.CodeChecker
	policy   engine.Evaluator
	audit    audit.Recorder
	log      *zap.Logger
	nowF     func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. A nil policy selects the static evaluator.
func NewAuthService(
	accounts AccountRepo,
	verifier kyc.Verifier,
	hasher security.PasswordHasher,
	tokens *security.TokenProvider,
	limiter mfa.AttemptLimiter,
	codes mfa.CodeChecker,
	policy engine.Evaluator,
	recorder audit.Recorder,
	log *zap.Logger,
) *AuthService {
	if policy == nil {
		policy = engine.StaticEvaluator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		accounts: accounts,
		verifier: verifier,
		hasher:   hasher,
		tokens:   tokens,
		limiter:  limiter,
		codes:    codes,
		policy:   policy,
		audit:    recorder,
		log:      log,
		nowF:     time.Now,
	}
}

// Register validates the input, checks the phone is free, runs identity verification and stores the account.
// A rejected verification persists nothing. Returns the new account id.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := validateRegistration(in); err != nil {
		reason := reasonValidation
		if errors.Is(err, ErrMalformedPhone) {
			reason = reasonMalformedPhone
		}
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reason)
		return "", err
	}
	existing, err := s.accounts.GetByPhone(ctx, in.Phone)
	if err != nil {
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonInternal)
		return "", fmt.Errorf("lookup phone: %w", err)
	}
	if existing != nil {
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonDuplicatePhone)
		return "", ErrDuplicatePhone
	}
	status, err := s.verifier.Verify(ctx, in.Phone)
	if err != nil {
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonInternal)
		return "", fmt.Errorf("identity verification: %w", err)
	}
	if status == domain.VerificationRejected {
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonRejected)
		return "", ErrVerificationRejected
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonInternal)
		return "", fmt.Errorf("hash password: %w", err)
	}
	created, err := s.accounts.Create(ctx, &domain.Account{
		Phone:        in.Phone,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Status:       status,
		MFAEnabled:   false,
		CreatedAt:    s.nowF().UTC(),
	})
	if err != nil {
		if errors.Is(err, accountrepo.ErrDuplicatePhone) {
			s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonDuplicatePhone)
			return "", ErrDuplicatePhone
		}
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonInternal)
		return "", fmt.Errorf("create account: %w", err)
	}
	if created == nil || created.ID == "" {
		s.log.Error("account created without id", zap.String("phone", in.Phone))
		s.record(ctx, audit.EventRegisterFailed, "", in.Phone, reasonInternal)
		return "", ErrAccountIDMissing
	}
	s.record(ctx, audit.EventRegisterSuccess, created.ID, created.Phone, string(status))
	return created.ID, nil
}

func validateRegistration(in RegisterInput) error {
	if err := domain.ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := domain.ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := domain.ValidateName(in.Name); err != nil {
		return err
	}
	return domain.ValidatePhone(in.Phone)
}

// Login checks the password and either issues tokens or, for MFA accounts, a temp token.
// The lock check runs before the password is compared.
func (s *AuthService) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	if err := domain.ValidateLoginPassword(password); err != nil {
		s.record(ctx, audit.EventLoginFailed, "", phone, reasonInvalidFormat)
		return nil, ErrInvalidCredentials
	}
	acc, err := s.accounts.GetByPhone(ctx, phone)
	if err != nil {
		s.record(ctx, audit.EventLoginFailed, "", phone, reasonInternal)
		return nil, fmt.Errorf("lookup phone: %w", err)
	}
	if acc == nil {
		s.record(ctx, audit.EventLoginFailed, "", phone, reasonUserNotFound)
		return nil, ErrUserNotFound
	}
	decision, err := s.policy.EvaluateLogin(ctx, acc)
	if err != nil {
		s.record(ctx, audit.EventLoginFailed, acc.ID, phone, reasonInternal)
		return nil, fmt.Errorf("login policy: %w", err)
	}
	if decision.Locked {
		s.record(ctx, audit.EventLoginFailed, acc.ID, phone, reasonAccountLocked)
		return nil, ErrAccountLocked
	}
	if !s.hasher.Verify(password, acc.PasswordHash) {
		s.record(ctx, audit.EventLoginFailed, acc.ID, phone, reasonWrongPassword)
		return nil, ErrInvalidCredentials
	}
	if decision.MFARequired {
		temp, _, err := s.tokens.IssueTemp(acc.ID)
		if err != nil {
			s.record(ctx, audit.EventLoginFailed, acc.ID, phone, reasonInternal)
			return nil, fmt.Errorf("issue temp token: %w", err)
		}
		s.record(ctx, audit.EventLoginMFAPending, acc.ID, phone, "")
		return &LoginResult{MFARequired: true, TempToken: temp}, nil
	}
	pair, err := s.issuePair(acc)
	if err != nil {
		s.record(ctx, audit.EventLoginFailed, acc.ID, phone, reasonInternal)
		return nil, err
	}
	s.record(ctx, audit.EventLoginSuccess, acc.ID, phone, "")
	return &LoginResult{Tokens: pair}, nil
}

// VerifyMFA completes an MFA login. Each call consumes one attempt from the account's window.
func (s *AuthService) VerifyMFA(ctx context.Context, tempToken, code string) (*TokenPair, error) {
	claims, err := s.tokens.Decode(tempToken)
	if err == nil {
		err = claims.Require(security.KindTemp)
	}
	if err != nil {
		s.record(ctx, audit.EventMFAVerifyFailed, "", "", reasonTempTokenExpired)
		return nil, ErrTempTokenExpired
	}
	accountID := claims.Subject

	remaining, err := s.limiter.CheckAndIncrement(ctx, accountID)
	if err != nil {
		if errors.Is(err, mfa.ErrTooManyAttempts) {
			s.record(ctx, audit.EventMFAVerifyFailed, accountID, "", reasonTooManyAttempts)
			return nil, ErrTooManyAttempts
		}
		s.record(ctx, audit.EventMFAVerifyFailed, accountID, "", reasonInternal)
		return nil, fmt.Errorf("mfa limiter: %w", err)
	}
	if !s.codes.Check(ctx, accountID, code) {
		s.record(ctx, audit.EventMFAVerifyFailed, accountID, "", reasonInvalidCode)
		return nil, &InvalidMFACodeError{AttemptsRemaining: remaining}
	}
	if err := s.limiter.Clear(ctx, accountID); err != nil {
		s.log.Warn("mfa limiter clear failed", zap.String("user_id", accountID), zap.Error(err))
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		s.record(ctx, audit.EventMFAVerifyFailed, accountID, "", reasonInternal)
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acc == nil {
		s.record(ctx, audit.EventMFAVerifyFailed, accountID, "", reasonAccountNotFound)
		return nil, ErrTempTokenExpired
	}
	pair, err := s.issuePair(acc)
	if err != nil {
		s.record(ctx, audit.EventMFAVerifyFailed, acc.ID, acc.Phone, reasonInternal)
		return nil, err
	}
	s.record(ctx, audit.EventMFAVerifySuccess, acc.ID, acc.Phone, "")
	return pair, nil
}

func (s *AuthService) issuePair(acc *domain.Account) (*TokenPair, error) {
	access, _, err := s.tokens.IssueAccess(acc.ID, acc.Phone)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefresh(acc.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(s.tokens.AccessTTL() / time.Second),
	}, nil
}

func (s *AuthService) record(ctx context.Context, name, accountID, phone, reason string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Event{Name: name, AccountID: accountID, Phone: phone, Reason: reason})
}
