package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, or issued for another audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a well-formed token is past its exp.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongTokenKind is returned when a valid token is presented where another kind is required.
	ErrWrongTokenKind = errors.New("wrong token type")
)

// TokenKind is carried in the "type" claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
	KindTemp    TokenKind = "temp"
)

// Claims is the payload of every token. Phone is set on access tokens; MFAPending on temp tokens.
type Claims struct {
	jwt.RegisteredClaims
	Kind       TokenKind `json:"type"`
	Phone      string    `json:"phone,omitempty"`
	MFAPending bool      `json:"mfa_pending,omitempty"`
}

// Require returns ErrWrongTokenKind unless the claims are of kind k.
func (c *Claims) Require(k TokenKind) error {
	if c.Kind != k {
		return ErrWrongTokenKind
	}
	if k == KindTemp && !c.MFAPending {
		return ErrWrongTokenKind
	}
	return nil
}

// TokenTTLs holds the lifetime of each token kind.
type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Temp    time.Duration
}

// DefaultTokenTTLs are 30 minutes, 7 days and 5 minutes.
var DefaultTokenTTLs = TokenTTLs{Access: 30 * time.Minute, Refresh: 7 * 24 * time.Hour, Temp: 5 * time.Minute}

// TokenProvider issues and decodes JWTs signed with RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   string
	ttls       TokenTTLs
	nowF       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
// issuer and audience are set on every token and checked on Decode.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttls TokenTTLs) (*TokenProvider, error) {
	method, err := signingMethod(privateKey.Public())
	if err != nil {
		return nil, err
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		ttls:       ttls,
		nowF:       time.Now,
	}, nil
}

// WithClock returns a copy of p that reads time from now. Used by tests to move across expiry.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	c := *p
	c.nowF = now
	return &c
}

// AccessTTL is the access token lifetime, reported to clients as expires_in.
func (p *TokenProvider) AccessTTL() time.Duration { return p.ttls.Access }

// IssueAccess issues an access token for accountID carrying phone. Returns the token and its expiry.
func (p *TokenProvider) IssueAccess(accountID, phone string) (string, time.Time, error) {
	return p.issue(Claims{Kind: KindAccess, Phone: phone}, accountID, p.ttls.Access)
}

// IssueRefresh issues a refresh token for accountID.
func (p *TokenProvider) IssueRefresh(accountID string) (string, time.Time, error) {
	return p.issue(Claims{Kind: KindRefresh}, accountID, p.ttls.Refresh)
}

// IssueTemp issues the short-lived token that stands between password login and MFA verification.
func (p *TokenProvider) IssueTemp(accountID string) (string, time.Time, error) {
	return p.issue(Claims{Kind: KindTemp, MFAPending: true}, accountID, p.ttls.Temp)
}

func (p *TokenProvider) issue(claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(p.method, claims).SignedString(p.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Decode verifies signature, algorithm, issuer, audience and expiry, and returns the claims.
// The kind is not checked; callers use Claims.Require.
func (p *TokenProvider) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccess decodes tokenString and requires an access token.
func (p *TokenProvider) ValidateAccess(tokenString string) (*Claims, error) {
	claims, err := p.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if err := claims.Require(KindAccess); err != nil {
		return nil, err
	}
	return claims, nil
}

func signingMethod(pub crypto.PublicKey) (jwt.SigningMethod, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return nil, ErrInvalidKey
		}
		return jwt.SigningMethodES256, nil
	default:
		return nil, ErrInvalidKey
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
