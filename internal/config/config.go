// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	"virtual-wallet/backend/internal/mfa"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// AppName and AppVersion are reported by the health endpoint.
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// APIPrefix is the route prefix for the JSON API.
	APIPrefix string `mapstructure:"API_PREFIX"`

	// DatabaseURL is the Postgres DSN; empty selects the in-memory account directory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (default "30m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (default "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTTempTTL is the lifetime of the intermediate token issued while MFA is pending (default "5m").
	JWTTempTTL string `mapstructure:"JWT_TEMP_TTL"`

	// PasswordHasher selects the credential hasher: "bcrypt" or "argon2id".
	PasswordHasher string `mapstructure:"PASSWORD_HASHER"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// MFAMaxAttempts is the number of code attempts allowed per window.
	MFAMaxAttempts int `mapstructure:"MFA_MAX_ATTEMPTS"`
	// MFAAttemptWindow is the absolute window measured from the first attempt (default "5m").
	MFAAttemptWindow string `mapstructure:"MFA_ATTEMPT_WINDOW"`
	// MFAStaticCode is the accepted second-factor code until a real factor is wired.
	MFAStaticCode string `mapstructure:"MFA_STATIC_CODE"`
	// LimiterBackend selects where attempt records live: "memory" or "redis".
	LimiterBackend string `mapstructure:"LIMITER_BACKEND"`
	// RedisAddr, RedisPassword and RedisDB configure the redis limiter.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// KYCProviderURL is the identity-verification endpoint; empty uses the phone-suffix verifier.
	KYCProviderURL string `mapstructure:"KYC_PROVIDER_URL"`
	// KYCAPIKey is sent as a bearer credential to the verification provider.
	KYCAPIKey string `mapstructure:"KYC_API_KEY"`
	// KYCTimeout bounds a single verification call (default "5s").
	KYCTimeout string `mapstructure:"KYC_TIMEOUT"`
	// KYCCallbackSecret authenticates POST /kyc/callback; empty disables the callback route.
	KYCCallbackSecret string `mapstructure:"KYC_CALLBACK_SECRET"`

	// PolicyEngine selects the login policy evaluator: "static" or "opa".
	PolicyEngine string `mapstructure:"POLICY_ENGINE"`

	// AuditKafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables the Kafka audit sink.
	AuditKafkaBrokers string `mapstructure:"AUDIT_KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// AuditKafkaGroupID is the consumer group of the audit ingest worker.
	AuditKafkaGroupID string `mapstructure:"AUDIT_KAFKA_GROUP_ID"`
	// AuditPersist stores audit events in Postgres when DATABASE_URL is set.
	AuditPersist bool `mapstructure:"AUDIT_PERSIST"`

	// OTelEndpoint is the OTLP gRPC collector address; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure disables TLS to the collector.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelSampleRatio is the fraction of root spans sampled; 1 keeps every trace.
	OTelSampleRatio float64 `mapstructure:"OTEL_TRACES_SAMPLER_RATIO"`

	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogDev switches to the human-readable development encoder.
	LogDev bool `mapstructure:"LOG_DEV"`

	// RequestTimeout bounds each HTTP request (default "10s").
	RequestTimeout string `mapstructure:"REQUEST_TIMEOUT"`
	// AuthRateLimitRPS and AuthRateLimitBurst throttle /auth routes per client IP; RPS 0 disables it.
	AuthRateLimitRPS   float64 `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateLimitBurst int     `mapstructure:"AUTH_RATE_LIMIT_BURST"`
	// CORSAllowedOrigins is a comma-separated origin list.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// TrustedProxies is a comma-separated list of IPs or CIDRs whose forwarding headers are believed.
	// Empty means the client IP is always the TCP peer.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_NAME", "Billetera Virtual")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "wallet-auth")
	v.SetDefault("JWT_AUDIENCE", "wallet-api")
	v.SetDefault("JWT_ACCESS_TTL", "30m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("JWT_TEMP_TTL", "5m")
	v.SetDefault("PASSWORD_HASHER", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MFA_MAX_ATTEMPTS", 3)
	v.SetDefault("MFA_ATTEMPT_WINDOW", "5m")
	v.SetDefault("MFA_STATIC_CODE", "123456")
	v.SetDefault("LIMITER_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KYC_PROVIDER_URL", "")
	v.SetDefault("KYC_API_KEY", "")
	v.SetDefault("KYC_TIMEOUT", "5s")
	v.SetDefault("KYC_CALLBACK_SECRET", "")
	v.SetDefault("POLICY_ENGINE", "static")
	v.SetDefault("AUDIT_KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "wallet-auth-audit")
	v.SetDefault("AUDIT_KAFKA_GROUP_ID", "wallet-audit-ingest")
	v.SetDefault("AUDIT_PERSIST", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_TRACES_SAMPLER_RATIO", 1.0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 5)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 10)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TRUSTED_PROXIES", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return errors.New("config: PASSWORD_HASHER must be bcrypt or argon2id")
	}
	switch c.LimiterBackend {
	case "memory", "redis":
	default:
		return errors.New("config: LIMITER_BACKEND must be memory or redis")
	}
	if c.LimiterBackend == "redis" && c.RedisAddr == "" {
		return errors.New("config: REDIS_ADDR must be set when LIMITER_BACKEND=redis")
	}
	switch c.PolicyEngine {
	case "static", "opa":
	default:
		return errors.New("config: POLICY_ENGINE must be static or opa")
	}
	if c.MFAMaxAttempts <= 0 {
		return errors.New("config: MFA_MAX_ATTEMPTS must be positive")
	}
	if !mfa.WellFormedCode(c.MFAStaticCode) {
		return fmt.Errorf("config: MFA_STATIC_CODE must be exactly %d digits", mfa.CodeLength)
	}
	if c.OTelSampleRatio <= 0 || c.OTelSampleRatio > 1 {
		return errors.New("config: OTEL_TRACES_SAMPLER_RATIO must be in (0, 1]")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.IsProduction() && (c.JWTPrivateKey == "" || c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}
	if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 30*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// TempTTL parses JWTTempTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) TempTTL() time.Duration {
	return parseDuration(c.JWTTempTTL, 5*time.Minute)
}

// AttemptWindow parses MFAAttemptWindow. Returns 5m if unset or invalid.
func (c *Config) AttemptWindow() time.Duration {
	return parseDuration(c.MFAAttemptWindow, 5*time.Minute)
}

// KYCRequestTimeout parses KYCTimeout. Returns 5s if unset or invalid.
func (c *Config) KYCRequestTimeout() time.Duration {
	return parseDuration(c.KYCTimeout, 5*time.Second)
}

// HTTPRequestTimeout parses RequestTimeout. Returns 10s if unset or invalid.
func (c *Config) HTTPRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 10*time.Second)
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka audit sink.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.AuditKafkaBrokers)
}

// CORSOrigins returns the allowed origins; defaults to "*".
func (c *Config) CORSOrigins() []string {
	out := splitList(c.CORSAllowedOrigins)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, s := range splitList(c.TrustedProxies) {
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q: %w", s, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q: %w", s, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
