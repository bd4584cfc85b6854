package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	accountrepo "virtual-wallet/backend/internal/account/repository"
	"virtual-wallet/backend/internal/audit"
	auditrepo "virtual-wallet/backend/internal/audit/repository"
	"virtual-wallet/backend/internal/config"
	"virtual-wallet/backend/internal/db"
	healthhandler "virtual-wallet/backend/internal/health/handler"
	identityhandler "virtual-wallet/backend/internal/identity/handler"
	"virtual-wallet/backend/internal/identity/service"
	"virtual-wallet/backend/internal/kyc"
	"virtual-wallet/backend/internal/logging"
	"virtual-wallet/backend/internal/mfa"
	"virtual-wallet/backend/internal/policy/engine"
	"virtual-wallet/backend/internal/security"
	"virtual-wallet/backend/internal/server"
	"virtual-wallet/backend/internal/server/middleware"
	telemetryotel "virtual-wallet/backend/internal/telemetry/otel"
)

const (
	auditBufferSize    = 1024
	healthSyncInterval = 10 * time.Second
	janitorInterval    = time.Minute
	ipLimiterMaxIdle   = 10 * time.Minute
	shutdownTimeout    = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, Service: cfg.AppName})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:         cfg.OTelEndpoint,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Env,
		Insecure:         cfg.OTelInsecure,
		TraceSampleRatio: cfg.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer shutdownWith(logger, "otel", providers.Shutdown)

	var conn *sqlx.DB
	var accounts service.AccountRepo = accountrepo.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
		if err != nil {
			return err
		}
		defer conn.Close()
		accounts = accountrepo.NewPostgresRepository(conn)
		logger.Info("using postgres account directory")
	} else {
		logger.Warn("DATABASE_URL not set; accounts are kept in memory")
	}

	keys, err := loadKeys(cfg, logger)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenProvider(keys.Private, keys.Public, cfg.JWTIssuer, cfg.JWTAudience, security.TokenTTLs{
		Access:  cfg.AccessTTL(),
		Refresh: cfg.RefreshTTL(),
		Temp:    cfg.TempTTL(),
	})
	if err != nil {
		return err
	}

	var hasher security.PasswordHasher = security.NewHasher(cfg.BcryptCost)
	if cfg.PasswordHasher == "argon2id" {
		hasher = security.NewArgon2Hasher(security.DefaultArgon2Params)
	}

	var limiter mfa.AttemptLimiter
	switch cfg.LimiterBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		limiter = mfa.NewRedisLimiter(rdb, cfg.MFAMaxAttempts, cfg.AttemptWindow())
	default:
		mem := mfa.NewMemoryLimiter(cfg.MFAMaxAttempts, cfg.AttemptWindow())
		go mem.RunJanitor(ctx, janitorInterval)
		limiter = mem
	}

	var verifier kyc.Verifier = kyc.SuffixVerifier{}
	if cfg.KYCProviderURL != "" {
		verifier = kyc.NewHTTPVerifier(cfg.KYCProviderURL, cfg.KYCAPIKey, cfg.KYCRequestTimeout())
	}

	var policy engine.Evaluator = engine.StaticEvaluator{}
	var policyCheck healthhandler.PolicyChecker
	if cfg.PolicyEngine == "opa" {
		opa, err := engine.NewOPAEvaluator(ctx, engine.DefaultLoginPolicy, logger)
		if err != nil {
			return err
		}
		policy, policyCheck = opa, opa
	}

	sinks := []audit.Sink{audit.NewZapSink(logger)}
	if conn != nil && cfg.AuditPersist {
		repoSink := audit.NewAsyncSink("postgres", audit.NewRepositorySink(auditrepo.NewPostgresRepository(conn)), auditBufferSize, logger)
		defer repoSink.Close()
		sinks = append(sinks, repoSink)
	}
	if k := audit.NewKafkaSink(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic); k != nil {
		kafkaSink := audit.NewAsyncSink("kafka", k, auditBufferSize, logger)
		// Drain the buffer before closing the writer.
		defer func() { _ = k.Close() }()
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	otelSink, err := telemetryotel.NewAuditSink(providers.LoggerProvider, providers.MeterProvider)
	if err != nil {
		return err
	}
	sinks = append(sinks, otelSink)
	recorder := audit.NewLogger(logger, middleware.ClientIP, sinks...)

	authSvc := service.NewAuthService(accounts, verifier, hasher, tokens, limiter,
		mfa.NewStaticCodeChecker(cfg.MFAStaticCode), policy, recorder, logger)
	profileSvc := service.NewProfileService(accounts, recorder, logger)

	var pinger healthhandler.Pinger
	if conn != nil {
		pinger = conn
	}
	healthH := healthhandler.NewHandler(pinger, policyCheck, cfg.AppName, cfg.AppVersion)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var authLimiter *middleware.IPRateLimiter
	if cfg.AuthRateLimitRPS > 0 {
		authLimiter = middleware.NewIPRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
		go authLimiter.RunCleanup(ctx, janitorInterval, ipLimiterMaxIdle)
	}
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	if cfg.KYCCallbackSecret == "" {
		logger.Info("KYC_CALLBACK_SECRET not set; /kyc/callback is disabled")
	}

	router := server.NewRouter(server.RouterDeps{
		APIPrefix:      cfg.APIPrefix,
		Auth:           identityhandler.NewAuthHandler(authSvc, logger),
		Profile:        identityhandler.NewProfileHandler(profileSvc, cfg.KYCCallbackSecret, logger),
		Health:         healthH,
		Tokens:         tokens,
		Logger:         logger,
		Metrics:        middleware.NewMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		TracerProvider: providers.TracerProvider,
		AuthLimiter:    authLimiter,
		TrustedProxies: trusted,
		CORSOrigins:    cfg.CORSOrigins(),
		RequestTimeout: cfg.HTTPRequestTimeout(),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("prefix", cfg.APIPrefix))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	hs := health.NewServer()
	grpcSrv := server.NewGRPCServer(hs, !cfg.IsProduction())
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go healthH.SyncGRPC(ctx, hs, healthSyncInterval)
		go func() {
			logger.Info("grpc health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	runErr := awaitStop(ctx, errCh, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hs.Shutdown()
	grpcSrv.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return runErr
}

// awaitStop blocks until ctx is cancelled or a listener fails, and returns the listener error.
func awaitStop(ctx context.Context, errCh <-chan error, logger *zap.Logger) error {
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		return err
	}
}

func loadKeys(cfg *config.Config, logger *zap.Logger) (*security.KeyPair, error) {
	if cfg.JWTPrivateKey != "" {
		return security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	}
	logger.Warn("JWT keys not configured; generated an ephemeral RSA key pair, tokens will not survive a restart")
	return security.GenerateKeyPair()
}

func shutdownWith(logger *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown", zap.String("component", name), zap.Error(err))
	}
}
