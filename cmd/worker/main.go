// Worker consumes audit events from Kafka and stores them in the audit_logs table.
// Set AUDIT_KAFKA_BROKERS, DATABASE_URL and optionally AUDIT_KAFKA_TOPIC and AUDIT_KAFKA_GROUP_ID.
// Run the API with AUDIT_PERSIST=false when this worker owns persistence.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"virtual-wallet/backend/internal/audit"
	auditrepo "virtual-wallet/backend/internal/audit/repository"
	"virtual-wallet/backend/internal/config"
	"virtual-wallet/backend/internal/db"
	"virtual-wallet/backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, Service: "audit-worker"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.AuditKafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("worker: AUDIT_KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("worker: DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
	if err != nil {
		logger.Fatal("worker: db", zap.Error(err))
	}
	defer conn.Close()

	reader := audit.NewKafkaReader(brokers, cfg.AuditKafkaTopic, cfg.AuditKafkaGroupID)
	defer reader.Close()

	logger.Info("worker: consuming audit events",
		zap.String("topic", cfg.AuditKafkaTopic),
		zap.String("group", cfg.AuditKafkaGroupID))
	audit.NewConsumer(reader, audit.NewRepositorySink(auditrepo.NewPostgresRepository(conn)), logger).Run(ctx)
	logger.Info("worker: stopped")
}
