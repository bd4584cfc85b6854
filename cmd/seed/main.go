// seed inserts demo wallet accounts for local testing. Run via go run ./cmd/seed after migrating.
// Idempotent: accounts whose phone already exists are skipped.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"virtual-wallet/backend/internal/account/domain"
	accountrepo "virtual-wallet/backend/internal/account/repository"
	"virtual-wallet/backend/internal/config"
	"virtual-wallet/backend/internal/db"
	"virtual-wallet/backend/internal/security"
)

const demoPassword = "Secret123!"

type demoAccount struct {
	phone  string
	name   string
	status domain.VerificationStatus
	mfa    bool
}

var demoAccounts = []demoAccount{
	{phone: "+573001234599", name: "Approved User", status: domain.VerificationApproved},
	{phone: "+573001234598", name: "MFA User", status: domain.VerificationApproved, mfa: true},
	{phone: "+573001234567", name: "Pending User", status: domain.VerificationPending},
	{phone: "+573001234501", name: "Rejected User", status: domain.VerificationRejected},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	repo := accountrepo.NewPostgresRepository(conn)
	var hasher security.PasswordHasher = security.NewHasher(cfg.BcryptCost)
	if cfg.PasswordHasher == "argon2id" {
		hasher = security.NewArgon2Hasher(security.DefaultArgon2Params)
	}
	hash, err := hasher.Hash(demoPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	created := 0
	for _, d := range demoAccounts {
		existing, err := repo.GetByPhone(ctx, d.phone)
		if err != nil {
			log.Fatalf("lookup %s: %v", d.phone, err)
		}
		if existing != nil {
			log.Printf("%s already exists (%s). Skipping.", d.phone, existing.ID)
			continue
		}
		name := d.name
		acc, err := repo.Create(ctx, &domain.Account{
			Phone:        d.phone,
			Name:         &name,
			PasswordHash: hash,
			Status:       d.status,
			MFAEnabled:   d.mfa,
		})
		if errors.Is(err, accountrepo.ErrDuplicatePhone) {
			continue
		}
		if err != nil {
			log.Fatalf("create %s: %v", d.phone, err)
		}
		created++
		log.Printf("created %s status=%s mfa=%t id=%s", acc.Phone, acc.Status, acc.MFAEnabled, acc.ID)
	}

	log.Printf("Seed completed: %d account(s) created.", created)
	fmt.Printf("Demo login: any seeded phone / %s (MFA code %s)\n", demoPassword, cfg.MFAStaticCode)
}
