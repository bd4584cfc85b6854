package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"virtual-wallet/backend/internal/audit/domain"
)

type auditRow struct {
	ID        string         `db:"id"`
	Event     string         `db:"event"`
	AccountID sql.NullString `db:"account_id"`
	Phone     sql.NullString `db:"phone"`
	Reason    sql.NullString `db:"reason"`
	IP        string         `db:"ip"`
	CreatedAt time.Time      `db:"created_at"`
}

// PostgresRepository stores audit logs in the audit_logs table.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an audit repository backed by db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a; an entry whose id already exists is ignored so redelivered events are harmless.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, event, account_id, phone, reason, ip, created_at)
		VALUES (:id, :event, :account_id, :phone, :reason, :ip, :created_at)
		ON CONFLICT (id) DO NOTHING`,
		auditRow{
			ID:        a.ID,
			Event:     a.Event,
			AccountID: optional(a.AccountID),
			Phone:     optional(a.Phone),
			Reason:    optional(a.Reason),
			IP:        a.IP,
			CreatedAt: a.CreatedAt,
		})
	return err
}

// ListByAccount returns the newest entries for accountID first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []auditRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, event, account_id, phone, reason, ip, created_at
		FROM audit_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.AuditLog{
			ID:        row.ID,
			Event:     row.Event,
			AccountID: row.AccountID.String,
			Phone:     row.Phone.String,
			Reason:    row.Reason.String,
			IP:        row.IP,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func optional(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
