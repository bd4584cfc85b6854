package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"virtual-wallet/backend/internal/account/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

const accountColumns = `id, phone, email, name, password_hash, verification_status, mfa_enabled, created_at`

type accountRow struct {
	ID                 string         `db:"id"`
	Phone              string         `db:"phone"`
	Email              sql.NullString `db:"email"`
	Name               sql.NullString `db:"name"`
	PasswordHash       string         `db:"password_hash"`
	VerificationStatus string         `db:"verification_status"`
	MFAEnabled         bool           `db:"mfa_enabled"`
	CreatedAt          time.Time      `db:"created_at"`
}

// PostgresRepository persists accounts in the accounts table. IDs are assigned by the column default.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an account repository backed by db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the account. A phone conflict on the unique index returns ErrDuplicatePhone.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := rowFromDomain(a)
	row.CreatedAt = createdAt
	rows, err := r.db.NamedQueryContext(ctx, `
		INSERT INTO accounts (phone, email, name, password_hash, verification_status, mfa_enabled, created_at)
		VALUES (:phone, :email, :name, :password_hash, :verification_status, :mfa_enabled, :created_at)
		RETURNING `+accountColumns, row)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapError(err)
		}
		return nil, sql.ErrNoRows
	}
	var out accountRow
	if err := rows.StructScan(&out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

// GetByPhone returns the account with phone, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE phone = $1`, phone)
}

// GetByID returns the account for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// Update writes the mutable columns. Phone and created_at never change.
func (r *PostgresRepository) Update(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	var row accountRow
	err := r.db.GetContext(ctx, &row, `
		UPDATE accounts
		SET email = $2, name = $3, password_hash = $4, verification_status = $5, mfa_enabled = $6
		WHERE id = $1
		RETURNING `+accountColumns,
		a.ID, nullString(a.Email), nullString(a.Name), a.PasswordHash, string(a.Status), a.MFAEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// Delete removes the account and reports whether a row existed.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicatePhone
	}
	return err
}

func rowFromDomain(a *domain.Account) accountRow {
	return accountRow{
		ID:                 a.ID,
		Phone:              a.Phone,
		Email:              nullString(a.Email),
		Name:               nullString(a.Name),
		PasswordHash:       a.PasswordHash,
		VerificationStatus: string(a.Status),
		MFAEnabled:         a.MFAEnabled,
		CreatedAt:          a.CreatedAt,
	}
}

func (row *accountRow) toDomain() *domain.Account {
	a := &domain.Account{
		ID:           row.ID,
		Phone:        row.Phone,
		PasswordHash: row.PasswordHash,
		Status:       domain.VerificationStatus(row.VerificationStatus),
		MFAEnabled:   row.MFAEnabled,
		CreatedAt:    row.CreatedAt.UTC(),
	}
	if row.Email.Valid {
		v := row.Email.String
		a.Email = &v
	}
	if row.Name.Valid {
		v := row.Name.String
		a.Name = &v
	}
	return a
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
