package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/policynav/accounts/internal/core/domain"
)

// AccountRepository implements ports.AccountRepository on the users table.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, email, password_hash, security_question,
	security_answer, is_admin, otp_attempts, created_at, updated_at`

func (r *AccountRepository) Create(ctx context.Context, acc *domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		acc.ID, acc.Username, acc.Email, acc.PasswordHash, acc.SecurityQuestion,
		acc.SecurityAnswer, acc.IsAdmin, acc.OTPAttempts, acc.CreatedAt.Unix(), acc.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("failed to insert account: %w", storageErr(err))
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE email = ?`, email)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", storageErr(err))
	}
	return acc, nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, email, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
		hash, at.Unix(), email,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", storageErr(err))
	}
	return requireOneRow(res)
}

func (r *AccountRepository) IncrementOTPAttempts(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET otp_attempts = otp_attempts + 1 WHERE email = ? RETURNING otp_attempts`,
		email,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment otp attempts: %w", storageErr(err))
	}
	return n, nil
}

func (r *AccountRepository) ResetOTPAttempts(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET otp_attempts = 0 WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("failed to reset otp attempts: %w", storageErr(err))
	}
	return requireOneRow(res)
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", storageErr(err))
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", storageErr(err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (*domain.Account, error) {
	var (
		acc                  domain.Account
		createdAt, updatedAt int64
	)
	err := s.Scan(
		&acc.ID, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.SecurityQuestion,
		&acc.SecurityAnswer, &acc.IsAdmin, &acc.OTPAttempts, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	acc.CreatedAt = time.Unix(createdAt, 0).UTC()
	acc.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &acc, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", storageErr(err))
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
