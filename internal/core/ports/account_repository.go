package ports

import (
	"context"
	"time"

	"github.com/policynav/accounts/internal/core/domain"
)

// AccountRepository is the only reader and writer of persisted accounts.
// Implementations map driver failures to domain.ErrStorageUnavailable.
type AccountRepository interface {
	// Create inserts acc. Returns domain.ErrAccountExists when the email is taken.
	Create(ctx context.Context, acc *domain.Account) error
	// FindByEmail returns domain.ErrAccountNotFound when no account matches exactly.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// UpdatePasswordHash overwrites the password hash; domain.ErrAccountNotFound if absent.
	UpdatePasswordHash(ctx context.Context, email, hash string, at time.Time) error
	// IncrementOTPAttempts bumps otp_attempts and returns the new value.
	IncrementOTPAttempts(ctx context.Context, email string) (int, error)
	// ResetOTPAttempts sets otp_attempts back to zero.
	ResetOTPAttempts(ctx context.Context, email string) error
	// List returns all accounts ordered by creation time.
	List(ctx context.Context) ([]*domain.Account, error)
}
