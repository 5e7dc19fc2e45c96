package ports

import (
	"context"
	"time"

	"github.com/policynav/accounts/internal/core/domain"
)

// SessionStore persists sessions for the lifetime of a client connection.
type SessionStore interface {
	// Save writes sess, expiring it at sess.ExpiresAt.
	Save(ctx context.Context, sess *domain.Session) error
	// Get returns domain.ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// RecoveryLockout blocks recovery for an email after repeated code failures.
type RecoveryLockout interface {
	Lock(ctx context.Context, email string, ttl time.Duration) error
	IsLocked(ctx context.Context, email string) (bool, error)
}
