package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/policynav/accounts/internal/core/domain"
)

// RecoveryLockout blocks recovery for an email until its key expires.
// Key format: recovery:lock:<email>
type RecoveryLockout struct {
	client *redis.Client
}

func NewRecoveryLockout(client *redis.Client) *RecoveryLockout {
	return &RecoveryLockout{client: client}
}

func (l *RecoveryLockout) Lock(ctx context.Context, email string, ttl time.Duration) error {
	if err := l.client.Set(ctx, l.key(email), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: lock recovery: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (l *RecoveryLockout) IsLocked(ctx context.Context, email string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: lockout check: %v", domain.ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

func (l *RecoveryLockout) key(email string) string {
	return "recovery:lock:" + email
}
