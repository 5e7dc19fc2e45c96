package ports

import (
	"context"
	"time"

	"github.com/policynav/accounts/internal/core/domain"
)

// CodeSender delivers one-time recovery codes out of band. Any error is a
// delivery failure.
type CodeSender interface {
	SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// NoticeSender delivers informational account notices.
type NoticeSender interface {
	SendNotice(ctx context.Context, notice domain.Notice) error
}

// NoticeQueue accepts notices for asynchronous delivery.
type NoticeQueue interface {
	Enqueue(notice domain.Notice)
}
