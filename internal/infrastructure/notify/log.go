package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/core/domain"
)

// LogSender writes messages to the log instead of sending them. Used in
// development and when no mail provider is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "mail").Logger()}
}

func (s *LogSender) SendRecoveryCode(_ context.Context, email, code string, expiresAt time.Time) error {
	s.log.Info().
		Str("to", email).
		Str("code", code).
		Time("expires_at", expiresAt).
		Msg("recovery code (log delivery)")
	return nil
}

func (s *LogSender) SendNotice(_ context.Context, notice domain.Notice) error {
	subject, _ := noticeContent(notice)
	s.log.Info().
		Str("to", notice.Email).
		Str("kind", string(notice.Kind)).
		Msg(subject)
	return nil
}
