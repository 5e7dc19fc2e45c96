// Package notify delivers recovery codes and account notices by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
)

// ResendConfig configures the Resend sender.
type ResendConfig struct {
	APIKey string
	From   string
	// Timeout bounds one send including retries.
	Timeout time.Duration
	// BaseURL overrides the API endpoint; empty uses Resend's.
	BaseURL string
}

// ResendSender sends mail through the Resend REST API.
type ResendSender struct {
	from    string
	timeout time.Duration
	client  *resend.Client
	log     zerolog.Logger
}

func NewResendSender(cfg ResendConfig, log zerolog.Logger) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail from address is required")
	}

	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse resend base url: %w", err)
		}
		client.BaseURL = u
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ResendSender{
		from:    cfg.From,
		timeout: timeout,
		client:  client,
		log:     log.With().Str("component", "resend").Logger(),
	}, nil
}

func (s *ResendSender) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if email == "" || code == "" {
		return fmt.Errorf("email and code are required")
	}
	mins := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if mins < 1 {
		mins = 1
	}

	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email},
		Subject: "Your password reset code",
		Text:    fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, mins),
		Html: fmt.Sprintf("<p>Your password reset code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
			code, mins),
	})
}

func (s *ResendSender) SendNotice(ctx context.Context, notice domain.Notice) error {
	subject, text := noticeContent(notice)
	return s.send(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{notice.Email},
		Subject: subject,
		Text:    text,
	})
}

func (s *ResendSender) send(ctx context.Context, params *resend.SendEmailRequest) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := s.client.Emails.SendWithContext(ctx, params)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := retryDelay(err, attempt); ok && attempt < maxAttempts-1 {
			s.log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("resend send failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

// retryDelay reports how long to wait before retrying err, or false when
// the error is not transient.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}

func noticeContent(n domain.Notice) (subject, text string) {
	switch n.Kind {
	case domain.NoticePasswordChanged:
		return "Your password was changed",
			fmt.Sprintf("The password for %s was changed at %s. If this was not you, reset it again and contact support.",
				n.Email, n.At.UTC().Format(time.RFC1123))
	default:
		return "Account notice", fmt.Sprintf("Account notice %q for %s.", n.Kind, n.Email)
	}
}
