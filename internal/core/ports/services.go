package ports

import (
	"context"

	"github.com/policynav/accounts/internal/core/domain"
)

// RegisterInput carries sign-up data from the transport layer.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Question string
	Answer   string
}

// AnswerVerifier checks a security answer against the stored hash.
type AnswerVerifier func(answer string) bool

// RecoveryChallenge is the stored question for an account and a verifier for
// its answer. The hash itself never leaves the credential service.
type RecoveryChallenge struct {
	Question string
	Verify   AnswerVerifier
}

// CredentialService owns account storage, hashing and uniqueness.
type CredentialService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)
	RecoveryChallenge(ctx context.Context, email string) (*RecoveryChallenge, error)
	UpdatePassword(ctx context.Context, email, newPassword string) error
	RecordOTPFailure(ctx context.Context, email string) (int, error)
	ResetOTPAttempts(ctx context.Context, email string) error
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
}

// SessionService manages per-client sessions and login state.
type SessionService interface {
	Open(ctx context.Context) (*domain.Session, string, error)
	Resolve(ctx context.Context, token string) (*domain.Session, error)
	Save(ctx context.Context, sess *domain.Session) error
	Login(ctx context.Context, sess *domain.Session, email, password string) (*domain.Account, error)
	Logout(ctx context.Context, sess *domain.Session) error
}

// RecoveryStatus is what the transport shows for the current wizard page.
type RecoveryStatus struct {
	Step          domain.RecoveryStep
	Method        domain.RecoveryMethod
	Question      string
	CodeExpiresAt *int64 // unix seconds, set while a code is outstanding
}

// RecoveryService drives the password recovery wizard on a session. Every
// method mutates sess in memory only; the caller persists it.
type RecoveryService interface {
	Status(sess *domain.Session) RecoveryStatus
	SubmitEmail(ctx context.Context, sess *domain.Session, email string) (RecoveryStatus, error)
	SubmitCode(ctx context.Context, sess *domain.Session, code string) (RecoveryStatus, error)
	ResendCode(ctx context.Context, sess *domain.Session) (RecoveryStatus, error)
	SubmitAnswer(ctx context.Context, sess *domain.Session, answer string) (RecoveryStatus, error)
	SubmitNewPassword(ctx context.Context, sess *domain.Session, newPassword, confirm string) (RecoveryStatus, error)
	Cancel(sess *domain.Session)
}
