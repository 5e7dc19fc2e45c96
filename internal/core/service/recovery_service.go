package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
	"github.com/policynav/accounts/internal/core/validation"
)

// Defaults applied when RecoveryOptions leaves a field zero.
const (
	DefaultCodeTTL         = 5 * time.Minute
	DefaultMaxCodeAttempts = 5
	DefaultLockout         = 15 * time.Minute
)

// RecoveryOptions tunes the recovery wizard.
type RecoveryOptions struct {
	Method          domain.RecoveryMethod
	CodeTTL         time.Duration
	MaxCodeAttempts int
	Lockout         time.Duration
	Policy          validation.Policy
}

// RecoveryService walks a session through password recovery:
// email, optional one-time code, security answer, new password.
type RecoveryService struct {
	credentials ports.CredentialService
	sender      ports.CodeSender
	lockout     ports.RecoveryLockout
	notices     ports.NoticeQueue
	opts        RecoveryOptions
	log         zerolog.Logger

	now     func() time.Time
	newCode func() (string, error)
}

// NewRecoveryService wires the wizard. sender and lockout may be nil when
// opts.Method is domain.MethodQuestion; notices may be nil to skip notices.
func NewRecoveryService(
	credentials ports.CredentialService,
	sender ports.CodeSender,
	lockout ports.RecoveryLockout,
	notices ports.NoticeQueue,
	opts RecoveryOptions,
	log zerolog.Logger,
) *RecoveryService {
	if opts.Method == "" {
		opts.Method = domain.MethodQuestion
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultCodeTTL
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if opts.Lockout <= 0 {
		opts.Lockout = DefaultLockout
	}
	return &RecoveryService{
		credentials: credentials,
		sender:      sender,
		lockout:     lockout,
		notices:     notices,
		opts:        opts,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		newCode:     generateRecoveryCode,
	}
}

// Status reports the wizard page for sess. A session with no recovery in
// progress is waiting for an email.
func (s *RecoveryService) Status(sess *domain.Session) ports.RecoveryStatus {
	rec := sess.Recovery
	if rec == nil {
		return ports.RecoveryStatus{Step: domain.StepAwaitingEmail, Method: s.opts.Method}
	}

	st := ports.RecoveryStatus{Step: rec.Step, Method: rec.Method}
	switch rec.Step {
	case domain.StepAwaitingCode:
		exp := rec.CodeExpiresAt.Unix()
		st.CodeExpiresAt = &exp
	case domain.StepAwaitingAnswer, domain.StepAwaitingNewPassword:
		st.Question = rec.Question
	}
	return st
}

// SubmitEmail starts a recovery for email. With the one-time code method a
// code is delivered first; nothing is stored on the session unless delivery
// succeeds.
func (s *RecoveryService) SubmitEmail(ctx context.Context, sess *domain.Session, email string) (ports.RecoveryStatus, error) {
	if sess.Recovery != nil && sess.Recovery.Step != domain.StepAwaitingEmail {
		return s.Status(sess), fmt.Errorf("%w (step %s)", domain.ErrInvalidStep, sess.Recovery.Step)
	}

	email = domain.NormalizeEmail(email)
	if email == "" {
		ve := &domain.ValidationError{}
		ve.Add("email", "email is required")
		return s.Status(sess), ve
	}

	if err := s.checkLock(ctx, email); err != nil {
		return s.Status(sess), err
	}

	challenge, err := s.credentials.RecoveryChallenge(ctx, email)
	if err != nil {
		return s.Status(sess), err
	}

	rec := domain.NewRecoverySession(s.opts.Method, s.now())
	rec.TargetEmail = email
	rec.Question = challenge.Question

	next := domain.StepAwaitingAnswer
	if s.opts.Method == domain.MethodQuestionOTP {
		if err := s.issueCode(ctx, rec); err != nil {
			return s.Status(sess), err
		}
		next = domain.StepAwaitingCode
	}
	if err := rec.Advance(next); err != nil {
		return s.Status(sess), err
	}

	sess.Recovery = rec
	s.log.Info().Str("session_id", sess.ID).Str("step", string(rec.Step)).Msg("recovery started")
	return s.Status(sess), nil
}

// SubmitCode checks a one-time code. Expiry is checked before the value.
func (s *RecoveryService) SubmitCode(ctx context.Context, sess *domain.Session, code string) (ports.RecoveryStatus, error) {
	rec, err := s.requireStep(sess, domain.StepAwaitingCode)
	if err != nil {
		return s.Status(sess), err
	}
	if err := s.checkSessionLock(ctx, sess, rec); err != nil {
		return s.Status(sess), err
	}

	if rec.CodeExpired(s.now()) {
		return s.Status(sess), domain.ErrCodeExpired
	}

	if !codeMatches(code, rec.CodeSalt, rec.CodeHash) {
		return s.codeFailure(ctx, sess, rec)
	}

	rec.MarkCodeVerified()
	if err := s.credentials.ResetOTPAttempts(ctx, rec.TargetEmail); err != nil {
		return s.Status(sess), err
	}
	if err := rec.Advance(domain.StepAwaitingAnswer); err != nil {
		return s.Status(sess), err
	}
	return s.Status(sess), nil
}

// ResendCode issues a fresh code with a new expiry. Failed attempts are kept.
func (s *RecoveryService) ResendCode(ctx context.Context, sess *domain.Session) (ports.RecoveryStatus, error) {
	rec, err := s.requireStep(sess, domain.StepAwaitingCode)
	if err != nil {
		return s.Status(sess), err
	}
	if err := s.checkSessionLock(ctx, sess, rec); err != nil {
		return s.Status(sess), err
	}
	if err := s.issueCode(ctx, rec); err != nil {
		return s.Status(sess), err
	}
	s.log.Info().Str("session_id", sess.ID).Msg("recovery code reissued")
	return s.Status(sess), nil
}

// SubmitAnswer compares answer case-insensitively with the stored one.
// A wrong answer leaves the step unchanged.
func (s *RecoveryService) SubmitAnswer(ctx context.Context, sess *domain.Session, answer string) (ports.RecoveryStatus, error) {
	rec, err := s.requireStep(sess, domain.StepAwaitingAnswer)
	if err != nil {
		return s.Status(sess), err
	}

	challenge, err := s.credentials.RecoveryChallenge(ctx, rec.TargetEmail)
	if err != nil {
		return s.Status(sess), err
	}
	if !challenge.Verify(answer) {
		s.log.Info().Str("session_id", sess.ID).Msg("recovery answer rejected")
		return s.Status(sess), domain.ErrWrongAnswer
	}

	if err := rec.Advance(domain.StepAwaitingNewPassword); err != nil {
		return s.Status(sess), err
	}
	return s.Status(sess), nil
}

// SubmitNewPassword sets the new password and finishes the recovery.
func (s *RecoveryService) SubmitNewPassword(ctx context.Context, sess *domain.Session, newPassword, confirm string) (ports.RecoveryStatus, error) {
	rec, err := s.requireStep(sess, domain.StepAwaitingNewPassword)
	if err != nil {
		return s.Status(sess), err
	}

	if newPassword != confirm {
		return s.Status(sess), domain.ErrPasswordMismatch
	}
	if !s.opts.Policy.IsStrongPassword(newPassword) {
		return s.Status(sess), fmt.Errorf("%w: %s", domain.ErrWeakPassword, s.opts.Policy.PasswordRule())
	}

	if err := s.credentials.UpdatePassword(ctx, rec.TargetEmail, newPassword); err != nil {
		return s.Status(sess), err
	}
	if err := rec.Advance(domain.StepDone); err != nil {
		return s.Status(sess), err
	}

	sess.Recovery = nil
	if s.notices != nil {
		s.notices.Enqueue(domain.Notice{
			Kind:  domain.NoticePasswordChanged,
			Email: rec.TargetEmail,
			At:    s.now(),
		})
	}

	s.log.Info().Str("session_id", sess.ID).Msg("recovery completed")
	return ports.RecoveryStatus{Step: domain.StepDone, Method: rec.Method}, nil
}

// Cancel abandons any recovery in progress.
func (s *RecoveryService) Cancel(sess *domain.Session) {
	sess.Recovery = nil
}

func (s *RecoveryService) requireStep(sess *domain.Session, step domain.RecoveryStep) (*domain.RecoverySession, error) {
	rec := sess.Recovery
	if rec == nil {
		return nil, fmt.Errorf("%w (no recovery in progress)", domain.ErrInvalidStep)
	}
	if rec.Step != step {
		return nil, fmt.Errorf("%w (step %s)", domain.ErrInvalidStep, rec.Step)
	}
	return rec, nil
}

// checkLock fails with domain.ErrRecoveryLocked while email is locked out.
// Only the one-time code method is subject to the lockout.
func (s *RecoveryService) checkLock(ctx context.Context, email string) error {
	if s.opts.Method != domain.MethodQuestionOTP || s.lockout == nil {
		return nil
	}
	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		return err
	}
	if locked {
		return domain.ErrRecoveryLocked
	}
	return nil
}

// checkSessionLock applies checkLock to a recovery already waiting for a
// code. A lock placed by another session discards this one too.
func (s *RecoveryService) checkSessionLock(ctx context.Context, sess *domain.Session, rec *domain.RecoverySession) error {
	err := s.checkLock(ctx, rec.TargetEmail)
	if errors.Is(err, domain.ErrRecoveryLocked) {
		sess.Recovery = nil
		s.log.Warn().Str("session_id", sess.ID).Msg("recovery discarded, email locked")
	}
	return err
}

// issueCode delivers a new code and only then records its hash on rec.
func (s *RecoveryService) issueCode(ctx context.Context, rec *domain.RecoverySession) error {
	if s.sender == nil {
		return fmt.Errorf("%w: no code sender configured", domain.ErrDeliveryFailure)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate recovery code: %w", err)
	}
	salt, err := generateCodeSalt()
	if err != nil {
		return fmt.Errorf("generate code salt: %w", err)
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.opts.CodeTTL)
	if err := s.sender.SendRecoveryCode(ctx, rec.TargetEmail, code, expiresAt); err != nil {
		s.log.Warn().Err(err).Msg("recovery code delivery failed")
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)
	}

	rec.CodeHash = hashRecoveryCode(code, salt)
	rec.CodeSalt = salt
	rec.CodeIssuedAt = issuedAt
	rec.CodeExpiresAt = expiresAt
	return nil
}

// codeFailure counts a wrong code on the session and the account. Reaching
// the limit discards the recovery and locks the email.
func (s *RecoveryService) codeFailure(ctx context.Context, sess *domain.Session, rec *domain.RecoverySession) (ports.RecoveryStatus, error) {
	rec.CodeAttempts++

	attempts := rec.CodeAttempts
	persisted, err := s.credentials.RecordOTPFailure(ctx, rec.TargetEmail)
	if err != nil {
		return s.Status(sess), err
	}
	if persisted > attempts {
		attempts = persisted
	}

	if attempts < s.opts.MaxCodeAttempts {
		return s.Status(sess), domain.ErrInvalidCode
	}

	// 1. Abandon the recovery so the code can no longer be guessed.
	sess.Recovery = nil

	// 2. Lock the email; the lockout window replaces the persisted counter.
	if s.lockout != nil {
		if err := s.lockout.Lock(ctx, rec.TargetEmail, s.opts.Lockout); err != nil {
			s.log.Error().Err(err).Msg("failed to lock recovery")
		}
	}
	if err := s.credentials.ResetOTPAttempts(ctx, rec.TargetEmail); err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		s.log.Error().Err(err).Msg("failed to reset otp attempts after lockout")
	}

	s.log.Warn().Str("session_id", sess.ID).Int("attempts", attempts).Msg("recovery locked after repeated code failures")
	return s.Status(sess), domain.ErrTooManyAttempts
}
