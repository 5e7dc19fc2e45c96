package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
	"github.com/policynav/accounts/internal/core/validation"
)

// CredentialService implements registration, authentication and the
// credential side of password recovery.
type CredentialService struct {
	repo        ports.AccountRepository
	policy      validation.Policy
	cost        int
	adminEmails map[string]struct{}
	log         zerolog.Logger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// CredentialOptions tunes a CredentialService.
type CredentialOptions struct {
	Policy validation.Policy
	// BcryptCost defaults to bcrypt.DefaultCost when out of range.
	BcryptCost int
	// AdminEmails are registered with IsAdmin set.
	AdminEmails []string
}

func NewCredentialService(repo ports.AccountRepository, opts CredentialOptions, log zerolog.Logger) *CredentialService {
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = domain.NormalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &CredentialService{
		repo:        repo,
		policy:      opts.Policy,
		cost:        cost,
		adminEmails: admins,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register validates and persists a new account. The existing record is never
// touched when the email is already registered.
func (s *CredentialService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = domain.NormalizeEmail(in.Email)

	if err := s.policy.CheckRegistration(validation.RegistrationInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Question: in.Question,
		Answer:   in.Answer,
	}); err != nil {
		return nil, err
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(domain.NormalizeAnswer(in.Answer)), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash security answer: %w", err)
	}

	now := s.now()
	_, admin := s.adminEmails[in.Email]
	acc := &domain.Account{
		ID:               uuid.NewString(),
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     string(pwHash),
		SecurityQuestion: in.Question,
		SecurityAnswer:   string(answerHash),
		IsAdmin:          admin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", acc.ID).Bool("is_admin", acc.IsAdmin).Msg("account registered")
	return acc, nil
}

// Authenticate returns the account for email when password matches.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials after a
// full bcrypt comparison.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return acc, nil
}

// RecoveryChallenge returns the stored question for email and a verifier
// that compares answers case-insensitively against the stored hash.
func (s *CredentialService) RecoveryChallenge(ctx context.Context, email string) (*ports.RecoveryChallenge, error) {
	acc, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	stored := []byte(acc.SecurityAnswer)
	return &ports.RecoveryChallenge{
		Question: acc.SecurityQuestion,
		Verify: func(answer string) bool {
			normalized := domain.NormalizeAnswer(answer)
			if normalized == "" {
				return false
			}
			return bcrypt.CompareHashAndPassword(stored, []byte(normalized)) == nil
		},
	}, nil
}

// UpdatePassword re-hashes newPassword and overwrites the stored hash.
func (s *CredentialService) UpdatePassword(ctx context.Context, email, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, domain.NormalizeEmail(email), string(hash), s.now()); err != nil {
		return err
	}
	s.log.Info().Msg("password updated")
	return nil
}

// RecordOTPFailure increments the persisted failed-code counter.
func (s *CredentialService) RecordOTPFailure(ctx context.Context, email string) (int, error) {
	return s.repo.IncrementOTPAttempts(ctx, domain.NormalizeEmail(email))
}

// ResetOTPAttempts clears the persisted failed-code counter.
func (s *CredentialService) ResetOTPAttempts(ctx context.Context, email string) error {
	return s.repo.ResetOTPAttempts(ctx, domain.NormalizeEmail(email))
}

func (s *CredentialService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return s.repo.List(ctx)
}

// dummy lazily builds a hash used to equalize timing for unknown emails.
func (s *CredentialService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to build dummy hash")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
