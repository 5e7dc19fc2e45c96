package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
)

// SessionService opens sessions, signs their tokens and applies login/logout.
type SessionService struct {
	store       ports.SessionStore
	credentials ports.CredentialService
	jwtSecret   []byte
	ttl         time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewSessionService(store ports.SessionStore, credentials ports.CredentialService, jwtSecret string, ttl time.Duration, log zerolog.Logger) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{
		store:       store,
		credentials: credentials,
		jwtSecret:   []byte(jwtSecret),
		ttl:         ttl,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Open creates an anonymous session and returns it with its bearer token.
func (s *SessionService) Open(ctx context.Context) (*domain.Session, string, error) {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := s.sign(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Resolve verifies token and loads the session it names.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.store.Get(ctx, claims.ID)
}

// Save persists changes made to sess by a request.
func (s *SessionService) Save(ctx context.Context, sess *domain.Session) error {
	return s.store.Save(ctx, sess)
}

// Login authenticates and records the account on sess.
func (s *SessionService) Login(ctx context.Context, sess *domain.Session, email, password string) (*domain.Account, error) {
	acc, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.log.Info().Str("session_id", sess.ID).Msg("login rejected")
		}
		return nil, err
	}

	sess.LoginSuccess(acc)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.log.Info().Str("session_id", sess.ID).Str("account_id", acc.ID).Msg("login succeeded")
	return acc, nil
}

// Logout clears the account and any recovery state from sess.
func (s *SessionService) Logout(ctx context.Context, sess *domain.Session) error {
	sess.Logout()
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.log.Info().Str("session_id", sess.ID).Msg("logged out")
	return nil
}

func (s *SessionService) sign(sess *domain.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.jwtSecret)
}
