package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/core/domain"
)

type stubSessionStore struct {
	byID    map[string]domain.Session
	saveErr error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{byID: make(map[string]domain.Session)}
}

func (s *stubSessionStore) Save(_ context.Context, sess *domain.Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.byID[sess.ID] = *sess
	return nil
}

func (s *stubSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	sess, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *stubSessionStore) Delete(_ context.Context, id string) error {
	delete(s.byID, id)
	return nil
}

const testJWTSecret = "test-secret"

func newTestSessionService(t *testing.T) (*SessionService, *stubSessionStore) {
	t.Helper()
	creds := newTestCredentialService(newStubAccountRepo())
	if _, err := creds.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	store := newStubSessionStore()
	return NewSessionService(store, creds, testJWTSecret, time.Hour, zerolog.Nop()), store
}

func TestSessionService_OpenAndResolve(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	sess, token, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.Authenticated() {
		t.Fatal("new session should be anonymous")
	}

	got, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("expected session %s, got %s", sess.ID, got.ID)
	}
}

func TestSessionService_ResolveRejectsBadTokens(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "sess-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredToken, _ := expired.SignedString([]byte(testJWTSecret))

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "sess-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	otherKeyToken, _ := otherKey.SignedString([]byte("another-secret"))

	unknown := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "does-not-exist",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unknownToken, _ := unknown.SignedString([]byte(testJWTSecret))

	for name, token := range map[string]string{
		"garbage":     "not-a-jwt",
		"expired":     expiredToken,
		"wrong key":   otherKeyToken,
		"unknown sid": unknownToken,
		"empty":       "",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Resolve(ctx, token); !errors.Is(err, domain.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestSessionService_LoginClearsRecovery(t *testing.T) {
	svc, store := newTestSessionService(t)
	ctx := context.Background()

	sess, _, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sess.Recovery = domain.NewRecoverySession(domain.MethodQuestion, time.Now())

	acc, err := svc.Login(ctx, sess, "alice@example.com", "Secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if acc.Username != "alice" {
		t.Fatalf("unexpected account %q", acc.Username)
	}

	saved := store.byID[sess.ID]
	if saved.Account == nil || saved.Account.Email != "alice@example.com" {
		t.Fatal("login should be persisted")
	}
	if saved.Recovery != nil {
		t.Fatal("login should discard recovery state")
	}
}

func TestSessionService_LoginFailureLeavesSession(t *testing.T) {
	svc, store := newTestSessionService(t)
	ctx := context.Background()

	sess, _, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Login(ctx, sess, "alice@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if sess.Authenticated() || store.byID[sess.ID].Account != nil {
		t.Fatal("failed login must not authenticate the session")
	}
}

func TestSessionService_Logout(t *testing.T) {
	svc, store := newTestSessionService(t)
	ctx := context.Background()

	sess, _, err := svc.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Login(ctx, sess, "alice@example.com", "Secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, sess); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if store.byID[sess.ID].Account != nil {
		t.Fatal("logout should be persisted")
	}
}
