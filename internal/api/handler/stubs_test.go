package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
)

type stubSessionService struct {
	openFn   func(ctx context.Context) (*domain.Session, string, error)
	saveFn   func(ctx context.Context, sess *domain.Session) error
	loginFn  func(ctx context.Context, sess *domain.Session, email, password string) (*domain.Account, error)
	logoutFn func(ctx context.Context, sess *domain.Session) error

	saved int
}

func (s *stubSessionService) Open(ctx context.Context) (*domain.Session, string, error) {
	return s.openFn(ctx)
}

func (s *stubSessionService) Resolve(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (s *stubSessionService) Save(ctx context.Context, sess *domain.Session) error {
	s.saved++
	if s.saveFn != nil {
		return s.saveFn(ctx, sess)
	}
	return nil
}

func (s *stubSessionService) Login(ctx context.Context, sess *domain.Session, email, password string) (*domain.Account, error) {
	return s.loginFn(ctx, sess, email, password)
}

func (s *stubSessionService) Logout(ctx context.Context, sess *domain.Session) error {
	return s.logoutFn(ctx, sess)
}

type stubCredentialService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*domain.Account, error)
	listFn     func(ctx context.Context) ([]*domain.Account, error)
}

func (s *stubCredentialService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	return s.registerFn(ctx, in)
}

func (s *stubCredentialService) Authenticate(context.Context, string, string) (*domain.Account, error) {
	return nil, domain.ErrInvalidCredentials
}

func (s *stubCredentialService) RecoveryChallenge(context.Context, string) (*ports.RecoveryChallenge, error) {
	return nil, domain.ErrAccountNotFound
}

func (s *stubCredentialService) UpdatePassword(context.Context, string, string) error { return nil }

func (s *stubCredentialService) RecordOTPFailure(context.Context, string) (int, error) { return 0, nil }

func (s *stubCredentialService) ResetOTPAttempts(context.Context, string) error { return nil }

func (s *stubCredentialService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return s.listFn(ctx)
}

type stubRecoveryService struct {
	statusFn   func(sess *domain.Session) ports.RecoveryStatus
	emailFn    func(ctx context.Context, sess *domain.Session, email string) (ports.RecoveryStatus, error)
	codeFn     func(ctx context.Context, sess *domain.Session, code string) (ports.RecoveryStatus, error)
	resendFn   func(ctx context.Context, sess *domain.Session) (ports.RecoveryStatus, error)
	answerFn   func(ctx context.Context, sess *domain.Session, answer string) (ports.RecoveryStatus, error)
	passwordFn func(ctx context.Context, sess *domain.Session, newPassword, confirm string) (ports.RecoveryStatus, error)
}

func (s *stubRecoveryService) Status(sess *domain.Session) ports.RecoveryStatus {
	if s.statusFn != nil {
		return s.statusFn(sess)
	}
	return ports.RecoveryStatus{Step: domain.StepAwaitingEmail, Method: domain.MethodQuestion}
}

func (s *stubRecoveryService) SubmitEmail(ctx context.Context, sess *domain.Session, email string) (ports.RecoveryStatus, error) {
	return s.emailFn(ctx, sess, email)
}

func (s *stubRecoveryService) SubmitCode(ctx context.Context, sess *domain.Session, code string) (ports.RecoveryStatus, error) {
	return s.codeFn(ctx, sess, code)
}

func (s *stubRecoveryService) ResendCode(ctx context.Context, sess *domain.Session) (ports.RecoveryStatus, error) {
	return s.resendFn(ctx, sess)
}

func (s *stubRecoveryService) SubmitAnswer(ctx context.Context, sess *domain.Session, answer string) (ports.RecoveryStatus, error) {
	return s.answerFn(ctx, sess, answer)
}

func (s *stubRecoveryService) SubmitNewPassword(ctx context.Context, sess *domain.Session, newPassword, confirm string) (ports.RecoveryStatus, error) {
	return s.passwordFn(ctx, sess, newPassword, confirm)
}

func (s *stubRecoveryService) Cancel(sess *domain.Session) {
	sess.Recovery = nil
}

// newJSONContext builds an echo context carrying body and, when sess is
// non-nil, the session the Session middleware would have injected.
func newJSONContext(method, target, body string, sess *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		c.Set(SessionKey, sess)
	}
	return c, rec
}

func isBadRequest(err error) bool {
	he, ok := err.(*echo.HTTPError)
	return ok && he.Code == http.StatusBadRequest
}
