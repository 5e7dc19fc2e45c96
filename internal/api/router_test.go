package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/service"
	"github.com/policynav/accounts/internal/core/validation"
	redisstore "github.com/policynav/accounts/internal/infrastructure/db/redis"
	"github.com/policynav/accounts/internal/infrastructure/db/sqlite"
	"github.com/policynav/accounts/internal/infrastructure/http/handlers"
)

// captureSender records the last code mailed to each address.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendRecoveryCode(_ context.Context, email, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testServer struct {
	e      *echo.Echo
	sender *captureSender
}

func newTestServer(t *testing.T, method domain.RecoveryMethod, admins ...string) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	policy := validation.DefaultPolicy()
	creds := service.NewCredentialService(sqlite.NewAccountRepository(db), service.CredentialOptions{
		Policy:      policy,
		BcryptCost:  bcrypt.MinCost,
		AdminEmails: admins,
	}, zerolog.Nop())
	sessions := service.NewSessionService(redisstore.NewSessionStore(rdb), creds, "test-secret", time.Hour, zerolog.Nop())
	sender := &captureSender{codes: map[string]string{}}
	recovery := service.NewRecoveryService(creds, sender, redisstore.NewRecoveryLockout(rdb), nil, service.RecoveryOptions{
		Method: method,
		Policy: policy,
	}, zerolog.Nop())

	e := NewRouter(Deps{
		Log:         zerolog.Nop(),
		Sessions:    sessions,
		Credentials: creds,
		Recovery:    recovery,
		Policy:      policy,
		Readiness: map[string]handlers.Checker{
			"sqlite": db.PingContext,
			"redis":  redisstore.Pinger(rdb),
		},
		Registerer: prometheus.NewRegistry(),
	})
	return &testServer{e: e, sender: sender}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (s *testServer) openSession(t *testing.T) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/v1/session", "", nil)
	require.Equal(t, http.StatusCreated, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func aliceRegistration() map[string]string {
	return map[string]string{
		"username":          "alice",
		"email":             "alice@example.com",
		"password":          "Secret123",
		"confirm_password":  "Secret123",
		"security_question": "What is your pet's name?",
		"security_answer":   "Rex",
	}
}

func TestRouter_RequiresSessionToken(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestion)

	code, _ := s.do(t, http.MethodGet, "/v1/auth/questions", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodGet, "/v1/auth/questions", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, domain.ErrSessionNotFound.Error(), body["error"])
}

func TestRouter_RegisterLoginLogout(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestion)
	token := s.openSession(t)

	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", token, aliceRegistration())
	require.Equal(t, http.StatusCreated, code)

	dup := aliceRegistration()
	dup["username"] = "mallory"
	code, _ = s.do(t, http.MethodPost, "/v1/auth/register", token, dup)
	require.Equal(t, http.StatusConflict, code)

	weak := aliceRegistration()
	weak["email"] = "bob@example"
	weak["password"], weak["confirm_password"] = "weak", "weak"
	code, body := s.do(t, http.MethodPost, "/v1/auth/register", token, weak)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Len(t, body["fields"], 2)

	code, _ = s.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", token, map[string]string{"email": "alice@example.com", "password": "Wrong1234"})
	require.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", token, map[string]string{"email": "alice@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "alice", body["username"])

	code, _ = s.do(t, http.MethodGet, "/v1/admin/accounts", token, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_SessionsAreIndependent(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestion)
	first := s.openSession(t)
	second := s.openSession(t)

	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", first, aliceRegistration())
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", first, map[string]string{"email": "alice@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/v1/me", second, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_RecoveryWithCode(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestionOTP)
	token := s.openSession(t)

	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", token, aliceRegistration())
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(t, http.MethodPost, "/v1/recovery/email", token, map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "recovery verification failed", body["error"])

	code, body = s.do(t, http.MethodPost, "/v1/recovery/email", token, map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.StepAwaitingCode), body["step"])
	require.NotNil(t, body["code_expires_at"])
	require.Nil(t, body["question"])

	sent := s.sender.code("alice@example.com")
	require.Len(t, sent, 6)

	wrong := "000000"
	if sent == wrong {
		wrong = "111111"
	}
	code, _ = s.do(t, http.MethodPost, "/v1/recovery/code", token, map[string]string{"code": wrong})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, "/v1/recovery/code", token, map[string]string{"code": sent})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.StepAwaitingAnswer), body["step"])
	require.Equal(t, "What is your pet's name?", body["question"])

	code, body = s.do(t, http.MethodPost, "/v1/recovery/answer", token, map[string]string{"answer": "Max"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "recovery verification failed", body["error"])

	code, body = s.do(t, http.MethodGet, "/v1/recovery", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.StepAwaitingAnswer), body["step"])

	code, _ = s.do(t, http.MethodPost, "/v1/recovery/answer", token, map[string]string{"answer": "REX"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/v1/recovery/password", token, map[string]string{"new_password": "NewSecret9", "confirm_password": "NewSecret8"})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = s.do(t, http.MethodPost, "/v1/recovery/password", token, map[string]string{"new_password": "NewSecret9", "confirm_password": "NewSecret9"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.StepDone), body["step"])

	code, _ = s.do(t, http.MethodPost, "/v1/recovery/answer", token, map[string]string{"answer": "rex"})
	require.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", token, map[string]string{"email": "alice@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", token, map[string]string{"email": "alice@example.com", "password": "NewSecret9"})
	require.Equal(t, http.StatusOK, code)
}

func TestRouter_RecoveryCancel(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestion)
	token := s.openSession(t)

	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", token, aliceRegistration())
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(t, http.MethodPost, "/v1/recovery/email", token, map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.StepAwaitingAnswer), body["step"])

	code, body = s.do(t, http.MethodDelete, "/v1/recovery", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.StepAwaitingEmail), body["step"])

	code, _ = s.do(t, http.MethodPost, "/v1/recovery/answer", token, map[string]string{"answer": "rex"})
	require.Equal(t, http.StatusConflict, code)
}

func TestRouter_AdminListsAccounts(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestion, "root@example.com")
	token := s.openSession(t)

	root := aliceRegistration()
	root["username"], root["email"] = "root", "root@example.com"
	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", token, root)
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/v1/auth/register", token, aliceRegistration())
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", token, map[string]string{"email": "root@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodGet, "/v1/admin/accounts", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(2), body["count"])
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	s := newTestServer(t, domain.MethodQuestion)

	code, body := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	code, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	code, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, code)
}
