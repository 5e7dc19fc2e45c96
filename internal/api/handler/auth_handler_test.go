package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
	"github.com/policynav/accounts/internal/core/validation"
)

const registerBody = `{
	"username": " alice ",
	"email": " alice@example.com ",
	"password": "Secret123",
	"confirm_password": "Secret123",
	"security_question": "What is your pet's name?",
	"security_answer": " Rex "
}`

func TestAuthHandler_Register_Success(t *testing.T) {
	var got ports.RegisterInput
	creds := &stubCredentialService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*domain.Account, error) {
			got = in
			return &domain.Account{ID: "acc-1", Username: in.Username, Email: in.Email}, nil
		},
	}
	h := NewAuthHandler(&stubSessionService{}, creds, validation.DefaultPolicy())

	c, rec := newJSONContext(http.MethodPost, "/v1/auth/register", registerBody, &domain.Session{ID: "s"})
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got.Username != "alice" || got.Email != "alice@example.com" || got.Answer != "Rex" {
		t.Fatalf("inputs not trimmed: %+v", got)
	}
	if got.Password != "Secret123" || got.Question != "What is your pet's name?" {
		t.Fatalf("unexpected input: %+v", got)
	}

	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "acc-1" || resp.Email != "alice@example.com" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Register_ConfirmMismatch(t *testing.T) {
	creds := &stubCredentialService{
		registerFn: func(context.Context, ports.RegisterInput) (*domain.Account, error) {
			t.Fatalf("register should not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(&stubSessionService{}, creds, validation.DefaultPolicy())

	body := `{"username":"alice","email":"alice@example.com","password":"Secret123","confirm_password":"Secret124","security_question":"Pet name?","security_answer":"Rex"}`
	c, _ := newJSONContext(http.MethodPost, "/v1/auth/register", body, &domain.Session{ID: "s"})

	if err := h.Register(c); !errors.Is(err, domain.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestAuthHandler_Register_MissingFields(t *testing.T) {
	h := NewAuthHandler(&stubSessionService{}, &stubCredentialService{}, validation.DefaultPolicy())

	c, _ := newJSONContext(http.MethodPost, "/v1/auth/register", `{"username":"   ","email":"alice@example.com"}`, &domain.Session{ID: "s"})
	err := h.Register(c)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"username", "password", "confirm_password", "security_question", "security_answer"} {
		if !fields[want] {
			t.Fatalf("expected field error for %s, got %+v", want, ve.Fields)
		}
	}
	if fields["email"] {
		t.Fatal("email was provided and should not be reported")
	}
}

func TestAuthHandler_Register_PropagatesServiceError(t *testing.T) {
	creds := &stubCredentialService{
		registerFn: func(context.Context, ports.RegisterInput) (*domain.Account, error) {
			return nil, domain.ErrAccountExists
		},
	}
	h := NewAuthHandler(&stubSessionService{}, creds, validation.DefaultPolicy())

	c, _ := newJSONContext(http.MethodPost, "/v1/auth/register", registerBody, &domain.Session{ID: "s"})
	if err := h.Register(c); !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	h := NewAuthHandler(&stubSessionService{}, &stubCredentialService{}, validation.DefaultPolicy())

	c, _ := newJSONContext(http.MethodPost, "/v1/auth/register", `{"username":`, &domain.Session{ID: "s"})
	if err := h.Register(c); !isBadRequest(err) {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	sess := &domain.Session{ID: "s"}
	sessions := &stubSessionService{
		loginFn: func(_ context.Context, got *domain.Session, email, password string) (*domain.Account, error) {
			if got != sess {
				t.Fatalf("login called with a different session")
			}
			if email != "alice@example.com" || password != "Secret123" {
				t.Fatalf("unexpected credentials %q %q", email, password)
			}
			return &domain.Account{ID: "acc-1", Username: "alice", Email: email}, nil
		},
	}
	h := NewAuthHandler(sessions, &stubCredentialService{}, validation.DefaultPolicy())

	c, rec := newJSONContext(http.MethodPost, "/v1/auth/login", `{"email":" alice@example.com","password":"Secret123"}`, sess)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	sessions := &stubSessionService{
		loginFn: func(context.Context, *domain.Session, string, string) (*domain.Account, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(sessions, &stubCredentialService{}, validation.DefaultPolicy())

	c, _ := newJSONContext(http.MethodPost, "/v1/auth/login", `{"email":"alice@example.com","password":"nope"}`, &domain.Session{ID: "s"})
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_RequiresSession(t *testing.T) {
	h := NewAuthHandler(&stubSessionService{}, &stubCredentialService{}, validation.DefaultPolicy())

	c, _ := newJSONContext(http.MethodPost, "/v1/auth/login", `{"email":"alice@example.com","password":"Secret123"}`, nil)
	if err := h.Login(c); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	called := false
	sessions := &stubSessionService{
		logoutFn: func(context.Context, *domain.Session) error {
			called = true
			return nil
		},
	}
	h := NewAuthHandler(sessions, &stubCredentialService{}, validation.DefaultPolicy())

	c, rec := newJSONContext(http.MethodPost, "/v1/auth/logout", "", &domain.Session{ID: "s"})
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected logout with 200, got called=%v code=%d", called, rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&stubSessionService{}, &stubCredentialService{}, validation.DefaultPolicy())

	c, _ := newJSONContext(http.MethodGet, "/v1/me", "", &domain.Session{ID: "s"})
	if err := h.Me(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	sess := &domain.Session{ID: "s", Account: &domain.SessionAccount{ID: "acc-1", Username: "alice", Email: "alice@example.com"}}
	c, rec := newJSONContext(http.MethodGet, "/v1/me", "", sess)
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Username != "alice" {
		t.Fatalf("expected alice, got %+v", resp)
	}
}

func TestAuthHandler_PasswordStrength(t *testing.T) {
	h := NewAuthHandler(&stubSessionService{}, &stubCredentialService{}, validation.DefaultPolicy())

	cases := []struct {
		password string
		score    int
		strong   bool
	}{
		{"abc", 0, false},
		{"Secret123", 3, true},
		{"Secret123!", 4, true},
		{"SECRET123", 3, false}, // no lowercase under the default policy
	}
	for _, tc := range cases {
		body, _ := json.Marshal(passwordStrengthRequest{Password: tc.password})
		c, rec := newJSONContext(http.MethodPost, "/v1/auth/password-strength", string(body), &domain.Session{ID: "s"})
		if err := h.PasswordStrength(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp passwordStrengthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.Score != tc.score || resp.Strong != tc.strong {
			t.Fatalf("%q: got %+v", tc.password, resp)
		}
	}
}

func TestAuthHandler_Questions(t *testing.T) {
	h := NewAuthHandler(&stubSessionService{}, &stubCredentialService{}, validation.DefaultPolicy())

	c, rec := newJSONContext(http.MethodGet, "/v1/auth/questions", "", &domain.Session{ID: "s"})
	if err := h.Questions(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp questionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Questions) != len(domain.SecurityQuestions()) {
		t.Fatalf("unexpected questions %v", resp.Questions)
	}
}
