package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/policynav/accounts/internal/core/domain"
)

func TestAccountHandler_List(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	creds := &stubCredentialService{
		listFn: func(context.Context) ([]*domain.Account, error) {
			return []*domain.Account{
				{ID: "1", Username: "root", Email: "root@example.com", IsAdmin: true, PasswordHash: "$2a$hash", CreatedAt: created},
				{ID: "2", Username: "alice", Email: "alice@example.com", OTPAttempts: 2, CreatedAt: created},
			}, nil
		},
	}
	h := NewAccountHandler(creds)

	c, rec := newJSONContext(http.MethodGet, "/v1/admin/accounts", "", nil)
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", resp["count"])
	}
	accounts := resp["accounts"].([]any)
	first := accounts[0].(map[string]any)
	if first["email"] != "root@example.com" || first["is_admin"] != true {
		t.Fatalf("unexpected first account %v", first)
	}
	if _, leaked := first["password_hash"]; leaked {
		t.Fatal("password hash must not be exposed")
	}
	if accounts[1].(map[string]any)["otp_attempts"] != float64(2) {
		t.Fatalf("expected otp_attempts on second account")
	}
}
