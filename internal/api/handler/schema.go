package handler

import (
	"time"

	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
)

// errorResponse mirrors the envelope written by the central error handler.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

// --- Session ---

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- Auth ---

type questionsResponse struct {
	Questions []string `json:"questions"`
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

type passwordStrengthResponse struct {
	Score  int  `json:"score"`
	Strong bool `json:"strong"`
}

type registerRequest struct {
	Username         string `json:"username"          validate:"required"`
	Email            string `json:"email"             validate:"required"`
	Password         string `json:"password"          validate:"required"`
	ConfirmPassword  string `json:"confirm_password"  validate:"required"`
	SecurityQuestion string `json:"security_question" validate:"required"`
	SecurityAnswer   string `json:"security_answer"   validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type accountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

type adminAccountResponse struct {
	accountResponse
	SecurityQuestion string    `json:"security_question"`
	OTPAttempts      int       `json:"otp_attempts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type accountListResponse struct {
	Accounts []adminAccountResponse `json:"accounts"`
	Count    int                    `json:"count"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Recovery ---

type recoveryEmailRequest struct {
	Email string `json:"email" validate:"required"`
}

type recoveryCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

type recoveryAnswerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

type recoveryPasswordRequest struct {
	NewPassword     string `json:"new_password"     validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type recoveryResponse struct {
	Step          string `json:"step"`
	Method        string `json:"method"`
	Question      string `json:"question,omitempty"`
	CodeExpiresAt *int64 `json:"code_expires_at,omitempty"`
}

func toAccountResponse(id, username, email string, isAdmin bool) accountResponse {
	return accountResponse{ID: id, Username: username, Email: email, IsAdmin: isAdmin}
}

func toAdminAccount(acc *domain.Account) adminAccountResponse {
	return adminAccountResponse{
		accountResponse:  toAccountResponse(acc.ID, acc.Username, acc.Email, acc.IsAdmin),
		SecurityQuestion: acc.SecurityQuestion,
		OTPAttempts:      acc.OTPAttempts,
		CreatedAt:        acc.CreatedAt,
		UpdatedAt:        acc.UpdatedAt,
	}
}

func toRecoveryResponse(st ports.RecoveryStatus) recoveryResponse {
	return recoveryResponse{
		Step:          string(st.Step),
		Method:        string(st.Method),
		Question:      st.Question,
		CodeExpiresAt: st.CodeExpiresAt,
	}
}
