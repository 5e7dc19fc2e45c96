package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/api/metrics"
	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
	"github.com/policynav/accounts/internal/core/validation"
)

// AuthHandler serves sign-up, login and the dashboard account view.
type AuthHandler struct {
	sessions    ports.SessionService
	credentials ports.CredentialService
	policy      validation.Policy
}

func NewAuthHandler(sessions ports.SessionService, credentials ports.CredentialService, policy validation.Policy) *AuthHandler {
	return &AuthHandler{sessions: sessions, credentials: credentials, policy: policy}
}

// Questions handles GET /v1/auth/questions.
//
// @Summary      List selectable security questions
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  questionsResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/auth/questions [get]
func (h *AuthHandler) Questions(c echo.Context) error {
	return c.JSON(http.StatusOK, questionsResponse{Questions: domain.SecurityQuestions()})
}

// PasswordStrength handles POST /v1/auth/password-strength.
//
// @Summary      Score a candidate password
// @Description  Score is 0..4; strong reports whether the password would be accepted.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      passwordStrengthRequest  true  "Candidate password"
// @Success      200   {object}  passwordStrengthResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/auth/password-strength [post]
func (h *AuthHandler) PasswordStrength(c echo.Context) error {
	var req passwordStrengthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.JSON(http.StatusOK, passwordStrengthResponse{
		Score:  validation.PasswordStrength(req.Password),
		Strong: h.policy.IsStrongPassword(req.Password),
	})
}

// Register handles POST /v1/auth/register.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  accountResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	trimRegister(&req)
	if err := c.Validate(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return err
	}
	if req.Password != req.ConfirmPassword {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return domain.ErrPasswordMismatch
	}

	acc, err := h.credentials.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Question: req.SecurityQuestion,
		Answer:   req.SecurityAnswer,
	})
	metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toAccountResponse(acc.ID, acc.Username, acc.Email, acc.IsAdmin))
}

// Login handles POST /v1/auth/login.
//
// @Summary      Log in on the current session
// @Description  Any recovery in progress on the session is abandoned.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  accountResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := c.Validate(&req); err != nil {
		return err
	}

	acc, err := h.sessions.Login(c.Request().Context(), sess, req.Email, req.Password)
	metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAccountResponse(acc.ID, acc.Username, acc.Email, acc.IsAdmin))
}

// Logout handles POST /v1/auth/logout.
//
// @Summary      Log out of the current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Logout(c.Request().Context(), sess); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Me handles GET /v1/me.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	if !sess.Authenticated() {
		return domain.ErrUnauthenticated
	}
	a := sess.Account
	return c.JSON(http.StatusOK, toAccountResponse(a.ID, a.Username, a.Email, a.IsAdmin))
}

// trimRegister strips surrounding whitespace from the free-text fields.
// Passwords are taken as typed.
func trimRegister(req *registerRequest) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.SecurityQuestion = strings.TrimSpace(req.SecurityQuestion)
	req.SecurityAnswer = strings.TrimSpace(req.SecurityAnswer)
}

func registrationResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrAccountExists):
		return "exists"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrWeakPassword):
		return "invalid"
	default:
		return "error"
	}
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}
