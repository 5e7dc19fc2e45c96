package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/api/metrics"
	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
)

// RecoveryHandler exposes the password recovery wizard. The recovery service
// only mutates the session in memory; every handler saves it afterwards,
// including on failure, so attempt counters and discarded recoveries stick.
type RecoveryHandler struct {
	sessions ports.SessionService
	recovery ports.RecoveryService
}

func NewRecoveryHandler(sessions ports.SessionService, recovery ports.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{sessions: sessions, recovery: recovery}
}

// Status handles GET /v1/recovery.
//
// @Summary      Current recovery step
// @Tags         recovery
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  recoveryResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/recovery [get]
func (h *RecoveryHandler) Status(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRecoveryResponse(h.recovery.Status(sess)))
}

// Email handles POST /v1/recovery/email.
//
// @Summary      Start recovery for an email
// @Description  With the question_otp method a one-time code is emailed first.
// @Tags         recovery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      recoveryEmailRequest  true  "Account email"
// @Success      200   {object}  recoveryResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/recovery/email [post]
func (h *RecoveryHandler) Email(c echo.Context) error {
	var req recoveryEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := c.Validate(&req); err != nil {
		return err
	}

	return h.step(c, "email", func(sess *domain.Session) (ports.RecoveryStatus, error) {
		return h.recovery.SubmitEmail(c.Request().Context(), sess, req.Email)
	})
}

// Code handles POST /v1/recovery/code.
//
// @Summary      Verify the emailed one-time code
// @Tags         recovery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      recoveryCodeRequest  true  "Six digit code"
// @Success      200   {object}  recoveryResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /v1/recovery/code [post]
func (h *RecoveryHandler) Code(c echo.Context) error {
	var req recoveryCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	return h.step(c, "code", func(sess *domain.Session) (ports.RecoveryStatus, error) {
		return h.recovery.SubmitCode(c.Request().Context(), sess, req.Code)
	})
}

// Resend handles POST /v1/recovery/code/resend.
//
// @Summary      Send a fresh one-time code
// @Description  Failed attempts are not reset.
// @Tags         recovery
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  recoveryResponse
// @Failure      409  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/recovery/code/resend [post]
func (h *RecoveryHandler) Resend(c echo.Context) error {
	return h.step(c, "resend", func(sess *domain.Session) (ports.RecoveryStatus, error) {
		return h.recovery.ResendCode(c.Request().Context(), sess)
	})
}

// Answer handles POST /v1/recovery/answer.
//
// @Summary      Answer the security question
// @Tags         recovery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      recoveryAnswerRequest  true  "Security answer"
// @Success      200   {object}  recoveryResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/recovery/answer [post]
func (h *RecoveryHandler) Answer(c echo.Context) error {
	var req recoveryAnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	req.Answer = strings.TrimSpace(req.Answer)
	if err := c.Validate(&req); err != nil {
		return err
	}

	return h.step(c, "answer", func(sess *domain.Session) (ports.RecoveryStatus, error) {
		return h.recovery.SubmitAnswer(c.Request().Context(), sess, req.Answer)
	})
}

// Password handles POST /v1/recovery/password.
//
// @Summary      Set the new password
// @Tags         recovery
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      recoveryPasswordRequest  true  "New password and confirmation"
// @Success      200   {object}  recoveryResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/recovery/password [post]
func (h *RecoveryHandler) Password(c echo.Context) error {
	var req recoveryPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	return h.step(c, "password", func(sess *domain.Session) (ports.RecoveryStatus, error) {
		return h.recovery.SubmitNewPassword(c.Request().Context(), sess, req.NewPassword, req.ConfirmPassword)
	})
}

// Cancel handles DELETE /v1/recovery.
//
// @Summary      Abandon the recovery in progress
// @Tags         recovery
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  recoveryResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/recovery [delete]
func (h *RecoveryHandler) Cancel(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	h.recovery.Cancel(sess)
	if err := h.sessions.Save(c.Request().Context(), sess); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRecoveryResponse(h.recovery.Status(sess)))
}

// step runs one wizard operation against the request session and persists
// the session whatever the outcome.
func (h *RecoveryHandler) step(c echo.Context, name string, run func(*domain.Session) (ports.RecoveryStatus, error)) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}

	st, runErr := run(sess)
	metrics.RecoveryStepsTotal.WithLabelValues(name, stepResult(runErr)).Inc()
	if errors.Is(runErr, domain.ErrTooManyAttempts) {
		metrics.RecoveryLockoutsTotal.Inc()
	}

	if err := h.sessions.Save(c.Request().Context(), sess); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	return c.JSON(http.StatusOK, toRecoveryResponse(st))
}

func stepResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "unknown_email"
	case errors.Is(err, domain.ErrWrongAnswer):
		return "wrong_answer"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, domain.ErrRecoveryLocked):
		return "locked"
	case errors.Is(err, domain.ErrInvalidStep):
		return "invalid_step"
	case errors.Is(err, domain.ErrDeliveryFailure):
		return "delivery_failed"
	case errors.Is(err, domain.ErrPasswordMismatch), errors.Is(err, domain.ErrWeakPassword), errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
