package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

// recoveryVerificationFailed hides whether an email exists or the answer was wrong.
const recoveryVerificationFailed = "recovery verification failed"

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, errorResponse{Error: domain.ErrValidation.Error(), Fields: ve.Fields}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrPasswordMismatch):
		return http.StatusUnprocessableEntity, msg(err)
	case errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict, msg(domain.ErrAccountExists)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, msg(domain.ErrInvalidCredentials)
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrWrongAnswer):
		return http.StatusBadRequest, errorResponse{Error: recoveryVerificationFailed}
	case errors.Is(err, domain.ErrCodeExpired):
		return http.StatusBadRequest, msg(domain.ErrCodeExpired)
	case errors.Is(err, domain.ErrInvalidCode):
		return http.StatusBadRequest, msg(domain.ErrInvalidCode)
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, msg(domain.ErrTooManyAttempts)
	case errors.Is(err, domain.ErrRecoveryLocked):
		return http.StatusTooManyRequests, msg(domain.ErrRecoveryLocked)
	case errors.Is(err, domain.ErrInvalidStep):
		return http.StatusConflict, msg(err)
	case errors.Is(err, domain.ErrDeliveryFailure):
		log.Warn().Err(err).Str("path", c.Path()).Msg("code delivery failed")
		return http.StatusBadGateway, msg(domain.ErrDeliveryFailure)
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, msg(domain.ErrUnauthenticated)
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized, msg(domain.ErrSessionNotFound)
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, msg(domain.ErrForbidden)
	case errors.Is(err, domain.ErrStorageUnavailable):
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("storage unavailable")
		return http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

func msg(err error) errorResponse {
	return errorResponse{Error: err.Error()}
}
