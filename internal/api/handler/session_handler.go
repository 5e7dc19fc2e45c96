package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/core/ports"
)

// SessionHandler opens anonymous client sessions.
type SessionHandler struct {
	sessions ports.SessionService
}

func NewSessionHandler(sessions ports.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Open handles POST /v1/session.
//
// @Summary      Open an anonymous session
// @Description  Returns the bearer token every other /v1 route expects.
// @Tags         session
// @Produce      json
// @Success      201  {object}  sessionResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/session [post]
func (h *SessionHandler) Open(c echo.Context) error {
	sess, token, err := h.sessions.Open(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResponse{Token: token, ExpiresAt: sess.ExpiresAt})
}
