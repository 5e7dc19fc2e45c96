package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/core/domain"
)

// SessionKey is the echo.Context key under which the Session middleware
// stores the resolved *domain.Session.
const SessionKey = "session"

// ctxSession returns the session loaded by the Session middleware. A missing
// session means the route was mounted without it and is reported as
// domain.ErrSessionNotFound.
func ctxSession(c echo.Context) (*domain.Session, error) {
	sess, _ := c.Get(SessionKey).(*domain.Session)
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}
