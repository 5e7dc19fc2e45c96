package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/api/handler"
	"github.com/policynav/accounts/internal/core/domain"
)

// SessionResolver turns a bearer token into a stored session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Session, error)
}

// Session resolves the bearer token and injects the session into context.
func Session(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			sess, err := resolver.Resolve(c.Request().Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}

			c.Set(handler.SessionKey, sess)
			return next(c)
		}
	}
}

// RequireLogin rejects sessions with no logged-in account.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, _ := c.Get(handler.SessionKey).(*domain.Session)
			if !sess.Authenticated() {
				return domain.ErrUnauthenticated
			}
			return next(c)
		}
	}
}

// RequireAdmin allows only logged-in accounts carrying the admin flag.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, _ := c.Get(handler.SessionKey).(*domain.Session)
			if !sess.Authenticated() {
				return domain.ErrUnauthenticated
			}
			if !sess.Account.IsAdmin {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
