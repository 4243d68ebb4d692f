package middleware

import (
	"strings"

	"rosterhub/core/cache"
	"rosterhub/core/controller"
	"rosterhub/core/errors"
	"rosterhub/core/utils"

	"github.com/labstack/echo/v4"
)

const (
	ContextKeyUserID  = "user_id"
	ContextKeyOrgID   = "organization_id"
	ContextKeyIsAdmin = "is_admin"
)

type Middleware struct {
	cache cache.Cache
}

func NewMiddleware(c cache.Cache) *Middleware {
	return &Middleware{cache: c}
}

// AuthMiddleware validates the bearer token and stores the caller identity on
// the echo context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return controller.NewErrorResponse(401, errors.ErrMissingAuthorizationHeader, "missing authorization header")
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				return controller.NewErrorResponse(401, errors.ErrInvalidTokenFormat, "expected bearer token")
			}

			if m.cache != nil {
				blacklisted, err := m.cache.IsTokenBlacklisted(c.Request().Context(), token)
				if err == nil && blacklisted {
					return controller.NewErrorResponse(401, errors.ErrUnauthorized, "token is blacklisted")
				}
			}

			tokenData, err := utils.ValidateAndParseToken(token)
			if err != nil {
				return controller.NewErrorResponse(401, errors.ErrTokenExpired, "invalid or expired token")
			}

			c.Set(ContextKeyUserID, tokenData.UserID)
			c.Set(ContextKeyOrgID, tokenData.OrganizationID)
			c.Set(ContextKeyIsAdmin, tokenData.IsAdmin)
			return next(c)
		}
	}
}
