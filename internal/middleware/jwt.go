// Package middleware holds the echo middleware of the HTTP API:
// authentication, request logging, rate limiting and response caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// JWTAuth validates a Bearer access token and stores the caller's user
// ID (uint64) and username in the echo context.  Missing or invalid
// tokens are rejected with 401 unknown_user.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			id, err := claims.UserID()
			if err != nil {
				return unauthorized(c, "invalid claims")
			}
			c.Set(UserIDKey, id)
			c.Set(UsernameKey, claims.Username)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown_user", "message": msg})
}
