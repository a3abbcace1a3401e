package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-tracker/internal/utils"
)

// Cookie names shared by the auth handlers and this middleware.
const (
	AccessCookie  = "token"
	RefreshCookie = "refresh_token"
)

// RevocationChecker reports whether an access token ID has been revoked
// (see repository.SessionRepo).
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth returns an Echo middleware that authenticates the caller from the
// access token cookie, or from a Bearer Authorization header for clients
// that do not keep cookies.  On success the user ID is stored in the
// context (see UserID).  revoked may be nil.
func JWTAuth(secret string, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := AccessTokenFrom(c)
			if raw == "" {
				return unauthorized(c, "Not authenticated")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "Invalid or expired token")
			}
			if revoked != nil {
				gone, err := revoked.IsRevoked(c.Request().Context(), claims.TokenID)
				if err != nil {
					// Redis trouble must not lock every user out.
					log.WithError(err).Warn("jwt: revocation check failed")
				} else if gone {
					return unauthorized(c, "Session has been logged out")
				}
			}
			c.Set(ContextUserID, claims.UserID)
			return next(c)
		}
	}
}

// AccessTokenFrom returns the raw access token carried by the request,
// preferring the cookie over the Authorization header.
func AccessTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": msg})
}
