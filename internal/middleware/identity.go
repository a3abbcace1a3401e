package middleware

// identity.go defines the context keys written by JWTAuth and helpers that
// read them back.

import "github.com/labstack/echo/v4"

// ContextUserID is the echo context key holding the authenticated user ID.
const ContextUserID = "user_id"

// UserID returns the authenticated user's ID.  The second result is false
// when the request did not pass through JWTAuth.
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(ContextUserID).(string)
	return id, ok && id != ""
}

// rateKeyUser identifies the caller for rate limiting.  Anonymous callers
// are told apart by address so they never share one bucket.
func rateKeyUser(c echo.Context, ip string) string {
	if id, ok := UserID(c); ok {
		return id
	}
	return "anon@" + ip
}
