package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user id as a string for cache
// and rate-limit keys, or "anon" before JWTAuth has run.
func currentUserID(c echo.Context) string {
	switch v := c.Get(UserIDKey).(type) {
	case uint64:
		if v != 0 {
			return strconv.FormatUint(v, 10)
		}
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
