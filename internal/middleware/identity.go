package middleware

// identity.go provides the user identifier lookup shared by middleware
// files, mainly for building rate-limit keys. When no user is
// authenticated, "anon" is returned.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID extracts the user identifier stored by JWTAuth.  The
// claim value can arrive as a string or a JSON number depending on the
// issuer, so both are handled.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		if v > 0 {
			return strconv.FormatUint(uint64(v), 10)
		}
	}
	return "anon"
}
