package middleware

// identity.go defines helper functions shared across middleware files. Currently
// it provides a user identifier extraction function that reads the claims
// stored in the Echo context by JWTAuth. When no token is present or no
// relevant claim exists, "anon" is returned so rate limit and cache keys stay
// well formed for guests.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID extracts a user identifier from the context values set by
// JWTAuth. The "sub" claim arrives as a string or, after JSON decoding of
// the token, as a float64; both are normalized to a plain string.
func currentUserID(c echo.Context) string {
    v := c.Get("user_id")
    if v == nil {
        return "anon"
    }
    switch t := v.(type) {
    case string:
        if t != "" {
            return t
        }
    case float64:
        return strconv.FormatUint(uint64(t), 10)
    case uint64:
        return strconv.FormatUint(t, 10)
    case int64:
        return strconv.FormatInt(t, 10)
    }
    return "anon"
}
