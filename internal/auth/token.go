package auth

import (
	"net/http"
	"strings"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	// SessionCookie identifies the gateway session that owns a cart.
	SessionCookie = "sf_session"
)

// ExtractAccessToken reads the storefront access token: cookie first, then
// the Authorization header.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if cookie.Value != "" {
			return cookie.Value
		}
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// ExtractRefreshToken only looks at the cookie; refresh tokens never travel
// in headers.
func ExtractRefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// ExtractSessionID returns the gateway session cookie value, if any.
func ExtractSessionID(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
