package middleware

import (
	"context"
	"fmt"
	"net/http"

	"storefront-cart/internal/auth"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const credentialsKey contextKey = "credentials"

// Credentials are the tokens a browser forwarded with the request. UserID is
// read from the unverified access token and is only fit for logging.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, c)
}

func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey).(Credentials)
	return c, ok
}

// AuthMiddleware collects credentials into the context. It never rejects a
// request: guests are served by the local cart and the remote API decides
// whether a token is still good.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := Credentials{
			AccessToken:  auth.ExtractAccessToken(r),
			RefreshToken: auth.ExtractRefreshToken(r),
		}
		if creds.Empty() {
			next.ServeHTTP(w, r)
			return
		}
		creds.UserID = subject(creds.AccessToken)

		next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), creds)))
	})
}

func subject(token string) string {
	if token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	switch uid := claims["user_id"].(type) {
	case float64:
		return fmt.Sprintf("%d", int64(uid))
	case string:
		return uid
	}
	return ""
}
