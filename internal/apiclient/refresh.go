package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"storefront-cart/internal/logger"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultMaxRefreshAttempts = 2

// TokenRefresher exchanges the refresh token for a new access token.
// Concurrent callers share one request, and consecutive failed cycles are
// capped so a 401 → refresh → 401 loop ends by clearing the credentials.
type TokenRefresher struct {
	endpoint    string
	httpClient  *http.Client
	tokens      TokenStore
	maxAttempts int

	group    singleflight.Group
	mu       sync.Mutex
	attempts int
}

func NewTokenRefresher(endpoint string, httpClient *http.Client, tokens TokenStore, maxAttempts int) *TokenRefresher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRefreshAttempts
	}
	return &TokenRefresher{
		endpoint:    endpoint,
		httpClient:  httpClient,
		tokens:      tokens,
		maxAttempts: maxAttempts,
	}
}

// Refresh reports whether a new access token is in place. Guests without a
// refresh token get (false, nil).
func (r *TokenRefresher) Refresh(ctx context.Context) (bool, error) {
	if r.tokens.RefreshToken() == "" {
		return false, nil
	}

	_, err, _ := r.group.Do("refresh", func() (any, error) {
		r.mu.Lock()
		if r.attempts >= r.maxAttempts {
			r.attempts = 0
			r.mu.Unlock()
			r.tokens.Clear()
			return nil, ErrRefreshExhausted
		}
		r.attempts++
		r.mu.Unlock()

		if err := r.exchange(ctx); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.attempts = 0
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Attempts is the number of refresh cycles since the last success.
func (r *TokenRefresher) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *TokenRefresher) exchange(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "apiclient"), zap.String("method", "RefreshToken"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: r.tokens.RefreshToken()})

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Error("refresh request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("refresh rejected", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	token := ""
	for _, c := range resp.Cookies() {
		if c.Name == AccessTokenCookie && c.Value != "" {
			token = c.Value
		}
	}
	if token == "" {
		for _, path := range []string{"data.accessToken", "accessToken", "data.token", "token"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
				token = v.String()
				break
			}
		}
	}
	if token != "" {
		r.tokens.SetAccessToken(token)
	}

	log.Info("access token refreshed")
	return nil
}
