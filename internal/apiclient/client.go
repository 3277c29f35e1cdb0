// Package apiclient talks JSON to the remote e-commerce API on behalf of one
// storefront session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-cart/internal/logger"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	RefreshPath        = "/auth/token/refresh"
)

var emptyObject = []byte("{}")

// TokenStore holds the credentials forwarded to the API.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string)
	Clear()
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	refresher  *TokenRefresher
}

// NewHTTPClient is the shared transport for every session client.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// New builds a client for one session. tokens may be nil for anonymous use;
// maxRefreshAttempts bounds consecutive 401 → refresh cycles.
func New(baseURL string, httpClient *http.Client, tokens TokenStore, maxRefreshAttempts int) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
	if tokens != nil {
		c.refresher = NewTokenRefresher(c.baseURL+RefreshPath, httpClient, tokens, maxRefreshAttempts)
	}
	return c
}

func (c *Client) GetJSON(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) PostJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) PatchJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) DeleteJSON(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "apiclient"),
		zap.String("method", method),
		zap.String("path", path),
	)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Error("failed to marshal request body", zap.Error(err))
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		log.Error("request failed", zap.Error(err))
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && path != RefreshPath && c.refresher != nil {
		refreshed, refreshErr := c.refresher.Refresh(ctx)
		switch {
		case refreshErr != nil:
			log.Warn("token refresh failed", zap.Error(refreshErr))
		case refreshed:
			resp.Body.Close()
			resp, err = c.send(ctx, method, path, payload)
			if err != nil {
				log.Error("retry after refresh failed", zap.Error(err))
				return nil, err
			}
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Message: errorMessage(bodyBytes),
			Payload: bodyBytes,
		}
		log.Warn("api returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, apiErr
	}

	log.Debug("request success",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return emptyObject, nil
	}
	if !json.Valid(bodyBytes) {
		log.Error("api returned invalid json", zap.ByteString("response", bodyBytes))
		return nil, fmt.Errorf("invalid json from %s %s", method, path)
	}
	return bodyBytes, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if reqID := logger.RequestIDFrom(ctx); reqID != "" {
		req.Header.Set(logger.RequestIDHeader, reqID)
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.httpClient.Do(req)
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.String() != "" {
		return msg.String()
	}
	return defaultErrorMessage
}
