package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the credentials a browser forwarded for the remote API. It
// satisfies apiclient.TokenStore and answers the "is authenticated"
// question for the cart.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
	now     func() time.Time
}

func NewSession(accessToken, refreshToken string) *Session {
	return &Session{access: accessToken, refresh: refreshToken, now: time.Now}
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
}

// Update replaces both tokens when the browser presents new ones. Empty
// values keep what is already known.
func (s *Session) Update(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accessToken != "" {
		s.access = accessToken
	}
	if refreshToken != "" {
		s.refresh = refreshToken
	}
}

// Clear logs the session out locally.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}

// IsAuthenticated is true with a refresh token, or with an access token that
// is not a JWT past its exp claim. The signature is not verified here; the
// remote API owns that.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	access, refresh, now := s.access, s.refresh, s.now
	s.mu.RUnlock()

	if refresh != "" {
		return true
	}
	if access == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		// opaque token
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Time.After(now())
}
