package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"storefront-cart/internal/address"
	"storefront-cart/internal/apiclient"
	"storefront-cart/internal/auth"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/metadata"
	"storefront-cart/internal/metrics"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/shipping"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is one browser's cart engine. Everything in it is scoped to the
// sf_session cookie; only the zone store and metadata cache are shared.
type Session struct {
	ID        string
	Cart      *cart.Reconciler
	Sync      *cart.QuantitySync
	Addresses address.Service
	Pricer    *shipping.CheckoutPricer

	creds *auth.Session
	view  *noticeView

	mu            sync.Mutex
	lastSeen      time.Time
	authenticated bool
}

// Authenticated reports whether cart calls currently go to the remote API.
func (s *Session) Authenticated() bool {
	return s.creds.IsAuthenticated()
}

// Notices returns and clears the messages raised since the last call.
func (s *Session) Notices() []string {
	return s.view.drain()
}

// syncCredentials takes the tokens forwarded with a request. A change of
// login state drops the local cart so the next read loads the right one.
// A signed-in session whose request carries no tokens at all is signed out.
func (s *Session) syncCredentials(ctx context.Context, creds middleware.Credentials, now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	signedIn := s.authenticated
	s.mu.Unlock()

	if creds.Empty() && signedIn {
		logger.FromCtx(ctx).Info("request carries no tokens, signing session out")
		s.logout()
		return
	}

	s.creds.Update(creds.AccessToken, creds.RefreshToken)
	authed := s.creds.IsAuthenticated()

	s.mu.Lock()
	changed := authed != s.authenticated
	s.authenticated = authed
	s.mu.Unlock()

	if changed {
		logger.FromCtx(ctx).Info("session login state changed",
			zap.Bool("authenticated", authed),
		)
		s.Cart.Reset(cart.ResetOptions{Silent: true})
	}
}

// logout sends queued writes while the tokens are still valid, then forgets
// them.
func (s *Session) logout() {
	s.Sync.Flush()

	s.creds.Clear()
	s.mu.Lock()
	s.authenticated = false
	s.mu.Unlock()

	s.Cart.Reset(cart.ResetOptions{})
	s.Addresses.Reset()
	s.Pricer.ClearAddress()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close sends queued quantity writes and detaches listeners.
func (s *Session) close() {
	s.Sync.Flush()
	s.Sync.Stop()
	s.Pricer.Close()
}

// noticeView collects user-facing messages from the quantity sync so the
// next response can carry them.
type noticeView struct {
	cart.NopView

	mu      sync.Mutex
	notices []string
}

func (v *noticeView) Toast(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, message)
}

func (v *noticeView) drain() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.notices
	v.notices = nil
	if out == nil {
		out = []string{}
	}
	return out
}

type SessionOptions struct {
	APIBaseURL      string
	HTTPClient      *http.Client
	RefreshAttempts int
	Debounce        time.Duration
	IdleTTL         time.Duration
	Metadata        *metadata.Cache
	Zones           *shipping.ZoneStore
	SecureCookie    bool
	Metrics         *metrics.Gateway
}

// SessionManager hands out sessions by cookie and evicts idle ones.
type SessionManager struct {
	opts SessionOptions
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(opts SessionOptions) *SessionManager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = apiclient.NewHTTPClient(0)
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = &metrics.Gateway{}
	}
	return &SessionManager{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Resolve returns the request's session, creating it and setting the cookie
// when the browser has none or an unknown one.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) *Session {
	id := auth.ExtractSessionID(r)

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		id = uuid.NewString()
		s = m.newSession(id)
		m.sessions[id] = s
		m.opts.Metrics.SessionsCreated.Inc()
	}
	m.mu.Unlock()

	if !ok {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   m.opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}

	creds, _ := middleware.CredentialsFrom(r.Context())
	s.syncCredentials(r.Context(), creds, m.now())
	return s
}

func (m *SessionManager) newSession(id string) *Session {
	creds := auth.NewSession("", "")
	api := apiclient.New(m.opts.APIBaseURL, m.opts.HTTPClient, creds, m.opts.RefreshAttempts)

	guest := cart.NewGuestStore(m.opts.Metadata)
	remote := cart.NewRemoteBackend(api, cart.NewNormalizer(m.opts.Metadata))
	reconciler := cart.NewReconciler(creds, guest, remote, cart.NewEvents())

	view := &noticeView{}
	return &Session{
		ID:        id,
		Cart:      reconciler,
		Sync:      cart.NewQuantitySync(reconciler, view, m.opts.Debounce),
		Addresses: address.NewService(address.NewRepository(api)),
		Pricer:    shipping.NewCheckoutPricer(reconciler, m.opts.Zones),
		creds:     creds,
		view:      view,
		lastSeen:  m.now(),
	}
}

// Stats reports the gateway counters and the live session count.
func (m *SessionManager) Stats() Stats {
	return Stats{Snapshot: m.opts.Metrics.Snapshot(), ActiveSessions: m.Len()}
}

type Stats struct {
	metrics.Snapshot
	ActiveSessions int `json:"activeSessions"`
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the configured TTL.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	m.opts.Metrics.SessionsEvicted.Add(uint64(len(idle)))
	if len(idle) > 0 {
		logger.L().Info("idle sessions evicted", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps periodically until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	interval := m.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close flushes and drops every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}
