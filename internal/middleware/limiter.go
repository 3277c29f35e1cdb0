package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"storefront-cart/internal/auth"
	"storefront-cart/internal/metrics"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Cart writes
	limitWrite = rate.Limit(5)
	burstWrite = 20

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 40

	visitorIdle = 3 * time.Minute
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
	stats    *metrics.Gateway
}

// NewLimiter keeps one bucket per caller and tier. stats may be nil.
func NewLimiter(stats *metrics.Gateway) *Limiter {
	if stats == nil {
		stats = &metrics.Gateway{}
	}
	return &Limiter{visitors: make(map[string]*visitor), now: time.Now, stats: stats}
}

// getVisitor retrieves or creates the limiter for a bucket key.
func (l *Limiter) getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		l.visitors[key] = &visitor{limiter, l.now()}
		return limiter
	}

	v.lastSeen = l.now()
	return v.limiter
}

// Sweep drops buckets idle for longer than visitorIdle.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorIdle {
			delete(l.visitors, key)
		}
	}
}

// Run sweeps every minute until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware rejects requests over the caller's bucket with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := resolveRateTier(r)

		// e.g. "session:abc:write"; reads and writes get separate quotas
		key := fmt.Sprintf("%s:%s", identity(r), tier)

		if !l.getVisitor(key, limit, burst).Allow() {
			l.stats.RequestsThrottled.Inc()
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// identity is the gateway session, else the client IP. The token subject is
// never used: it is unverified, so anyone could spend another user's bucket.
func identity(r *http.Request) string {
	if sid := auth.ExtractSessionID(r); sid != "" {
		return "session:" + sid
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

func resolveRateTier(r *http.Request) (rate.Limit, int, string) {
	switch r.Method {
	case http.MethodPost, http.MethodPatch, http.MethodDelete:
		return limitWrite, burstWrite, "write"
	}
	return limitGeneral, burstGeneral, "general"
}
