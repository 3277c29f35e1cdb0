// Package metrics holds the gateway's in-process counters.
package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Gateway counts session lifecycle and throttling events.
type Gateway struct {
	SessionsCreated   Counter
	SessionsEvicted   Counter
	RequestsThrottled Counter
}

type Snapshot struct {
	SessionsCreated   uint64 `json:"sessionsCreated"`
	SessionsEvicted   uint64 `json:"sessionsEvicted"`
	RequestsThrottled uint64 `json:"requestsThrottled"`
}

func (g *Gateway) Snapshot() Snapshot {
	return Snapshot{
		SessionsCreated:   g.SessionsCreated.Load(),
		SessionsEvicted:   g.SessionsEvicted.Load(),
		RequestsThrottled: g.RequestsThrottled.Load(),
	}
}
