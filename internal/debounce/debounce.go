// Package debounce coalesces bursts of calls per key into one trailing call.
package debounce

import (
	"sync"
	"time"
)

type pending struct {
	timer *time.Timer
	fn    func()
}

// Debouncer runs only the last function scheduled for a key, once the key
// has been quiet for the configured delay.
type Debouncer[K comparable] struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[K]*pending
	stopped bool
}

func New[K comparable](delay time.Duration) *Debouncer[K] {
	return &Debouncer[K]{delay: delay, pending: make(map[K]*pending)}
}

// Schedule replaces any pending call for key and restarts its timer.
func (d *Debouncer[K]) Schedule(key K, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	p := &pending{fn: fn}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

// Cancel drops the pending call for key, reporting whether one existed.
func (d *Debouncer[K]) Cancel(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return true
}

func (d *Debouncer[K]) Pending(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

func (d *Debouncer[K]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush runs every pending call now, on the caller's goroutine.
func (d *Debouncer[K]) Flush() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.pending))
	for key, p := range d.pending {
		if p.timer.Stop() {
			fns = append(fns, p.fn)
		}
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Stop cancels everything and rejects later schedules.
func (d *Debouncer[K]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.stopped = true
}

func (d *Debouncer[K]) fire(key K, p *pending) {
	d.mu.Lock()
	if d.pending[key] != p {
		// superseded or cancelled after the timer started
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	p.fn()
}
