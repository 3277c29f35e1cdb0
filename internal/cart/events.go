package cart

import (
	"sort"
	"sync"

	"storefront-cart/internal/pricing"
)

// Events fans cart notifications out to subscribers. The three topics are
// independent: a totals-only update never fires OnUpdated.
type Events struct {
	mu      sync.RWMutex
	nextID  int
	updated map[int]func(State)
	loading map[int]func(bool)
	totals  map[int]func(pricing.Totals)
}

func NewEvents() *Events {
	return &Events{
		updated: make(map[int]func(State)),
		loading: make(map[int]func(bool)),
		totals:  make(map[int]func(pricing.Totals)),
	}
}

// OnUpdated subscribes to full state changes. The returned func unsubscribes.
func (e *Events) OnUpdated(fn func(State)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.updated[id] = fn
	return func() { e.drop(func() { delete(e.updated, id) }) }
}

func (e *Events) OnLoading(fn func(bool)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.loading[id] = fn
	return func() { e.drop(func() { delete(e.loading, id) }) }
}

func (e *Events) OnTotals(fn func(pricing.Totals)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.totals[id] = fn
	return func() { e.drop(func() { delete(e.totals, id) }) }
}

func (e *Events) drop(del func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	del()
}

func (e *Events) emitUpdated(s State) {
	for _, fn := range collect(e, e.updated) {
		fn(s.clone())
	}
}

func (e *Events) emitLoading(loading bool) {
	for _, fn := range collect(e, e.loading) {
		fn(loading)
	}
}

func (e *Events) emitTotals(t pricing.Totals) {
	for _, fn := range collect(e, e.totals) {
		fn(t)
	}
}

// collect copies the listeners in subscription order so they run without
// holding the lock.
func collect[F any](e *Events, m map[int]F) []F {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
