package cart

import (
	"context"
	"sync"

	"storefront-cart/internal/apiclient"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/pricing"

	"go.uber.org/zap"
)

// Reconciler owns the cart state of one storefront session. Every mutation
// goes to the guest store or the remote API depending on the auth state at
// call time, and the result is folded back into State.
//
// Remote calls take a ticket when they are issued. A result is applied only
// if no later-issued call has applied first, so the last request the user
// made wins even when responses arrive out of order.
type Reconciler struct {
	mu      sync.Mutex
	state   State
	issued  uint64
	applied uint64

	authn  Authenticator
	guest  Backend
	remote Backend
	events *Events
}

// NewReconciler wires the two backends. events may be nil.
func NewReconciler(authn Authenticator, guest, remote Backend, events *Events) *Reconciler {
	if events == nil {
		events = NewEvents()
	}
	r := &Reconciler{
		state:  emptyState(),
		authn:  authn,
		guest:  guest,
		remote: remote,
		events: events,
	}
	if p, ok := remote.(previousAware); ok {
		p.setPrevious(r.items)
	}
	return r
}

func emptyState() State {
	return State{
		Items:  []Item{},
		Totals: pricing.ComputeTotals([]Item{}, pricing.Overrides{}),
	}
}

func (r *Reconciler) Events() *Events { return r.events }

// State returns a deep copy of the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// ItemCount is Σ quantity over the current lines.
func (r *Reconciler) ItemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pricing.ItemCount(r.state.Items)
}

func (r *Reconciler) items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone().Items
}

func (r *Reconciler) backend() Backend {
	if r.authn != nil && r.authn.IsAuthenticated() {
		return r.remote
	}
	return r.guest
}

// issue hands out the next ticket for a remote call. Guest calls use 0.
func (r *Reconciler) issue(b Backend) uint64 {
	if !b.Remote() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
	return r.issued
}

// Refresh loads the cart. It is a no-op while another refresh is in flight,
// and when the cart is already loaded unless force is set. An empty-cart
// answer from the API is a loaded empty cart, not an error.
func (r *Reconciler) Refresh(ctx context.Context, force bool) (State, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "Refresh"),
		zap.Bool("force", force),
	)

	r.mu.Lock()
	if r.state.IsLoading || (r.state.IsLoaded && !force) {
		s := r.state.clone()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	b := r.backend()
	if !b.Remote() {
		snap, err := b.Fetch(ctx)
		if err != nil {
			return r.State(), err
		}
		r.apply(snap, 0, ApplyFull, false)
		return r.State(), nil
	}

	r.mu.Lock()
	if r.state.IsLoading {
		s := r.state.clone()
		r.mu.Unlock()
		return s, nil
	}
	r.state.IsLoading = true
	r.issued++
	ticket := r.issued
	r.mu.Unlock()
	r.events.emitLoading(true)

	log.Debug("fetching remote cart")
	snap, err := b.Fetch(ctx)

	r.mu.Lock()
	r.state.IsLoading = false
	var notify bool
	switch {
	case err == nil:
		notify = r.applyLocked(snap, ticket, ApplyFull)
	case IsEmptyCart(err):
		log.Info("remote cart is empty")
		if ticket >= r.applied {
			r.applied = ticket
			r.resetLocked()
			r.state.IsLoaded = true
			notify = true
		}
		err = nil
	case apiclient.IsUnauthorized(err):
		log.Warn("cart refresh unauthorized, resetting", zap.Error(err))
		r.resetLocked()
		r.state.Err = err
		notify = true
	default:
		log.Error("cart refresh failed", zap.Error(err))
		r.state.Err = err
		notify = true
	}
	s := r.state.clone()
	r.mu.Unlock()

	if notify {
		r.events.emitUpdated(s)
	}
	r.events.emitLoading(false)

	return s, err
}

// AddProduct adds quantity units of productID. A remote answer without items
// is followed by a forced refresh.
func (r *Reconciler) AddProduct(ctx context.Context, productID string, quantity int, payload AddPayload) (State, error) {
	if productID == "" {
		return r.State(), ErrProductIDRequired
	}
	if quantity <= 0 {
		quantity = 1
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "AddProduct"),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
	)

	b := r.backend()
	ticket := r.issue(b)

	snap, err := b.Add(ctx, productID, quantity, payload)
	if err != nil {
		log.Error("add product failed", zap.Error(err))
		return r.State(), err
	}

	if snap.hasItems() {
		r.apply(snap, ticket, ApplyFull, false)
		log.Info("product added", zap.Int("lines", len(snap.Items)))
		return r.State(), nil
	}

	log.Info("add returned no items, refreshing")
	return r.Refresh(ctx, true)
}

// UpdateQuantity sets a line's quantity; quantity <= 0 removes it. Remote
// updates only take the id and totals from the response and fire the
// totals event instead of updated.
func (r *Reconciler) UpdateQuantity(ctx context.Context, itemID string, quantity int) (State, error) {
	if itemID == "" {
		return r.State(), ErrItemIDRequired
	}
	if quantity <= 0 {
		return r.RemoveItem(ctx, itemID, RemoveOptions{})
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "UpdateQuantity"),
		zap.String("item_id", itemID),
		zap.Int("quantity", quantity),
	)

	b := r.backend()
	ticket := r.issue(b)

	snap, mode, err := b.SetQuantity(ctx, itemID, quantity)
	if err != nil {
		log.Error("update quantity failed", zap.Error(err))
		return r.State(), err
	}

	r.apply(snap, ticket, mode, false)
	return r.State(), nil
}

// RemoveItem deletes a line. A remote answer with neither items nor a total
// is followed by a forced refresh.
func (r *Reconciler) RemoveItem(ctx context.Context, itemID string, opts RemoveOptions) (State, error) {
	if itemID == "" {
		return r.State(), ErrItemIDRequired
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "RemoveItem"),
		zap.String("item_id", itemID),
	)

	b := r.backend()
	ticket := r.issue(b)

	snap, err := b.Remove(ctx, itemID)
	if err != nil {
		log.Error("remove item failed", zap.Error(err))
		return r.State(), err
	}

	if !b.Remote() || snap.hasItems() || snap.Totals.Total != 0 {
		r.apply(snap, ticket, ApplyFull, opts.Silent)
		return r.State(), nil
	}

	log.Info("remove returned an empty cart, refreshing")
	return r.Refresh(ctx, true)
}

// Clear empties the cart.
func (r *Reconciler) Clear(ctx context.Context) (State, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "Clear"),
	)

	b := r.backend()
	ticket := r.issue(b)

	snap, err := b.Clear(ctx)
	if err != nil {
		log.Error("clear cart failed", zap.Error(err))
		return r.State(), err
	}

	if snap.hasItems() {
		r.apply(snap, ticket, ApplyFull, false)
		return r.State(), nil
	}

	r.mu.Lock()
	if ticket != 0 && ticket < r.applied {
		s := r.state.clone()
		r.mu.Unlock()
		return s, nil
	}
	if ticket != 0 {
		r.applied = ticket
	}
	r.resetLocked()
	s := r.state.clone()
	r.mu.Unlock()

	r.events.emitUpdated(s)
	log.Info("cart cleared")
	return s, nil
}

// Reset drops everything local, as on logout. The next Refresh reloads.
func (r *Reconciler) Reset(opts ResetOptions) {
	r.mu.Lock()
	r.resetLocked()
	r.applied = r.issued
	s := r.state.clone()
	r.mu.Unlock()

	if !opts.Silent {
		r.events.emitUpdated(s)
	}
}

// ApplyLocalQuantity changes a line in place before the server confirms it.
// quantity <= 0 drops the line. Totals are left alone; they are stale until
// the write lands. Returns the updated line and whether it still exists.
func (r *Reconciler) ApplyLocalQuantity(itemID string, quantity int) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, item := range r.state.Items {
		if item.ID != itemID {
			continue
		}
		if quantity <= 0 {
			r.state.Items = append(r.state.Items[:i:i], r.state.Items[i+1:]...)
			return item, false
		}
		r.state.Items[i].Quantity = quantity
		return r.state.Items[i].clone(), true
	}
	return Item{}, false
}

func (r *Reconciler) apply(snap Snapshot, ticket uint64, mode ApplyMode, silent bool) {
	r.mu.Lock()
	notify := r.applyLocked(snap, ticket, mode)
	s := r.state.clone()
	r.mu.Unlock()

	if !notify {
		return
	}
	if mode == ApplyTotals {
		r.events.emitTotals(s.Totals)
		return
	}
	if !silent {
		r.events.emitUpdated(s)
	}
}

// applyLocked folds a snapshot into state. It returns false when the result
// is stale.
func (r *Reconciler) applyLocked(snap Snapshot, ticket uint64, mode ApplyMode) bool {
	if ticket != 0 {
		if ticket < r.applied {
			return false
		}
		r.applied = ticket
	}

	if mode == ApplyTotals {
		if snap.ID != "" {
			r.state.ID = snap.ID
		}
		r.state.Totals = snap.Totals
		return true
	}

	items := make([]Item, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = item.clone()
	}
	r.state.Items = items
	r.state.Totals = pricing.ComputeTotals(items, pricing.Overrides{
		Subtotal:          pricing.Float(snap.Totals.Subtotal),
		Shipping:          pricing.Float(snap.Totals.Shipping),
		InstallationPrice: pricing.Float(snap.Totals.InstallationPrice),
		Total:             pricing.Float(snap.Totals.Total),
	})
	r.state.IsLoaded = true
	r.state.Err = nil
	r.state.ID = snap.ID
	return true
}

func (r *Reconciler) resetLocked() {
	loading := r.state.IsLoading
	r.state = emptyState()
	r.state.IsLoading = loading
}
