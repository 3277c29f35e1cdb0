package cart

import (
	"context"
	"time"

	"storefront-cart/internal/debounce"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/pricing"

	"go.uber.org/zap"
)

const (
	DefaultQuantityDebounce = 500 * time.Millisecond

	msgQuantityUpdateFailed = "could not update quantity"
)

// View is whatever renders the cart for the user.
type View interface {
	ShowTotalsLoading(loading bool)
	RenderTotals(t pricing.Totals)
	Toast(message string)
	StockLimitReached(item Item)
	LineChanged(item Item)
	LineRemoved(itemID string)
}

// NopView discards every notification.
type NopView struct{}

func (NopView) ShowTotalsLoading(bool)     {}
func (NopView) RenderTotals(pricing.Totals) {}
func (NopView) Toast(string)                {}
func (NopView) StockLimitReached(Item)      {}
func (NopView) LineChanged(Item)            {}
func (NopView) LineRemoved(string)          {}

// QuantitySync applies +/- clicks locally at once and sends only the last
// quantity per line after the debounce delay. A failed write is swallowed
// here: the user gets a toast and the cart is reloaded from the server.
type QuantitySync struct {
	cart      *Reconciler
	view      View
	debouncer *debounce.Debouncer[string]
}

func NewQuantitySync(cart *Reconciler, view View, delay time.Duration) *QuantitySync {
	if view == nil {
		view = NopView{}
	}
	if delay <= 0 {
		delay = DefaultQuantityDebounce
	}
	return &QuantitySync{
		cart:      cart,
		view:      view,
		debouncer: debounce.New[string](delay),
	}
}

// Increment adds one unit unless the line is already at its stock limit.
func (q *QuantitySync) Increment(ctx context.Context, itemID string) (int, error) {
	item, ok := q.cart.State().Find(itemID)
	if !ok {
		return 0, ErrCartItemNotFound
	}
	if item.Quantity >= item.Stock {
		logger.FromCtx(ctx).Info("stock limit reached",
			zap.String("item_id", itemID),
			zap.Int("stock", item.Stock),
		)
		q.view.StockLimitReached(item)
		return item.Quantity, ErrStockLimit
	}
	next := min(item.Quantity+1, item.Stock)
	q.Schedule(ctx, itemID, next)
	return next, nil
}

// Decrement removes one unit; reaching zero removes the line.
func (q *QuantitySync) Decrement(ctx context.Context, itemID string) (int, error) {
	item, ok := q.cart.State().Find(itemID)
	if !ok {
		return 0, ErrCartItemNotFound
	}
	next := max(0, item.Quantity-1)
	q.Schedule(ctx, itemID, next)
	return next, nil
}

// Schedule shows quantity immediately and queues the write. Dropping to
// zero cancels any queued write and removes the line right away.
func (q *QuantitySync) Schedule(ctx context.Context, itemID string, quantity int) {
	if item, kept := q.cart.ApplyLocalQuantity(itemID, quantity); kept {
		q.view.LineChanged(item)
	} else {
		q.view.LineRemoved(itemID)
	}
	q.view.ShowTotalsLoading(true)

	// the write outlives the request that triggered it
	ctx = context.WithoutCancel(ctx)
	if quantity <= 0 {
		q.debouncer.Cancel(itemID)
		q.remove(ctx, itemID)
		return
	}
	q.debouncer.Schedule(itemID, func() { q.commit(ctx, itemID, quantity) })
}

func (q *QuantitySync) remove(ctx context.Context, itemID string) {
	_, err := q.cart.RemoveItem(ctx, itemID, RemoveOptions{})
	q.settle(ctx, itemID, 0, err)
}

func (q *QuantitySync) commit(ctx context.Context, itemID string, quantity int) {
	_, err := q.cart.UpdateQuantity(ctx, itemID, quantity)
	q.settle(ctx, itemID, quantity, err)
}

// settle renders the outcome of a write; a failure reloads the cart.
func (q *QuantitySync) settle(ctx context.Context, itemID string, quantity int, err error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "QuantitySync"),
		zap.String("item_id", itemID),
		zap.Int("quantity", quantity),
	)

	q.view.ShowTotalsLoading(false)
	if err == nil {
		q.view.RenderTotals(q.cart.State().Totals)
		return
	}

	log.Warn("quantity update failed, reloading cart", zap.Error(err))
	q.view.Toast(msgQuantityUpdateFailed)
	if _, err := q.cart.Refresh(ctx, true); err != nil {
		log.Error("reload after failed update also failed", zap.Error(err))
	}
}

// Pending reports whether a write for itemID is still queued.
func (q *QuantitySync) Pending(itemID string) bool {
	return q.debouncer.Pending(itemID)
}

// Cancel drops the queued write for itemID, if any.
func (q *QuantitySync) Cancel(itemID string) bool {
	return q.debouncer.Cancel(itemID)
}

// Flush sends every queued write now.
func (q *QuantitySync) Flush() {
	q.debouncer.Flush()
}

// Stop drops queued writes and refuses new ones.
func (q *QuantitySync) Stop() {
	q.debouncer.Stop()
}
