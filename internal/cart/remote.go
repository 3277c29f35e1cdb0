package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

const (
	cartPath      = "/cart"
	cartItemsPath = "/cart/items/"
	cartClearPath = "/cart/clear"
)

// API is the subset of apiclient.Client the remote backend needs.
type API interface {
	GetJSON(ctx context.Context, path string) (json.RawMessage, error)
	PostJSON(ctx context.Context, path string, body any) (json.RawMessage, error)
	PatchJSON(ctx context.Context, path string, body any) (json.RawMessage, error)
	DeleteJSON(ctx context.Context, path string) (json.RawMessage, error)
}

// RemoteBackend is the authenticated user's server-side cart.
type RemoteBackend struct {
	api        API
	normalizer *Normalizer
	previous   func() []Item
}

func NewRemoteBackend(api API, normalizer *Normalizer) *RemoteBackend {
	return &RemoteBackend{api: api, normalizer: normalizer}
}

func (b *RemoteBackend) Remote() bool { return true }

func (b *RemoteBackend) setPrevious(fn func() []Item) { b.previous = fn }

func (b *RemoteBackend) Fetch(ctx context.Context) (Snapshot, error) {
	raw, err := b.api.GetJSON(ctx, cartPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFailedFetchCart, err)
	}
	return b.normalize(raw), nil
}

// Add posts {productId, quantity} plus whatever extra options the caller
// forwarded.
func (b *RemoteBackend) Add(ctx context.Context, productID string, quantity int, payload AddPayload) (Snapshot, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "RemoteBackend"),
		zap.String("method", "Add"),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
	)

	body := make(map[string]any, len(payload.Options)+2)
	for k, v := range payload.Options {
		body[k] = v
	}
	body["productId"] = productID
	body["quantity"] = quantity

	raw, err := b.api.PostJSON(ctx, cartPath, body)
	if err != nil {
		log.Error("add to cart failed", zap.Error(err))
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFailedAddItem, err)
	}
	return b.normalize(raw), nil
}

// SetQuantity patches the line. Quantity responses are partial on some API
// versions, so only the cart id and totals are applied from them.
func (b *RemoteBackend) SetQuantity(ctx context.Context, itemID string, quantity int) (Snapshot, ApplyMode, error) {
	raw, err := b.api.PatchJSON(ctx, itemPath(itemID), map[string]any{"quantity": quantity})
	if err != nil {
		logger.FromCtx(ctx).Error("update cart quantity failed",
			zap.String("layer", "RemoteBackend"),
			zap.String("item_id", itemID),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return Snapshot{}, ApplyTotals, fmt.Errorf("%w: %w", ErrFailedUpdateItem, err)
	}
	return b.normalize(raw), ApplyTotals, nil
}

func (b *RemoteBackend) Remove(ctx context.Context, itemID string) (Snapshot, error) {
	raw, err := b.api.DeleteJSON(ctx, itemPath(itemID))
	if err != nil {
		logger.FromCtx(ctx).Error("remove cart item failed",
			zap.String("layer", "RemoteBackend"),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFailedRemoveItem, err)
	}
	return b.normalize(raw), nil
}

func (b *RemoteBackend) Clear(ctx context.Context) (Snapshot, error) {
	raw, err := b.api.PatchJSON(ctx, cartClearPath, map[string]any{})
	if err != nil {
		logger.FromCtx(ctx).Error("clear cart failed",
			zap.String("layer", "RemoteBackend"),
			zap.Error(err),
		)
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFailedClearCart, err)
	}
	return b.normalize(raw), nil
}

func (b *RemoteBackend) normalize(raw []byte) Snapshot {
	var previous []Item
	if b.previous != nil {
		previous = b.previous()
	}
	return b.normalizer.Normalize(raw, previous)
}

func itemPath(itemID string) string {
	return cartItemsPath + url.PathEscape(itemID)
}
