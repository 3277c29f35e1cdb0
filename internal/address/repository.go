package address

import (
	"context"
	"encoding/json"

	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

const addressesPath = "/users/me/addresses"

// Getter is the read side of the API client.
type Getter interface {
	GetJSON(ctx context.Context, path string) (json.RawMessage, error)
}

type Repository interface {
	List(ctx context.Context) ([]*Address, error)
}

type repository struct {
	api Getter
}

func NewRepository(api Getter) Repository {
	return &repository{api: api}
}

func (r *repository) List(ctx context.Context) ([]*Address, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Address"),
		zap.String("method", "List"),
	)

	raw, err := r.api.GetJSON(ctx, addressesPath)
	if err != nil {
		log.Error("fetch addresses failed", zap.Error(err))
		return nil, err
	}

	addresses := MapAddresses(raw)
	log.Debug("addresses fetched", zap.Int("count", len(addresses)))
	return addresses, nil
}
