package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront-cart/internal/address"
	"storefront-cart/internal/apiclient"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

var errInvalidBody = errors.New("invalid request body")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps domain and upstream errors to a gateway status. Upstream
// 4xx pass through; anything else from the API is a bad gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, cart.ErrProductIDRequired),
		errors.Is(err, cart.ErrItemIDRequired):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrCartItemNotFound),
		errors.Is(err, address.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrStockLimit),
		errors.Is(err, address.ErrNoAddresses):
		return http.StatusConflict
	}
	if status := apiclient.StatusOf(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}
