package cart

import (
	"errors"
	"regexp"

	"storefront-cart/internal/apiclient"
)

var (
	// -- Validation & Input --
	ErrProductIDRequired = errors.New("product id is required")
	ErrItemIDRequired    = errors.New("cart item id is required")

	// -- Resource State --
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrStockLimit       = errors.New("requested quantity exceeds available stock")

	// -- Remote Operation Failures --
	ErrFailedFetchCart  = errors.New("failed to fetch cart")
	ErrFailedAddItem    = errors.New("failed to add cart item")
	ErrFailedUpdateItem = errors.New("failed to update cart item")
	ErrFailedRemoveItem = errors.New("failed to remove cart item")
	ErrFailedClearCart  = errors.New("failed to clear cart")
)

var emptyCartPattern = regexp.MustCompile(`(?i)cart is empty|didn't add any item|no items in cart`)

// IsEmptyCart reports whether err is the server's way of saying the user has
// no cart yet. Those responses are success with an empty cart.
func IsEmptyCart(err error) bool {
	if err == nil {
		return false
	}
	if apiclient.IsNotFound(err) {
		return true
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return emptyCartPattern.MatchString(apiErr.Message)
	}
	return emptyCartPattern.MatchString(err.Error())
}
