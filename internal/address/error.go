package address

import "errors"

var (
	ErrNoAddresses     = errors.New("no saved addresses")
	ErrAddressNotFound = errors.New("address not found")
)
