package address

import "encoding/json"

// FallbackID identifies an address the API returned without an id.
const FallbackID = "checkout-default-address"

type Address struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Details    string `json:"details"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`

	RegionID   string `json:"regionId,omitempty"`
	RegionName string `json:"regionName,omitempty"`

	IsDefault bool `json:"isDefault"`

	// Raw is the address as the API sent it; shipping resolution reads
	// zone and installation fields from it.
	Raw json.RawMessage `json:"-"`
}
