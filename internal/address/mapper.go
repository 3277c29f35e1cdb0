package address

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Some accounts store the zone id in the city field.
var zoneIDPattern = regexp.MustCompile(`(?i)^[a-f0-9]{8,}$`)

// MapAddresses decodes an address list answered either as {data:[...]} or as
// a bare array. Entries that are not objects are skipped.
func MapAddresses(raw []byte) []*Address {
	payload := gjson.ParseBytes(raw)
	list := payload.Get("data")
	if !list.IsArray() {
		list = payload
	}
	if !list.IsArray() {
		return []*Address{}
	}

	out := make([]*Address, 0, len(list.Array()))
	for _, entry := range list.Array() {
		if addr := MapAddress(entry); addr != nil {
			out = append(out, addr)
		}
	}
	return out
}

func MapAddress(entry gjson.Result) *Address {
	if !entry.IsObject() {
		return nil
	}

	region := entry.Get("region")
	zone := entry.Get("shippingZone")

	regionID := firstString(
		entry.Get("regionId"),
		entry.Get("shippingRegionId"),
		entry.Get("shippingZoneId"),
		entry.Get("zoneId"),
	)
	if regionID == "" && region.IsObject() {
		regionID = firstString(region.Get("_id"), region.Get("id"))
	}
	if regionID == "" && zone.IsObject() {
		regionID = firstString(zone.Get("_id"), zone.Get("id"))
	}

	city := strings.TrimSpace(entry.Get("city").String())
	if regionID == "" && zoneIDPattern.MatchString(city) {
		regionID = city
	}

	regionName := firstString(
		entry.Get("regionName"),
		entry.Get("shippingRegionName"),
	)
	if regionName == "" && region.Type == gjson.String {
		regionName = region.Str
	}
	if regionName == "" && entry.Get("shippingRegion").Type == gjson.String {
		regionName = entry.Get("shippingRegion").Str
	}
	if regionName == "" && zone.IsObject() {
		regionName = zone.Get("name").String()
	}
	if regionName == "" && region.IsObject() {
		regionName = region.Get("name").String()
	}

	if city == "" || zoneIDPattern.MatchString(city) {
		city = regionName
	}

	id := firstString(entry.Get("_id"), entry.Get("id"))
	if id == "" {
		id = FallbackID
	}

	addrType := entry.Get("type").String()
	if addrType == "" {
		addrType = "home"
	}

	return &Address{
		ID:         id,
		Type:       addrType,
		Details:    firstString(entry.Get("details"), entry.Get("line1"), entry.Get("street")),
		City:       city,
		PostalCode: firstString(entry.Get("postalCode"), entry.Get("zip")),
		Phone:      entry.Get("phone").String(),
		RegionID:   regionID,
		RegionName: regionName,
		IsDefault:  entry.Get("isDefault").Type == gjson.True,
		Raw:        json.RawMessage(entry.Raw),
	}
}

// PickDefault returns the address flagged default, else the first one.
func PickDefault(addresses []*Address) *Address {
	for _, a := range addresses {
		if a.IsDefault {
			return a
		}
	}
	if len(addresses) > 0 {
		return addresses[0]
	}
	return nil
}

func firstString(results ...gjson.Result) string {
	for _, r := range results {
		switch r.Type {
		case gjson.String:
			if s := strings.TrimSpace(r.Str); s != "" {
				return s
			}
		case gjson.Number:
			return r.Raw
		}
	}
	return ""
}
