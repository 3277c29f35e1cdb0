package shipping

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Details is what an address implies for shipping.
type Details struct {
	Cost                  float64 `json:"cost"`
	ZoneID                string  `json:"zoneId,omitempty"`
	Zone                  *Zone   `json:"zone,omitempty"`
	RegionName            string  `json:"regionName"`
	InstallationAvailable bool    `json:"installationAvailable"`
}

// ResolveDetails reads shipping data from a raw address. The zone comes
// from the address itself or, failing that, from zones by id. Installation
// is available only when some candidate flag is literally true.
func ResolveDetails(rawAddress []byte, zones ZoneLookup) Details {
	addr := gjson.ParseBytes(rawAddress)
	if !addr.IsObject() {
		return Details{}
	}

	candidate := firstTruthy(
		addr.Get("shippingZone"),
		addr.Get("region"),
		addr.Get("shippingRegion"),
		addr.Get("zone"),
	)
	var zone gjson.Result
	if candidate.IsObject() {
		zone = candidate
	}

	zoneID := idOf(
		addr.Get("regionId"),
		addr.Get("shippingRegionId"),
		addr.Get("shippingZoneId"),
		addr.Get("zoneId"),
		zone.Get("_id"),
		zone.Get("id"),
	)
	if zoneID == "" && candidate.Type == gjson.String {
		zoneID = candidate.Str
	}

	var resolved *Zone
	if !zone.Exists() && zoneID != "" && zones != nil {
		if z, ok := zones.Zone(zoneID); ok {
			zone = gjson.ParseBytes(z.Raw)
			if z.ID != "" {
				zoneID = z.ID
			}
			resolved = &z
		}
	}
	if resolved == nil && zone.Exists() {
		resolved = &Zone{
			ID:   idOf(zone.Get("_id"), zone.Get("id")),
			Name: zone.Get("name").String(),
			Raw:  []byte(zone.Raw),
		}
	}

	regionName := firstNonBlank(
		addr.Get("regionName"),
		addr.Get("shippingRegionName"),
		stringOnly(addr.Get("region")),
		stringOnly(addr.Get("shippingRegion")),
		stringOnly(candidate),
		zone.Get("name"),
	)

	cost := 0.0
	for _, c := range []gjson.Result{
		addr.Get("shippingCost"),
		addr.Get("shippingPrice"),
		addr.Get("deliveryFee"),
		addr.Get("shippingFee"),
		addr.Get("region.shippingCost"),
		addr.Get("region.shippingPrice"),
		zone.Get("shippingCost"),
		zone.Get("shippingPrice"),
		zone.Get("shippingRate"),
		zone.Get("price"),
		zone.Get("cost"),
	} {
		if v, ok := number(c); ok && v >= 0 {
			cost = v
			break
		}
	}

	installation := false
	for _, c := range []gjson.Result{
		addr.Get("isInstallationAvailable"),
		addr.Get("installationAvailable"),
		addr.Get("supportsInstallation"),
		addr.Get("raw.isInstallationAvailable"),
		addr.Get("raw.installationAvailable"),
		zone.Get("isInstallationAvailable"),
		zone.Get("installationAvailable"),
		zone.Get("supportsInstallation"),
		zone.Get("installation"),
	} {
		if c.Type == gjson.True {
			installation = true
			break
		}
	}

	return Details{
		Cost:                  cost,
		ZoneID:                zoneID,
		Zone:                  resolved,
		RegionName:            regionName,
		InstallationAvailable: installation,
	}
}

func firstTruthy(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		switch r.Type {
		case gjson.String:
			if r.Str != "" {
				return r
			}
		case gjson.Number:
			if r.Num != 0 {
				return r
			}
		case gjson.True, gjson.JSON:
			return r
		}
	}
	return gjson.Result{}
}

func idOf(results ...gjson.Result) string {
	for _, r := range results {
		switch r.Type {
		case gjson.String:
			if r.Str != "" {
				return r.Str
			}
		case gjson.Number:
			return r.Raw
		}
	}
	return ""
}

func stringOnly(r gjson.Result) gjson.Result {
	if r.Type == gjson.String {
		return r
	}
	return gjson.Result{}
}

func firstNonBlank(results ...gjson.Result) string {
	for _, r := range results {
		if r.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(r.Str); s != "" {
			return s
		}
	}
	return ""
}

func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, !math.IsNaN(r.Num) && !math.IsInf(r.Num, 0)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
