package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type zoneMap map[string]Zone

func (m zoneMap) Zone(id string) (Zone, bool) {
	z, ok := m[id]
	return z, ok
}

func TestResolveDetails(t *testing.T) {
	zones := zoneMap{
		"z1": {ID: "z1", Name: "North", Raw: []byte(`{"_id":"z1","name":"North","shippingRate":"12.5","isInstallationAvailable":true}`)},
		"z2": {ID: "z2", Name: "South", Raw: []byte(`{"_id":"z2","name":"South","price":7}`)},
	}

	tests := []struct {
		name string
		raw  string
		want Details
	}{
		{
			name: "not an object",
			raw:  `"street"`,
			want: Details{},
		},
		{
			name: "zone looked up by region id",
			raw:  `{"regionId":"z1"}`,
			want: Details{Cost: 12.5, ZoneID: "z1", RegionName: "North", InstallationAvailable: true},
		},
		{
			name: "region string used as zone id and name",
			raw:  `{"region":"z2"}`,
			want: Details{Cost: 7, ZoneID: "z2", RegionName: "z2"},
		},
		{
			name: "embedded zone object wins over the cache",
			raw:  `{"shippingZone":{"_id":"z1","name":"Inline","cost":3}}`,
			want: Details{Cost: 3, ZoneID: "z1", RegionName: "Inline"},
		},
		{
			name: "address cost comes before zone cost",
			raw:  `{"regionId":"z2","deliveryFee":4}`,
			want: Details{Cost: 4, ZoneID: "z2", RegionName: "South"},
		},
		{
			name: "negative cost is skipped",
			raw:  `{"regionId":"z2","shippingCost":-1}`,
			want: Details{Cost: 7, ZoneID: "z2", RegionName: "South"},
		},
		{
			name: "explicit region name",
			raw:  `{"regionId":"z2","regionName":"  Downtown "}`,
			want: Details{Cost: 7, ZoneID: "z2", RegionName: "Downtown"},
		},
		{
			name: "installation needs a literal true",
			raw:  `{"installationAvailable":"true","supportsInstallation":1}`,
			want: Details{},
		},
		{
			name: "installation from the nested raw flag",
			raw:  `{"raw":{"isInstallationAvailable":true}}`,
			want: Details{InstallationAvailable: true},
		},
		{
			name: "unknown zone leaves cost at zero",
			raw:  `{"zoneId":"nope"}`,
			want: Details{ZoneID: "nope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDetails([]byte(tt.raw), zones)
			got.Zone = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDetails_AttachesZone(t *testing.T) {
	zones := zoneMap{"z1": {ID: "z1", Name: "North", Raw: []byte(`{"_id":"z1","name":"North"}`)}}

	d := ResolveDetails([]byte(`{"shippingZoneId":"z1"}`), zones)
	if assert.NotNil(t, d.Zone) {
		assert.Equal(t, "North", d.Zone.Name)
	}

	d = ResolveDetails([]byte(`{"zone":{"id":"inline","name":"Inline"}}`), nil)
	if assert.NotNil(t, d.Zone) {
		assert.Equal(t, "inline", d.Zone.ID)
	}
	assert.Equal(t, "inline", d.ZoneID)
}
