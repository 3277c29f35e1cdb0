// Package shipping resolves shipping cost and installation availability for
// a checkout address and prices the checkout summary.
package shipping

import (
	"context"
	"encoding/json"
	"sync"

	"storefront-cart/internal/logger"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const zonesPath = "/shipping-zones"

// Getter is the read side of the API client.
type Getter interface {
	GetJSON(ctx context.Context, path string) (json.RawMessage, error)
}

// Zone is a shipping zone as the API describes it.
type Zone struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

// ZoneLookup finds a cached zone by id.
type ZoneLookup interface {
	Zone(id string) (Zone, bool)
}

// ZoneStore caches the zone list for the whole process. Concurrent loads
// share one request; a failed load is not cached.
type ZoneStore struct {
	api   Getter
	group singleflight.Group

	mu     sync.RWMutex
	list   []Zone
	byID   map[string]Zone
	loaded bool
}

func NewZoneStore(api Getter) *ZoneStore {
	return &ZoneStore{api: api, byID: make(map[string]Zone)}
}

// Load returns the cached list, fetching it first when it has never loaded
// or force is set.
func (s *ZoneStore) Load(ctx context.Context, force bool) ([]Zone, error) {
	if !force {
		s.mu.RLock()
		if s.loaded {
			out := append([]Zone(nil), s.list...)
			s.mu.RUnlock()
			return out, nil
		}
		s.mu.RUnlock()
	}

	v, err, _ := s.group.Do("zones", func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]Zone(nil), v.([]Zone)...), nil
}

func (s *ZoneStore) fetch(ctx context.Context) ([]Zone, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "ShippingZones"),
		zap.String("method", "Load"),
	)

	raw, err := s.api.GetJSON(ctx, zonesPath)
	if err != nil {
		log.Error("failed to load shipping zones", zap.Error(err))
		return nil, err
	}

	payload := gjson.ParseBytes(raw)
	list := payload.Get("data")
	if !list.IsArray() {
		list = payload
	}

	zones := []Zone{}
	byID := make(map[string]Zone)
	if list.IsArray() {
		for _, entry := range list.Array() {
			if !entry.IsObject() {
				continue
			}
			z := Zone{
				ID:   idOf(entry.Get("_id"), entry.Get("id")),
				Name: entry.Get("name").String(),
				Raw:  json.RawMessage(entry.Raw),
			}
			zones = append(zones, z)
			if z.ID != "" {
				byID[z.ID] = z
			}
		}
	}

	s.mu.Lock()
	s.list = zones
	s.byID = byID
	s.loaded = true
	s.mu.Unlock()

	log.Info("shipping zones loaded", zap.Int("count", len(zones)))
	return zones, nil
}

func (s *ZoneStore) Zone(id string) (Zone, bool) {
	if id == "" {
		return Zone{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.byID[id]
	return z, ok
}

func (s *ZoneStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
