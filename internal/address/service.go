package address

import (
	"context"
	"sync"

	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

// Service keeps one session's checkout address list and the selection.
type Service interface {
	Load(ctx context.Context, force bool) ([]*Address, error)
	Select(id string) (*Address, error)
	Selected() *Address
	Reset()
}

type service struct {
	repo Repository

	mu        sync.Mutex
	loaded    bool
	addresses []*Address
	selected  *Address
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Load fetches the list once per session unless force is set. After a
// reload the previous selection is kept when it still exists, otherwise the
// default address is selected.
func (s *service) Load(ctx context.Context, force bool) ([]*Address, error) {
	s.mu.Lock()
	if s.loaded && !force {
		out := s.addresses
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Load"),
	)

	addresses, err := s.repo.List(ctx)
	if err != nil {
		log.Error("failed to load addresses", zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addresses = addresses
	s.loaded = true

	var keep *Address
	if s.selected != nil {
		keep = find(addresses, s.selected.ID)
	}
	if keep == nil {
		keep = PickDefault(addresses)
	}
	s.selected = keep

	log.Info("addresses loaded", zap.Int("count", len(addresses)))
	return addresses, nil
}

func (s *service) Select(id string) (*Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.addresses) == 0 {
		return nil, ErrNoAddresses
	}
	a := find(s.addresses, id)
	if a == nil {
		return nil, ErrAddressNotFound
	}
	s.selected = a
	return a, nil
}

func (s *service) Selected() *Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func find(addresses []*Address, id string) *Address {
	if id == "" {
		return nil
	}
	for _, a := range addresses {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Reset forgets the list and the selection, as on logout.
func (s *service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.addresses = nil
	s.selected = nil
}
