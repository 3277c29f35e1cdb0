package shipping

import (
	"context"
	"sync"

	"storefront-cart/internal/address"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/pricing"

	"go.uber.org/zap"
)

// Summary is the checkout price breakdown.
type Summary struct {
	Subtotal            float64 `json:"subtotal"`
	Shipping            float64 `json:"shipping"`
	Installation        float64 `json:"installation"`
	Total               float64 `json:"total"`
	InstallationAlert   bool    `json:"installationAlert"`
	ShippingVisible     bool    `json:"shippingVisible"`
	InstallationVisible bool    `json:"installationVisible"`
}

// ComputeSummary prices the checkout. With an address selected its shipping
// cost wins over the cart's; installation is charged only where the zone
// supports it, and the alert fires when the cart wanted it but cannot have it.
func ComputeSummary(state cart.State, selected bool, d Details) Summary {
	subtotal := state.Totals.Subtotal
	if subtotal < 0 {
		subtotal = pricing.Subtotal(state.Items)
	}

	shipping := 0.0
	switch {
	case selected && d.Cost >= 0:
		shipping = d.Cost
	case state.Totals.Shipping >= 0:
		shipping = state.Totals.Shipping
	}

	installation := state.Totals.InstallationPrice
	if installation < 0 {
		installation = pricing.InstallationTotal(state.Items)
	}

	supported := d.InstallationAvailable
	alert := selected && installation > 0 && !supported
	if !supported {
		installation = 0
	}

	total := subtotal + installation
	if shipping > 0 {
		total += shipping
	}

	return Summary{
		Subtotal:            subtotal,
		Shipping:            shipping,
		Installation:        installation,
		Total:               total,
		InstallationAlert:   alert,
		ShippingVisible:     selected || shipping > 0,
		InstallationVisible: supported && installation > 0,
	}
}

// CheckoutPricer keeps a checkout summary current as the cart and the
// selected address change.
type CheckoutPricer struct {
	zones *ZoneStore

	mu       sync.RWMutex
	state    cart.State
	selected *address.Address
	details  Details
	unsub    []func()
}

func NewCheckoutPricer(reconciler *cart.Reconciler, zones *ZoneStore) *CheckoutPricer {
	p := &CheckoutPricer{zones: zones, state: reconciler.State()}
	events := reconciler.Events()
	p.unsub = append(p.unsub,
		events.OnUpdated(p.onUpdated),
		events.OnTotals(p.onTotals),
	)
	return p
}

func (p *CheckoutPricer) onUpdated(s cart.State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *CheckoutPricer) onTotals(t pricing.Totals) {
	p.mu.Lock()
	p.state.Totals = t
	p.mu.Unlock()
}

// SelectAddress resolves shipping for addr. Zones are loaded on first use;
// when that fails the address is resolved from its own fields.
func (p *CheckoutPricer) SelectAddress(ctx context.Context, addr *address.Address) Details {
	if addr == nil {
		p.ClearAddress()
		return Details{}
	}

	var lookup ZoneLookup
	if p.zones != nil {
		if _, err := p.zones.Load(ctx, false); err != nil {
			logger.FromCtx(ctx).Warn("resolving shipping without zones",
				zap.String("service", "CheckoutPricer"),
				zap.String("address_id", addr.ID),
				zap.Error(err),
			)
		}
		lookup = p.zones
	}

	d := ResolveDetails(addr.Raw, lookup)

	p.mu.Lock()
	p.selected = addr
	p.details = d
	p.mu.Unlock()
	return d
}

func (p *CheckoutPricer) ClearAddress() {
	p.mu.Lock()
	p.selected = nil
	p.details = Details{}
	p.mu.Unlock()
}

// Selected is the address the summary is priced against, or nil.
func (p *CheckoutPricer) Selected() *address.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

func (p *CheckoutPricer) Details() Details {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.details
}

func (p *CheckoutPricer) Summary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ComputeSummary(p.state, p.selected != nil, p.details)
}

// Close drops the cart subscriptions.
func (p *CheckoutPricer) Close() {
	p.mu.Lock()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()
	for _, fn := range unsub {
		fn()
	}
}
