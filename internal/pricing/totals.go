// Package pricing derives cart totals from line items and server-declared
// overrides. Everything here is pure.
package pricing

import "math"

// Line is a cart line as seen by the calculator.
type Line interface {
	UnitPrice() float64
	Qty() int
	InstallationUnit() float64
}

// Discounted lines expose the reference price used for savings display.
type Discounted interface {
	Line
	ListPrice() float64
	SaleUnitPrice() (float64, bool)
}

type Totals struct {
	Subtotal          float64 `json:"subtotal"`
	Shipping          float64 `json:"shipping"`
	InstallationPrice float64 `json:"installationPrice"`
	Total             float64 `json:"total"`
}

// Overrides carries server-declared amounts. A nil field is absent.
type Overrides struct {
	Subtotal          *float64
	Shipping          *float64
	InstallationPrice *float64
	Total             *float64
}

// ComputeTotals prefers a positive declared total verbatim; the other fields
// then come from overrides or zero and are not back-solved. Without a usable
// total, subtotal and installation fall back to the line sums and shipping
// to zero.
func ComputeTotals[L Line](items []L, o Overrides) Totals {
	if o.Total != nil {
		total := finiteOrZero(*o.Total)
		if total > 0 {
			return Totals{
				Subtotal:          valueOr(o.Subtotal, 0),
				Shipping:          valueOr(o.Shipping, 0),
				InstallationPrice: valueOr(o.InstallationPrice, 0),
				Total:             total,
			}
		}
	}

	subtotal := valueOr(o.Subtotal, Subtotal(items))
	shipping := valueOr(o.Shipping, 0)
	installation := valueOr(o.InstallationPrice, InstallationTotal(items))

	return Totals{
		Subtotal:          subtotal,
		Shipping:          shipping,
		InstallationPrice: installation,
		Total:             subtotal + shipping + installation,
	}
}

// Subtotal is Σ price × quantity.
func Subtotal[L Line](items []L) float64 {
	var sum float64
	for _, item := range items {
		sum += finiteOrZero(item.UnitPrice()) * float64(item.Qty())
	}
	return sum
}

// InstallationTotal sums installation fees over lines with a positive unit
// fee and a positive quantity.
func InstallationTotal[L Line](items []L) float64 {
	var sum float64
	for _, item := range items {
		unit := item.InstallationUnit()
		qty := item.Qty()
		if math.IsNaN(unit) || math.IsInf(unit, 0) || unit <= 0 || qty <= 0 {
			continue
		}
		sum += unit * float64(qty)
	}
	return sum
}

// ItemCount is the number of units across all lines.
func ItemCount[L Line](items []L) int {
	n := 0
	for _, item := range items {
		if q := item.Qty(); q > 0 {
			n += q
		}
	}
	return n
}

// Savings is Σ (list − effective) × quantity over discounted lines, where
// the effective price is the sale price when present.
func Savings[L Discounted](items []L) float64 {
	var sum float64
	for _, item := range items {
		effective := item.UnitPrice()
		if sale, ok := item.SaleUnitPrice(); ok {
			effective = sale
		}
		list := item.ListPrice()
		if list > effective && effective > 0 {
			sum += (list - effective) * float64(item.Qty())
		}
	}
	return sum
}

// Float returns a pointer to v; handy for building Overrides.
func Float(v float64) *float64 {
	return &v
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return finiteOrZero(*p)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
