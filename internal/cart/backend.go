package cart

import "context"

// ApplyMode tells the reconciler how much of a write result to trust.
type ApplyMode int

const (
	// ApplyFull replaces items and totals with the snapshot.
	ApplyFull ApplyMode = iota
	// ApplyTotals keeps the local items and takes only id and totals.
	ApplyTotals
)

// Backend is one place a cart can live. The reconciler picks the guest or
// the remote backend on every call from the current auth state.
type Backend interface {
	// Remote backends do I/O; the reconciler tracks loading and sequencing
	// for them only.
	Remote() bool
	Fetch(ctx context.Context) (Snapshot, error)
	Add(ctx context.Context, productID string, quantity int, payload AddPayload) (Snapshot, error)
	SetQuantity(ctx context.Context, itemID string, quantity int) (Snapshot, ApplyMode, error)
	Remove(ctx context.Context, itemID string) (Snapshot, error)
	Clear(ctx context.Context) (Snapshot, error)
}

// Authenticator answers "is there a usable session right now".
type Authenticator interface {
	IsAuthenticated() bool
}

// AuthFunc adapts a plain func to Authenticator.
type AuthFunc func() bool

func (f AuthFunc) IsAuthenticated() bool { return f() }

// previousAware backends read the reconciler's current lines while
// normalizing so they can fill gaps from them.
type previousAware interface {
	setPrevious(fn func() []Item)
}
