package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-cart/internal/apiclient"
	"storefront-cart/internal/metadata"
	"storefront-cart/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAPI is a mock implementation of the API interface
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetJSON(ctx context.Context, path string) (json.RawMessage, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockAPI) PostJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	args := m.Called(ctx, path, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockAPI) PatchJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	args := m.Called(ctx, path, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockAPI) DeleteJSON(ctx context.Context, path string) (json.RawMessage, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

const twoLineCart = `{"data":{"cart":{"_id":"c1","items":[
	{"_id":"i1","product":{"_id":"p1","name":"Ball","price":10},"quantity":2},
	{"_id":"i2","product":{"_id":"p2","name":"Lamp","price":5},"quantity":1}
]}}}`

// recorder collects every event the reconciler fires.
type recorder struct {
	mu      sync.Mutex
	updated []State
	loading []bool
	totals  []pricing.Totals
}

func record(e *Events) *recorder {
	rec := &recorder{}
	e.OnUpdated(func(s State) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.updated = append(rec.updated, s)
	})
	e.OnLoading(func(l bool) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.loading = append(rec.loading, l)
	})
	e.OnTotals(func(t pricing.Totals) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.totals = append(rec.totals, t)
	})
	return rec
}

func newRemoteReconciler(api API) (*Reconciler, *recorder) {
	meta := metadata.New(64)
	r := NewReconciler(
		AuthFunc(func() bool { return true }),
		NewGuestStore(meta),
		NewRemoteBackend(api, NewNormalizer(meta)),
		NewEvents(),
	)
	return r, record(r.Events())
}

func TestReconciler_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("loads remote cart", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		r, rec := newRemoteReconciler(api)

		s, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, "c1", s.ID)
		assert.Len(t, s.Items, 2)
		assert.True(t, s.IsLoaded)
		assert.False(t, s.IsLoading)
		assert.Equal(t, 25.0, s.Totals.Total)
		assert.Equal(t, 3, r.ItemCount())
		assert.Equal(t, []bool{true, false}, rec.loading)
		assert.Len(t, rec.updated, 1)
		api.AssertExpectations(t)
	})

	t.Run("second refresh is served from state", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		r, _ := newRemoteReconciler(api)

		first, err := r.Refresh(ctx, false)
		require.NoError(t, err)
		second, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, first.Items, second.Items)
		assert.Equal(t, first.Totals, second.Totals)
		api.AssertNumberOfCalls(t, "GetJSON", 1)
	})

	t.Run("not found is an empty loaded cart", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(nil, &apiclient.APIError{Status: 404, Message: "not found"}).Once()
		r, _ := newRemoteReconciler(api)

		s, err := r.Refresh(ctx, false)
		require.NoError(t, err)
		assert.True(t, s.IsLoaded)
		assert.Empty(t, s.Items)
		assert.NoError(t, s.Err)

		_, err = r.Refresh(ctx, false)
		require.NoError(t, err)
		api.AssertNumberOfCalls(t, "GetJSON", 1)
	})

	t.Run("empty cart message is an empty loaded cart", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(nil, &apiclient.APIError{Status: 400, Message: "You didn't add any item to your cart"}).Once()
		r, _ := newRemoteReconciler(api)

		s, err := r.Refresh(ctx, true)
		require.NoError(t, err)
		assert.True(t, s.IsLoaded)
		assert.Empty(t, s.Items)
	})

	t.Run("unauthorized resets and returns the error", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		api.On("GetJSON", mock.Anything, "/cart").Return(nil, &apiclient.APIError{Status: 401, Message: "jwt expired"}).Once()
		r, rec := newRemoteReconciler(api)

		_, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		s, err := r.Refresh(ctx, true)
		require.Error(t, err)
		assert.True(t, apiclient.IsUnauthorized(err))
		assert.Empty(t, s.Items)
		assert.False(t, s.IsLoaded)
		assert.Equal(t, err, s.Err)
		assert.Len(t, rec.updated, 2)
	})

	t.Run("other errors keep items and record the error", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		api.On("GetJSON", mock.Anything, "/cart").Return(nil, &apiclient.APIError{Status: 500, Message: "boom"}).Once()
		r, _ := newRemoteReconciler(api)

		_, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		s, err := r.Refresh(ctx, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFailedFetchCart)
		assert.Len(t, s.Items, 2)
		assert.Equal(t, err, s.Err)
		assert.False(t, s.IsLoading)
	})

	t.Run("concurrent refresh is a no-op while loading", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(json.RawMessage(twoLineCart), nil).Once()
		r, _ := newRemoteReconciler(api)

		done := make(chan error, 1)
		go func() {
			_, err := r.Refresh(ctx, true)
			done <- err
		}()

		<-started
		s, err := r.Refresh(ctx, true)
		require.NoError(t, err)
		assert.True(t, s.IsLoading)
		assert.Empty(t, s.Items)

		close(release)
		require.NoError(t, <-done)
		assert.Len(t, r.State().Items, 2)
		api.AssertNumberOfCalls(t, "GetJSON", 1)
	})
}

func TestReconciler_RemoteWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("add applies returned cart", func(t *testing.T) {
		api := new(MockAPI)
		api.On("PostJSON", mock.Anything, "/cart", mock.MatchedBy(func(body map[string]any) bool {
			return body["productId"] == "p1" && body["quantity"] == 2 && body["color"] == "red"
		})).Return(json.RawMessage(twoLineCart), nil).Once()
		r, rec := newRemoteReconciler(api)

		s, err := r.AddProduct(ctx, "p1", 2, AddPayload{Options: map[string]any{"color": "red"}})
		require.NoError(t, err)
		assert.Len(t, s.Items, 2)
		assert.Len(t, rec.updated, 1)
		api.AssertExpectations(t)
	})

	t.Run("add without items forces a refresh", func(t *testing.T) {
		api := new(MockAPI)
		api.On("PostJSON", mock.Anything, "/cart", mock.Anything).Return(json.RawMessage(`{"status":"success"}`), nil).Once()
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		r, _ := newRemoteReconciler(api)

		s, err := r.AddProduct(ctx, "p1", 1, AddPayload{})
		require.NoError(t, err)
		assert.Len(t, s.Items, 2)
		api.AssertExpectations(t)
	})

	t.Run("add requires a product id", func(t *testing.T) {
		api := new(MockAPI)
		r, _ := newRemoteReconciler(api)

		_, err := r.AddProduct(ctx, "", 1, AddPayload{})
		assert.ErrorIs(t, err, ErrProductIDRequired)
		api.AssertNotCalled(t, "PostJSON", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quantity update applies totals only", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		api.On("PatchJSON", mock.Anything, "/cart/items/i1", map[string]any{"quantity": 5}).
			Return(json.RawMessage(`{"data":{"cart":{"_id":"c1","totalPrice":55,"items":[]}}}`), nil).Once()
		r, rec := newRemoteReconciler(api)

		_, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		s, err := r.UpdateQuantity(ctx, "i1", 5)
		require.NoError(t, err)

		assert.Len(t, s.Items, 2)
		assert.Equal(t, 55.0, s.Totals.Total)
		require.Len(t, rec.totals, 1)
		assert.Equal(t, 55.0, rec.totals[0].Total)
		assert.Len(t, rec.updated, 1)
	})

	t.Run("quantity zero removes", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		api.On("DeleteJSON", mock.Anything, "/cart/items/i1").
			Return(json.RawMessage(`{"data":{"cart":{"_id":"c1","items":[{"_id":"i2","product":{"_id":"p2","price":5}}]}}}`), nil).Once()
		r, _ := newRemoteReconciler(api)

		_, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		s, err := r.UpdateQuantity(ctx, "i1", 0)
		require.NoError(t, err)

		_, found := s.Find("i1")
		assert.False(t, found)
		api.AssertNotCalled(t, "PatchJSON", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("silent remove fires no event", func(t *testing.T) {
		api := new(MockAPI)
		api.On("DeleteJSON", mock.Anything, "/cart/items/i1").
			Return(json.RawMessage(`{"items":[{"_id":"i2","productId":"p2","price":5}]}`), nil).Once()
		r, rec := newRemoteReconciler(api)

		s, err := r.RemoveItem(ctx, "i1", RemoveOptions{Silent: true})
		require.NoError(t, err)
		assert.Len(t, s.Items, 1)
		assert.Empty(t, rec.updated)
	})

	t.Run("remove with empty answer forces a refresh", func(t *testing.T) {
		api := new(MockAPI)
		api.On("DeleteJSON", mock.Anything, "/cart/items/i1").Return(json.RawMessage(`{}`), nil).Once()
		api.On("GetJSON", mock.Anything, "/cart").Return(nil, &apiclient.APIError{Status: 404}).Once()
		r, _ := newRemoteReconciler(api)

		s, err := r.RemoveItem(ctx, "i1", RemoveOptions{})
		require.NoError(t, err)
		assert.True(t, s.IsLoaded)
		assert.Empty(t, s.Items)
		api.AssertExpectations(t)
	})

	t.Run("clear with empty answer resets", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		api.On("PatchJSON", mock.Anything, "/cart/clear", map[string]any{}).Return(json.RawMessage(`{}`), nil).Once()
		r, rec := newRemoteReconciler(api)

		_, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		s, err := r.Clear(ctx)
		require.NoError(t, err)
		assert.Empty(t, s.Items)
		assert.False(t, s.IsLoaded)
		assert.Equal(t, pricing.Totals{}, s.Totals)
		assert.Len(t, rec.updated, 2)
	})

	t.Run("write errors propagate and keep state", func(t *testing.T) {
		api := new(MockAPI)
		api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil).Once()
		api.On("PostJSON", mock.Anything, "/cart", mock.Anything).Return(nil, &apiclient.APIError{Status: 422, Message: "out of stock"}).Once()
		r, _ := newRemoteReconciler(api)

		_, err := r.Refresh(ctx, false)
		require.NoError(t, err)

		s, err := r.AddProduct(ctx, "p3", 1, AddPayload{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFailedAddItem)
		assert.Equal(t, 422, apiclient.StatusOf(err))
		assert.Len(t, s.Items, 2)
	})
}

func TestReconciler_PicksBackendPerCall(t *testing.T) {
	ctx := context.Background()
	authenticated := false

	api := new(MockAPI)
	api.On("PostJSON", mock.Anything, "/cart", mock.Anything).Return(json.RawMessage(twoLineCart), nil).Once()

	meta := metadata.New(16)
	r := NewReconciler(
		AuthFunc(func() bool { return authenticated }),
		NewGuestStore(meta),
		NewRemoteBackend(api, NewNormalizer(meta)),
		nil,
	)

	s, err := r.AddProduct(ctx, "g1", 1, AddPayload{Price: 7})
	require.NoError(t, err)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "g1", s.Items[0].ID)
	api.AssertNotCalled(t, "PostJSON", mock.Anything, mock.Anything, mock.Anything)

	authenticated = true
	s, err = r.AddProduct(ctx, "p1", 1, AddPayload{})
	require.NoError(t, err)
	assert.Len(t, s.Items, 2)
	assert.Equal(t, "c1", s.ID)
	api.AssertExpectations(t)
}

func TestReconciler_ResetAndLocalQuantity(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil)
	r, rec := newRemoteReconciler(api)

	_, err := r.Refresh(ctx, false)
	require.NoError(t, err)

	item, kept := r.ApplyLocalQuantity("i1", 4)
	assert.True(t, kept)
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, 5, r.ItemCount())

	_, kept = r.ApplyLocalQuantity("i2", 0)
	assert.False(t, kept)
	assert.Len(t, r.State().Items, 1)

	_, kept = r.ApplyLocalQuantity("missing", 2)
	assert.False(t, kept)

	r.Reset(ResetOptions{Silent: true})
	assert.Len(t, rec.updated, 1)
	s := r.State()
	assert.Empty(t, s.Items)
	assert.False(t, s.IsLoaded)
	assert.Empty(t, s.ID)

	r.Reset(ResetOptions{})
	assert.Len(t, rec.updated, 2)
}

func TestReconciler_StateIsACopy(t *testing.T) {
	api := new(MockAPI)
	api.On("GetJSON", mock.Anything, "/cart").Return(json.RawMessage(twoLineCart), nil)
	r, _ := newRemoteReconciler(api)
	_, err := r.Refresh(context.Background(), false)
	require.NoError(t, err)

	s := r.State()
	s.Items[0].Quantity = 99

	assert.Equal(t, 2, r.State().Items[0].Quantity)
}

// gatedBackend blocks each Add until the test releases it.
type gatedBackend struct {
	started chan string
	release map[string]chan struct{}
	results map[string]Snapshot
}

func (g *gatedBackend) Remote() bool { return true }

func (g *gatedBackend) Fetch(ctx context.Context) (Snapshot, error) {
	return Snapshot{}, errors.New("not used")
}

func (g *gatedBackend) Add(ctx context.Context, productID string, quantity int, payload AddPayload) (Snapshot, error) {
	g.started <- productID
	<-g.release[productID]
	return g.results[productID], nil
}

func (g *gatedBackend) SetQuantity(ctx context.Context, itemID string, quantity int) (Snapshot, ApplyMode, error) {
	return Snapshot{}, ApplyTotals, errors.New("not used")
}

func (g *gatedBackend) Remove(ctx context.Context, itemID string) (Snapshot, error) {
	return Snapshot{}, errors.New("not used")
}

func (g *gatedBackend) Clear(ctx context.Context) (Snapshot, error) {
	return Snapshot{}, errors.New("not used")
}

func TestReconciler_LastIssuedWins(t *testing.T) {
	ctx := context.Background()
	line := func(id string) Snapshot {
		items := []Item{{ID: id, ProductID: id, Quantity: 1, Price: 10, Stock: DefaultStock}}
		return Snapshot{ID: "c1", Items: items, Totals: pricing.ComputeTotals(items, pricing.Overrides{})}
	}

	backend := &gatedBackend{
		started: make(chan string),
		release: map[string]chan struct{}{"older": make(chan struct{}), "newer": make(chan struct{})},
		results: map[string]Snapshot{"older": line("older"), "newer": line("newer")},
	}
	r := NewReconciler(AuthFunc(func() bool { return true }), NewGuestStore(metadata.New(4)), backend, nil)

	done := make(chan struct{}, 2)
	go func() {
		_, _ = r.AddProduct(ctx, "older", 1, AddPayload{})
		done <- struct{}{}
	}()
	require.Equal(t, "older", <-backend.started)

	go func() {
		_, _ = r.AddProduct(ctx, "newer", 1, AddPayload{})
		done <- struct{}{}
	}()
	require.Equal(t, "newer", <-backend.started)

	close(backend.release["newer"])
	<-done
	close(backend.release["older"])

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("older add never returned")
	}

	s := r.State()
	require.Len(t, s.Items, 1)
	assert.Equal(t, "newer", s.Items[0].ID)
}

func TestEvents_Unsubscribe(t *testing.T) {
	e := NewEvents()
	calls := 0
	unsubscribe := e.OnLoading(func(bool) { calls++ })

	e.emitLoading(true)
	unsubscribe()
	e.emitLoading(false)

	assert.Equal(t, 1, calls)
}

func TestIsEmptyCart(t *testing.T) {
	assert.True(t, IsEmptyCart(&apiclient.APIError{Status: 404}))
	assert.True(t, IsEmptyCart(&apiclient.APIError{Status: 400, Message: "Cart is empty"}))
	assert.True(t, IsEmptyCart(errors.New("no items in cart")))
	assert.False(t, IsEmptyCart(&apiclient.APIError{Status: 500, Message: "boom"}))
	assert.False(t, IsEmptyCart(nil))
}
