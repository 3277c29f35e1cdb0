package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"storefront-cart/internal/address"
	"storefront-cart/internal/auth"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/shipping"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handler struct {
	sessions *SessionManager
	validate *validator.Validate
}

func NewHandler(sessions *SessionManager) *Handler {
	return &Handler{sessions: sessions, validate: validator.New()}
}

type addItemRequest struct {
	ProductID         string         `json:"productId" validate:"required"`
	Quantity          int            `json:"quantity" validate:"gte=0"`
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Price             any            `json:"price"`
	Image             string         `json:"image"`
	InstallationPrice any            `json:"installationPrice"`
	Stock             *int           `json:"stock" validate:"omitempty,gte=0"`
	Options           map[string]any `json:"options"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type selectAddressRequest struct {
	AddressID string `json:"addressId" validate:"required"`
}

type cartResponse struct {
	Cart          cart.State `json:"cart"`
	ItemCount     int        `json:"itemCount"`
	Authenticated bool       `json:"authenticated"`
	Notices       []string   `json:"notices"`
}

type quantityResponse struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
	Pending  bool   `json:"pending"`
}

type checkoutResponse struct {
	Summary   shipping.Summary   `json:"summary"`
	Shipping  shipping.Details   `json:"shipping"`
	Address   *address.Address   `json:"address"`
	Addresses []*address.Address `json:"addresses,omitempty"`
}

// session resolves the caller's session and tags the context with its id.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, context.Context) {
	s := h.sessions.Resolve(w, r)
	return s, logger.WithSessionID(r.Context(), s.ID)
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func (h *Handler) respondCart(w http.ResponseWriter, s *Session, status int) {
	writeJSON(w, status, cartResponse{
		Cart:          s.Cart.State(),
		ItemCount:     s.Cart.ItemCount(),
		Authenticated: s.Authenticated(),
		Notices:       s.Notices(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Stats())
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	if _, err := s.Cart.Refresh(ctx, force); err != nil {
		writeError(w, err)
		return
	}
	h.respondCart(w, s, http.StatusOK)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)

	var req addItemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	_, err := s.Cart.AddProduct(ctx, req.ProductID, req.Quantity, cart.AddPayload{
		ID:                req.ID,
		Name:              req.Name,
		Price:             req.Price,
		Image:             req.Image,
		InstallationPrice: req.InstallationPrice,
		Stock:             req.Stock,
		Options:           req.Options,
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("add to cart failed",
			zap.String("product_id", req.ProductID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	h.respondCart(w, s, http.StatusCreated)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)
	itemID := mux.Vars(r)["itemId"]

	var req updateQuantityRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// signed-in updates only bring back totals, so the line moves first
	quantity := *req.Quantity
	s.Sync.Cancel(itemID)
	s.Cart.ApplyLocalQuantity(itemID, quantity)

	if _, err := s.Cart.UpdateQuantity(ctx, itemID, quantity); err != nil {
		if _, rerr := s.Cart.Refresh(ctx, true); rerr != nil {
			logger.FromCtx(ctx).Warn("reload after failed update also failed",
				zap.String("item_id", itemID),
				zap.Error(rerr),
			)
		}
		writeError(w, err)
		return
	}
	h.respondCart(w, s, http.StatusOK)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)
	itemID := mux.Vars(r)["itemId"]
	silent, _ := strconv.ParseBool(r.URL.Query().Get("silent"))

	if _, err := s.Cart.RemoveItem(ctx, itemID, cart.RemoveOptions{Silent: silent}); err != nil {
		writeError(w, err)
		return
	}
	h.respondCart(w, s, http.StatusOK)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)

	if _, err := s.Cart.Clear(ctx); err != nil {
		writeError(w, err)
		return
	}
	h.respondCart(w, s, http.StatusOK)
}

func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*cart.QuantitySync).Increment)
}

func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*cart.QuantitySync).Decrement)
}

// step applies a +/- click locally and answers before the debounced write
// reaches the API.
func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(*cart.QuantitySync, context.Context, string) (int, error)) {
	s, ctx := h.session(w, r)
	itemID := mux.Vars(r)["itemId"]

	qty, err := fn(s.Sync, ctx, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, quantityResponse{
		ItemID:   itemID,
		Quantity: qty,
		Pending:  s.Sync.Pending(itemID),
	})
}

// CheckoutSummary prices the cart against the selected address. Signed-in
// sessions get their address list loaded and the default selected on first
// use.
func (h *Handler) CheckoutSummary(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)
	reload, _ := strconv.ParseBool(r.URL.Query().Get("reload"))

	if _, err := s.Cart.Refresh(ctx, false); err != nil {
		writeError(w, err)
		return
	}

	addresses := []*address.Address{}
	if s.Authenticated() {
		list, err := s.Addresses.Load(ctx, reload)
		if err != nil {
			logger.FromCtx(ctx).Warn("checkout without addresses", zap.Error(err))
		} else {
			addresses = list
		}
	}

	selected := s.Addresses.Selected()
	switch {
	case selected == nil:
		s.Pricer.ClearAddress()
	case reload || s.Pricer.Selected() != selected:
		s.Pricer.SelectAddress(ctx, selected)
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Summary:   s.Pricer.Summary(),
		Shipping:  s.Pricer.Details(),
		Address:   selected,
		Addresses: addresses,
	})
}

func (h *Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)

	var req selectAddressRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.Addresses.Load(ctx, false); err != nil {
		writeError(w, err)
		return
	}
	selected, err := s.Addresses.Select(req.AddressID)
	if err != nil {
		writeError(w, err)
		return
	}
	details := s.Pricer.SelectAddress(ctx, selected)

	logger.FromCtx(ctx).Info("checkout address selected",
		zap.String("address_id", selected.ID),
		zap.String("zone_id", details.ZoneID),
	)
	writeJSON(w, http.StatusOK, checkoutResponse{
		Summary:  s.Pricer.Summary(),
		Shipping: details,
		Address:  selected,
	})
}

// Logout forgets the session's credentials and its local cart.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(w, r)
	s.logout()
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	logger.FromCtx(ctx).Info("session logged out")
	h.respondCart(w, s, http.StatusOK)
}
