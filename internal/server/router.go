// Package server is the session gateway: it keeps one cart engine per
// browser session and exposes it as JSON over HTTP.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers the gateway routes. Middlewares wrap every route in
// the order given.
func NewRouter(h *Handler, middlewares ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(middlewares...)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)

	c := r.PathPrefix("/cart").Subrouter()
	c.HandleFunc("", h.GetCart).Methods(http.MethodGet)
	c.HandleFunc("", h.AddItem).Methods(http.MethodPost)
	c.HandleFunc("/clear", h.ClearCart).Methods(http.MethodPatch)
	c.HandleFunc("/items/{itemId}", h.UpdateItem).Methods(http.MethodPatch)
	c.HandleFunc("/items/{itemId}", h.RemoveItem).Methods(http.MethodDelete)
	c.HandleFunc("/items/{itemId}/increment", h.Increment).Methods(http.MethodPost)
	c.HandleFunc("/items/{itemId}/decrement", h.Decrement).Methods(http.MethodPost)

	r.HandleFunc("/checkout/summary", h.CheckoutSummary).Methods(http.MethodGet)
	r.HandleFunc("/checkout/address", h.SelectAddress).Methods(http.MethodPost)

	r.HandleFunc("/session/logout", h.Logout).Methods(http.MethodPost)

	return r
}
