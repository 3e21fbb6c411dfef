// Package handler exposes the domain services over HTTP. It is a thin
// adapter: request decoding, identity extraction, and error-to-status
// mapping. All business rules live in the domain packages.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-backend/internal/domain/order"
	"github.com/xenking/shop-backend/internal/domain/product"
)

// userIDHeader carries the authenticated user identity, set by the edge
// proxy in front of this service.
const userIDHeader = "X-User-ID"

// Handler wires the HTTP routes to the order service and product catalog.
type Handler struct {
	products product.Repository
	orders   *order.Service
}

// New constructs a Handler with the required domain dependencies.
func New(products product.Repository, orders *order.Service) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
	}
}

// Routes registers all API routes on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Patch("/{orderID}", h.updateOrder)
		r.Patch("/{orderID}/status", h.updateOrderStatus)
	})

	r.Post("/payments/notify", h.paymentNotify)

	return r
}

func requesterID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}
