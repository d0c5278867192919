// Package handler serves the storefront HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// CheckoutService converts a cart into an order.
type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// AdminService exposes discount administration and store statistics.
type AdminService interface {
	GenerateDiscount(ctx context.Context) (*discount.Code, error)
	AvailableDiscounts(ctx context.Context) ([]discount.Code, error)
	Stats(ctx context.Context) (*admin.Stats, error)
}

// Handler binds the domain services to HTTP routes.
type Handler struct {
	items    catalog.Repository
	carts    cart.Repository
	checkout CheckoutService
	admin    AdminService
	validate *validator.Validate
	guard    *APIKeyGuard
}

// Option configures a Handler.
type Option func(*Handler)

// WithAdminGuard protects the admin routes with g.
func WithAdminGuard(g *APIKeyGuard) Option {
	return func(h *Handler) { h.guard = g }
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	items catalog.Repository,
	carts cart.Repository,
	checkoutService CheckoutService,
	adminService AdminService,
	opts ...Option,
) *Handler {
	h := &Handler{
		items:    items,
		carts:    carts,
		checkout: checkoutService,
		admin:    adminService,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the API routes, relative to the mount point.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/", h.CreateItem)
		r.Get("/{item_id}", h.GetItem)
	})
	r.Route("/cart", func(r chi.Router) {
		r.Post("/add", h.AddToCart)
		r.Get("/{user_id}", h.GetCart)
		r.Delete("/{user_id}/item/{item_id}", h.RemoveFromCart)
		r.Delete("/{user_id}/clear", h.ClearCart)
	})
	r.Post("/checkout", h.Checkout)
	r.Route("/admin", func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Middleware)
		}
		r.Post("/discount/generate", h.GenerateDiscount)
		r.Get("/discount/available", h.AvailableDiscounts)
		r.Get("/stats", h.Stats)
	})
	return r
}
