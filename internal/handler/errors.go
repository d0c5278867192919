package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// errBadRequest marks malformed or invalid request input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrap(errBadRequest, fmt.Sprintf(format, args...))
}

type apiError struct {
	status  int
	reason  string
	message string
}

// mapError converts domain errors to API errors. Unknown errors are internal.
func mapError(err error) apiError {
	var mErr *discount.MilestoneNotReachedError
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		return apiError{http.StatusBadRequest, "empty_cart", "Cart is empty"}
	case errors.Is(err, discount.ErrInvalidOrUsed):
		return apiError{http.StatusBadRequest, "invalid_or_used_discount", "Invalid or already used discount code"}
	case errors.As(err, &mErr):
		return apiError{http.StatusBadRequest, "milestone_not_reached", fmt.Sprintf(
			"Discount code can only be generated every %d orders. Current order count: %d",
			mErr.Milestone, mErr.CurrentOrderCount,
		)}
	case errors.Is(err, discount.ErrDiscountAlreadyAvailable):
		return apiError{http.StatusBadRequest, "discount_already_available",
			"A discount code is already available and unused. Use it before generating a new one."}
	case errors.Is(err, discount.ErrCodeAlreadyIssued):
		return apiError{http.StatusBadRequest, "discount_already_issued",
			"A discount code for the latest order has already been issued. Place more orders to reach the next milestone."}
	case errors.Is(err, discount.ErrNoOrdersYet):
		return apiError{http.StatusBadRequest, "no_orders_yet", "No orders found"}
	case errors.Is(err, catalog.ErrItemNotFound):
		return apiError{http.StatusNotFound, "item_not_found", "Item not found"}
	case errors.Is(err, cart.ErrLineNotFound):
		return apiError{http.StatusNotFound, "cart_line_not_found", "Cart item not found"}
	case errors.Is(err, store.ErrConflict):
		return apiError{http.StatusConflict, "conflict", "Concurrent update, retry the request"}
	case errors.Is(err, errBadRequest),
		errors.Is(err, checkout.ErrUserRequired),
		errors.Is(err, catalog.ErrInvalidItem),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityTooLarge),
		errors.Is(err, cart.ErrTotalTooLarge):
		return apiError{http.StatusBadRequest, "bad_request", err.Error()}
	default:
		return apiError{http.StatusInternalServerError, "internal", "Internal server error"}
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := mapError(err)
	if e.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	httpmiddleware.WriteError(w, e.status, e.reason, e.message)
}
