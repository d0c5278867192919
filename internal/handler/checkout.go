package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/checkout"
)

// Checkout handles POST /checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req checkoutRequest
	if err := req.Decode(d); err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}

	res, err := h.checkout.Checkout(r.Context(), checkout.Request{
		UserID:       req.UserID,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCheckout(e, res) })
}
