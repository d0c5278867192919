package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// AddToCart handles POST /cart/add?user_id=.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if err := h.validUserID(userID); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req addToCartRequest
	if err := req.Decode(d); err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}

	line, err := h.carts.Add(r.Context(), userID, req.ItemID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCartLine(e, *line) })
}

// GetCart handles GET /cart/{user_id}.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.validUserID(userID); err != nil {
		h.fail(w, r, err)
		return
	}
	lines, err := h.carts.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, lines) })
}

// RemoveFromCart handles DELETE /cart/{user_id}/item/{item_id}.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.validUserID(userID); err != nil {
		h.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.carts.Remove(r.Context(), userID, itemID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMessage(e, "Item removed from cart") })
}

// ClearCart handles DELETE /cart/{user_id}/clear.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.validUserID(userID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMessage(e, "Cart cleared") })
}

func (h *Handler) validUserID(userID string) error {
	if err := h.validate.Var(userID, "required,max=128"); err != nil {
		return badRequest("invalid user_id: %v", err)
	}
	return nil
}
