package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// GenerateDiscount handles POST /admin/discount/generate.
func (h *Handler) GenerateDiscount(w http.ResponseWriter, r *http.Request) {
	code, err := h.admin.GenerateDiscount(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCode(e, *code) })
}

// AvailableDiscounts handles GET /admin/discount/available.
func (h *Handler) AvailableDiscounts(w http.ResponseWriter, r *http.Request) {
	codes, err := h.admin.AvailableDiscounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCodes(e, codes) })
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.admin.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStats(e, st) })
}
