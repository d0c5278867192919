package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// ListItems handles GET /items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItems(e, items) })
}

// GetItem handles GET /items/{item_id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "item_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.items.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, *item) })
}

// CreateItem handles POST /items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req createItemRequest
	if err := req.Decode(d); err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, badRequest("%v", err))
		return
	}

	item := catalog.Item{Name: req.Name, Price: req.Price, Description: req.Description}
	if err := item.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.items.Create(r.Context(), &item); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeItem(e, item) })
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}
