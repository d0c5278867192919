package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/internal/storage/memory"
)

// --- Mock implementations ---

type mockCheckout struct {
	lastReq checkout.Request
	result  *checkout.Result
	err     error
}

func (m *mockCheckout) Checkout(_ context.Context, req checkout.Request) (*checkout.Result, error) {
	m.lastReq = req
	return m.result, m.err
}

type mockAdmin struct {
	code     *discount.Code
	codes    []discount.Code
	stats    *admin.Stats
	err      error
	statsErr error
}

func (m *mockAdmin) GenerateDiscount(context.Context) (*discount.Code, error) {
	return m.code, m.err
}

func (m *mockAdmin) AvailableDiscounts(context.Context) ([]discount.Code, error) {
	return m.codes, m.err
}

func (m *mockAdmin) Stats(context.Context) (*admin.Stats, error) {
	return m.stats, m.statsErr
}

// --- Helpers ---

type fixture struct {
	db       *memory.Store
	checkout *mockCheckout
	admin    *mockAdmin
	server   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       memory.New(),
		checkout: &mockCheckout{},
		admin:    &mockAdmin{},
	}
	f.server = NewHandler(f.db.Items(), f.db.Carts(), f.checkout, f.admin).Router()
	return f
}

func (f *fixture) item(t *testing.T, name, price string) int64 {
	t.Helper()
	it := catalog.Item{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, f.db.Items().Create(context.Background(), &it))
	return it.ID
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	var out any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func obj(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected object, got %T", v)
	return m
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, body any, status int, reason string) map[string]any {
	t.Helper()
	assert.Equal(t, status, w.Code)
	m := obj(t, body)
	assert.Equal(t, float64(status), m["code"])
	assert.Equal(t, reason, m["reason"])
	return m
}

// --- Items ---

func TestItems(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body)

	w, body = f.do(t, http.MethodPost, "/items", `{"name":"Laptop","price":999.99,"description":"Fast"}`)
	require.Equal(t, http.StatusOK, w.Code)
	created := obj(t, body)
	assert.Equal(t, "Laptop", created["name"])
	assert.Equal(t, 999.99, created["price"])
	id := created["id"].(float64)

	w, body = f.do(t, http.MethodGet, fmt.Sprintf("/items/%d", int64(id)), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, obj(t, body)["id"])

	w, body = f.do(t, http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body, 1)
}

func TestItems_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		reason string
	}{
		{"NotFound", http.MethodGet, "/items/42", "", http.StatusNotFound, "item_not_found"},
		{"BadID", http.MethodGet, "/items/abc", "", http.StatusBadRequest, "bad_request"},
		{"MissingName", http.MethodPost, "/items", `{"price":1}`, http.StatusBadRequest, "bad_request"},
		{"MissingPrice", http.MethodPost, "/items", `{"name":"x"}`, http.StatusBadRequest, "bad_request"},
		{"NegativePrice", http.MethodPost, "/items", `{"name":"x","price":"-1.00"}`, http.StatusBadRequest, "bad_request"},
		{"SubCentPrice", http.MethodPost, "/items", `{"name":"x","price":10.005}`, http.StatusBadRequest, "bad_request"},
		{"PriceTooLarge", http.MethodPost, "/items", `{"name":"x","price":"10000000000"}`, http.StatusBadRequest, "bad_request"},
		{"Malformed", http.MethodPost, "/items", `{"name":`, http.StatusBadRequest, "bad_request"},
		{"EmptyBody", http.MethodPost, "/items", "", http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, tt.method, tt.target, tt.body)
			assertError(t, w, body, tt.status, tt.reason)
		})
	}
}

// --- Cart ---

func TestCart_Flow(t *testing.T) {
	f := newFixture(t)
	mouse := f.item(t, "Mouse", "29.99")

	add := fmt.Sprintf(`{"item_id":%d}`, mouse)
	w, body := f.do(t, http.MethodPost, "/cart/add?user_id=u1", add)
	require.Equal(t, http.StatusOK, w.Code)
	line := obj(t, body)
	assert.Equal(t, float64(mouse), line["item_id"])
	assert.Equal(t, float64(1), line["quantity"])
	assert.Equal(t, "Mouse", obj(t, line["item"])["name"])

	w, body = f.do(t, http.MethodPost, "/cart/add?user_id=u1", fmt.Sprintf(`{"item_id":%d,"quantity":2}`, mouse))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), obj(t, body)["quantity"])

	w, body = f.do(t, http.MethodGet, "/cart/u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body, 1)

	remove := fmt.Sprintf("/cart/u1/item/%d", mouse)
	w, body = f.do(t, http.MethodDelete, remove, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Item removed from cart", obj(t, body)["message"])

	w, body = f.do(t, http.MethodDelete, remove, "")
	assertError(t, w, body, http.StatusNotFound, "cart_line_not_found")

	f.do(t, http.MethodPost, "/cart/add?user_id=u1", add)
	w, body = f.do(t, http.MethodDelete, "/cart/u1/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cart cleared", obj(t, body)["message"])

	lines, err := f.db.Carts().List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCart_AddErrors(t *testing.T) {
	f := newFixture(t)
	f.item(t, "Mouse", "29.99")

	tests := []struct {
		name   string
		target string
		body   string
		status int
		reason string
	}{
		{"UnknownItem", "/cart/add?user_id=u1", `{"item_id":99}`, http.StatusNotFound, "item_not_found"},
		{"NoUser", "/cart/add", `{"item_id":1}`, http.StatusBadRequest, "bad_request"},
		{"ZeroQuantity", "/cart/add?user_id=u1", `{"item_id":1,"quantity":0}`, http.StatusBadRequest, "bad_request"},
		{"NoItem", "/cart/add?user_id=u1", `{"quantity":1}`, http.StatusBadRequest, "bad_request"},
		{"WrongType", "/cart/add?user_id=u1", `{"item_id":"one"}`, http.StatusBadRequest, "bad_request"},
		{"HugeQuantity", "/cart/add?user_id=u1", `{"item_id":1,"quantity":9223372036854775807}`, http.StatusBadRequest, "bad_request"},
		{"OverLimit", "/cart/add?user_id=u1", `{"item_id":1,"quantity":10001}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodPost, tt.target, tt.body)
			assertError(t, w, body, tt.status, tt.reason)
		})
	}
}

func TestCart_MergeOverLimit(t *testing.T) {
	f := newFixture(t)
	id := f.item(t, "Mouse", "29.99")

	w, _ := f.do(t, http.MethodPost, "/cart/add?user_id=u1", fmt.Sprintf(`{"item_id":%d,"quantity":10000}`, id))
	require.Equal(t, http.StatusOK, w.Code)

	w, body := f.do(t, http.MethodPost, "/cart/add?user_id=u1", fmt.Sprintf(`{"item_id":%d,"quantity":1}`, id))
	assertError(t, w, body, http.StatusBadRequest, "bad_request")

	lines, err := f.db.Carts().List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 10000, lines[0].Quantity)
}

func TestCart_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.db.InjectFault(func(op string) error {
		if op == "cart.List" {
			return errors.New("disk on fire")
		}
		return nil
	})

	w, body := f.do(t, http.MethodGet, "/cart/u1", "")
	m := assertError(t, w, body, http.StatusInternalServerError, "internal")
	assert.NotContains(t, m["message"], "disk")
}

// --- Checkout ---

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	code := "SAVE10_5"
	f.checkout.result = &checkout.Result{
		OrderID:        7,
		TotalAmount:    decimal.RequireFromString("20"),
		DiscountAmount: decimal.RequireFromString("2"),
		FinalAmount:    decimal.RequireFromString("18"),
		DiscountCode:   &code,
	}

	w, _ := f.do(t, http.MethodPost, "/checkout", `{"user_id":"u1","discount_code":"SAVE10_5"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, checkout.Request{UserID: "u1", DiscountCode: "SAVE10_5"}, f.checkout.lastReq)
	assert.JSONEq(t,
		`{"order_id":7,"total_amount":20.00,"discount_amount":2.00,"final_amount":18.00,"discount_code":"SAVE10_5"}`,
		w.Body.String(),
	)
}

func TestCheckout_NoCode(t *testing.T) {
	f := newFixture(t)
	f.checkout.result = &checkout.Result{OrderID: 1, TotalAmount: decimal.NewFromInt(5), FinalAmount: decimal.NewFromInt(5)}

	w, body := f.do(t, http.MethodPost, "/checkout", `{"user_id":"u1","discount_code":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.checkout.lastReq.DiscountCode)
	m := obj(t, body)
	assert.Nil(t, m["discount_code"])
	assert.Contains(t, m, "discount_code")
}

func TestCheckout_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		reason string
		msg    string
	}{
		{
			name: "EmptyCart", body: `{"user_id":"u1"}`,
			err:    &checkout.AbortedError{State: checkout.StateStarted, Err: cart.ErrEmptyCart},
			status: http.StatusBadRequest, reason: "empty_cart", msg: "Cart is empty",
		},
		{
			name: "InvalidCode", body: `{"user_id":"u1","discount_code":"NOPE"}`,
			err:    &checkout.AbortedError{State: checkout.StateCartRead, Err: discount.ErrInvalidOrUsed},
			status: http.StatusBadRequest, reason: "invalid_or_used_discount", msg: "Invalid or already used discount code",
		},
		{
			name: "Conflict", body: `{"user_id":"u1"}`,
			err:    errors.Wrap(store.ErrConflict, "lock timeout"),
			status: http.StatusConflict, reason: "conflict",
		},
		{
			name: "Internal", body: `{"user_id":"u1"}`,
			err:    errors.New("connection refused"),
			status: http.StatusInternalServerError, reason: "internal", msg: "Internal server error",
		},
		{name: "MissingUser", body: `{}`, status: http.StatusBadRequest, reason: "bad_request"},
		{name: "NotObject", body: `[]`, status: http.StatusBadRequest, reason: "bad_request"},
		{name: "LongCode", body: `{"user_id":"u1","discount_code":"` + strings.Repeat("A", 65) + `"}`,
			status: http.StatusBadRequest, reason: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.checkout.err = tt.err

			w, body := f.do(t, http.MethodPost, "/checkout", tt.body)
			m := assertError(t, w, body, tt.status, tt.reason)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, m["message"])
			}
		})
	}
}

// --- Admin ---

func TestGenerateDiscount(t *testing.T) {
	f := newFixture(t)
	orderID := int64(5)
	f.admin.code = &discount.Code{
		ID:         1,
		Code:       "SAVE10_5",
		Percentage: decimal.NewFromInt(10),
		OrderID:    &orderID,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	w, _ := f.do(t, http.MethodPost, "/admin/discount/generate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"id":1,"code":"SAVE10_5","discount_percentage":10,"is_used":false,"created_at":"2026-01-02T03:04:05Z"}`,
		w.Body.String(),
	)
}

func TestGenerateDiscount_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
		msg    string
	}{
		{
			name:   "Milestone",
			err:    &discount.MilestoneNotReachedError{Milestone: 5, CurrentOrderCount: 3},
			reason: "milestone_not_reached",
			msg:    "Discount code can only be generated every 5 orders. Current order count: 3",
		},
		{
			name:   "AlreadyAvailable",
			err:    discount.ErrDiscountAlreadyAvailable,
			reason: "discount_already_available",
			msg:    "A discount code is already available and unused. Use it before generating a new one.",
		},
		{
			name:   "AlreadyIssued",
			err:    discount.ErrCodeAlreadyIssued,
			reason: "discount_already_issued",
			msg:    "A discount code for the latest order has already been issued. Place more orders to reach the next milestone.",
		},
		{
			name:   "NoOrders",
			err:    errors.Wrap(discount.ErrNoOrdersYet, "generate"),
			reason: "no_orders_yet",
			msg:    "No orders found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.admin.err = tt.err

			w, body := f.do(t, http.MethodPost, "/admin/discount/generate", "")
			m := assertError(t, w, body, http.StatusBadRequest, tt.reason)
			assert.Equal(t, tt.msg, m["message"])
		})
	}
}

func TestAvailableDiscounts(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/admin/discount/available", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body)

	f.admin.codes = []discount.Code{{ID: 2, Code: "SAVE10_10", Percentage: decimal.NewFromInt(10)}}
	w, body = f.do(t, http.MethodGet, "/admin/discount/available", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body, 1)
	assert.Equal(t, "SAVE10_10", obj(t, body.([]any)[0])["code"])
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.admin.stats = &admin.Stats{
		TotalItemsPurchased: 3,
		TotalPurchaseAmount: decimal.RequireFromString("89.97"),
		TotalDiscountAmount: decimal.RequireFromString("29.99"),
	}

	w, _ := f.do(t, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"total_items_purchased":3,"total_purchase_amount":89.97,"discount_codes":[],"total_discount_amount":29.99}`,
		w.Body.String(),
	)

	f.admin.statsErr = errors.New("boom")
	w, body := f.do(t, http.MethodGet, "/admin/stats", "")
	assertError(t, w, body, http.StatusInternalServerError, "internal")
}

func TestRouter_Fallbacks(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/nope", "")
	assertError(t, w, body, http.StatusNotFound, "not_found")

	w, body = f.do(t, http.MethodPut, "/checkout", "")
	assertError(t, w, body, http.StatusMethodNotAllowed, "method_not_allowed")
}
