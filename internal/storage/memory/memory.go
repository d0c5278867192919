// Package memory implements the storefront stores in process memory.
//
// Transactions are serialized by a single mutex and work on a private copy of
// the state that replaces the shared one only on commit. The backend is meant
// for local development and tests; data is lost on exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

type cartRow struct {
	id       int64
	userID   string
	itemID   int64
	quantity int
}

type state struct {
	items    map[int64]catalog.Item
	cart     []cartRow
	orders   []order.Order
	codes    []discount.Code
	counter  int64
	itemSeq  int64
	cartSeq  int64
	orderSeq int64
	codeSeq  int64
}

func (s *state) clone() *state {
	c := *s
	c.items = make(map[int64]catalog.Item, len(s.items))
	for id, it := range s.items {
		c.items[id] = it
	}
	c.cart = append([]cartRow(nil), s.cart...)
	c.orders = make([]order.Order, len(s.orders))
	for i, o := range s.orders {
		o.Lines = append([]order.Line(nil), o.Lines...)
		c.orders[i] = o
	}
	c.codes = append([]discount.Code(nil), s.codes...)
	return &c
}

// Store is an in-memory storefront backend.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
	fault func(op string) error
}

var (
	_ store.Transactor   = (*Store)(nil)
	_ admin.StatsReader  = (*Store)(nil)
	_ catalog.Repository = (*ItemRepository)(nil)
	_ cart.Repository    = (*CartRepository)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		state: &state{items: make(map[int64]catalog.Item)},
		now:   time.Now,
	}
}

// InjectFault makes every store operation call fn first and fail with the
// returned error when it is non-nil. Operation names are "<table>.<method>",
// for example "orders.Insert". Passing nil removes the hook.
func (s *Store) InjectFault(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) check(op string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op)
}

// InTx runs fn against a private copy of the state and publishes it only
// when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &tx{s: s, st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// ItemRepository is the catalog view of a Store.
type ItemRepository struct{ s *Store }

// Items returns the catalog repository backed by s.
func (s *Store) Items() *ItemRepository { return &ItemRepository{s: s} }

// List returns all items ordered by id.
func (r *ItemRepository) List(_ context.Context) ([]catalog.Item, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("items.List"); err != nil {
		return nil, err
	}

	items := make([]catalog.Item, 0, len(s.state.items))
	for _, it := range s.state.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// GetByID returns catalog.ErrItemNotFound for unknown ids.
func (r *ItemRepository) GetByID(_ context.Context, id int64) (*catalog.Item, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("items.GetByID"); err != nil {
		return nil, err
	}

	it, ok := s.state.items[id]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	return &it, nil
}

// FindIDByName returns the id of the lowest-id item called name.
func (r *ItemRepository) FindIDByName(_ context.Context, name string) (int64, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("items.FindIDByName"); err != nil {
		return 0, false, err
	}

	var found int64
	for id, it := range s.state.items {
		if it.Name == name && (found == 0 || id < found) {
			found = id
		}
	}
	return found, found != 0, nil
}

// Create assigns the next id to item and stores it.
func (r *ItemRepository) Create(_ context.Context, item *catalog.Item) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("items.Create"); err != nil {
		return err
	}

	s.state.itemSeq++
	item.ID = s.state.itemSeq
	s.state.items[item.ID] = *item
	return nil
}

// CartRepository is the cart view of a Store.
type CartRepository struct{ s *Store }

// Carts returns the cart repository backed by s.
func (s *Store) Carts() *CartRepository { return &CartRepository{s: s} }

// Add merges the quantity into an existing line or appends a new one.
func (r *CartRepository) Add(_ context.Context, userID string, itemID int64, quantity int) (*cart.Line, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("cart.Add"); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, cart.ErrInvalidQuantity
	}
	if quantity > cart.MaxQuantity {
		return nil, cart.ErrQuantityTooLarge
	}

	it, ok := s.state.items[itemID]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}

	for i := range s.state.cart {
		row := &s.state.cart[i]
		if row.userID == userID && row.itemID == itemID {
			if row.quantity > cart.MaxQuantity-quantity {
				return nil, cart.ErrQuantityTooLarge
			}
			row.quantity += quantity
			return toLine(*row, it), nil
		}
	}

	s.state.cartSeq++
	row := cartRow{id: s.state.cartSeq, userID: userID, itemID: itemID, quantity: quantity}
	s.state.cart = append(s.state.cart, row)
	return toLine(row, it), nil
}

func toLine(row cartRow, it catalog.Item) *cart.Line {
	return &cart.Line{
		ID:       row.id,
		UserID:   row.userID,
		ItemID:   row.itemID,
		Quantity: row.quantity,
		Item:     it,
	}
}

// List returns the user's cart lines joined with their items.
func (r *CartRepository) List(_ context.Context, userID string) ([]cart.Line, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("cart.List"); err != nil {
		return nil, err
	}

	var lines []cart.Line
	for _, row := range s.state.cart {
		if row.userID != userID {
			continue
		}
		lines = append(lines, *toLine(row, s.state.items[row.itemID]))
	}
	return lines, nil
}

// Remove deletes a single line. Returns cart.ErrLineNotFound when absent.
func (r *CartRepository) Remove(_ context.Context, userID string, itemID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("cart.Remove"); err != nil {
		return err
	}

	for i, row := range s.state.cart {
		if row.userID == userID && row.itemID == itemID {
			s.state.cart = append(s.state.cart[:i], s.state.cart[i+1:]...)
			return nil
		}
	}
	return cart.ErrLineNotFound
}

// Clear removes all of the user's lines.
func (r *CartRepository) Clear(_ context.Context, userID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("cart.Clear"); err != nil {
		return err
	}
	s.state.clearCart(userID)
	return nil
}

// Stats aggregates orders and lists every discount code.
func (s *Store) Stats(_ context.Context) (*admin.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("stats.Stats"); err != nil {
		return nil, err
	}

	st := &admin.Stats{
		TotalPurchaseAmount: decimal.Zero,
		TotalDiscountAmount: decimal.Zero,
		DiscountCodes:       append([]discount.Code{}, s.state.codes...),
	}
	for _, o := range s.state.orders {
		st.TotalPurchaseAmount = st.TotalPurchaseAmount.Add(o.TotalAmount)
		st.TotalDiscountAmount = st.TotalDiscountAmount.Add(o.DiscountAmount)
		for _, l := range o.Lines {
			st.TotalItemsPurchased += int64(l.Quantity)
		}
	}
	return st, nil
}

// Snapshot returns copies of the committed orders and codes. Tests use it to
// assert what a transaction left behind.
func (s *Store) Snapshot() ([]order.Order, []discount.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.state.clone()
	return c.orders, c.codes
}

// SeedCode stores a code outside of any checkout.
func (s *Store) SeedCode(code string, percentage decimal.Decimal, used bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.codeSeq++
	s.state.codes = append(s.state.codes, discount.Code{
		ID:         s.state.codeSeq,
		Code:       code,
		Percentage: percentage,
		Used:       used,
		CreatedAt:  s.now(),
	})
}

func (st *state) clearCart(userID string) {
	kept := st.cart[:0]
	for _, row := range st.cart {
		if row.userID != userID {
			kept = append(kept, row)
		}
	}
	st.cart = kept
}

func (st *state) findCode(code string) *discount.Code {
	for i := range st.codes {
		if st.codes[i].Code == code {
			return &st.codes[i]
		}
	}
	return nil
}

// tx exposes the working copy of a single transaction.
type tx struct {
	s  *Store
	st *state
}

func (t *tx) Carts() store.Carts        { return txCarts{t} }
func (t *tx) Orders() store.Orders      { return txOrders{t} }
func (t *tx) Discounts() discount.Store { return txDiscounts{t} }
func (t *tx) check(op string) error     { return t.s.check(op) }
func (t *tx) stamp() time.Time          { return t.s.now().UTC() }

type txCarts struct{ *tx }

func (c txCarts) PricedLines(_ context.Context, userID string) ([]cart.PricedLine, error) {
	if err := c.check("cart.PricedLines"); err != nil {
		return nil, err
	}
	var lines []cart.PricedLine
	for _, row := range c.st.cart {
		if row.userID != userID {
			continue
		}
		lines = append(lines, cart.PricedLine{
			ItemID:    row.itemID,
			Quantity:  row.quantity,
			UnitPrice: c.st.items[row.itemID].Price,
		})
	}
	return lines, nil
}

func (c txCarts) Clear(_ context.Context, userID string) error {
	if err := c.check("cart.Clear"); err != nil {
		return err
	}
	c.st.clearCart(userID)
	return nil
}

type txOrders struct{ *tx }

func (o txOrders) NextOrdinal(_ context.Context) (int64, error) {
	if err := o.check("orders.NextOrdinal"); err != nil {
		return 0, err
	}
	o.st.counter++
	return o.st.counter, nil
}

func (o txOrders) Insert(_ context.Context, ord *order.Order) error {
	if err := o.check("orders.Insert"); err != nil {
		return err
	}
	o.st.orderSeq++
	ord.ID = o.st.orderSeq
	ord.CreatedAt = o.stamp()

	stored := *ord
	stored.Lines = nil
	o.st.orders = append(o.st.orders, stored)
	return nil
}

func (o txOrders) InsertLines(_ context.Context, orderID int64, lines []order.Line) error {
	if err := o.check("orders.InsertLines"); err != nil {
		return err
	}
	for i := range o.st.orders {
		if o.st.orders[i].ID == orderID {
			o.st.orders[i].Lines = append(o.st.orders[i].Lines, lines...)
			return nil
		}
	}
	return errors.Errorf("order %d not found", orderID)
}

func (o txOrders) LockOrderCount(_ context.Context) (int64, error) {
	if err := o.check("orders.LockOrderCount"); err != nil {
		return 0, err
	}
	return o.st.counter, nil
}

func (o txOrders) LastOrderID(_ context.Context) (int64, bool, error) {
	if err := o.check("orders.LastOrderID"); err != nil {
		return 0, false, err
	}
	var last int64
	for _, ord := range o.st.orders {
		if ord.ID > last {
			last = ord.ID
		}
	}
	return last, last > 0, nil
}

type txDiscounts struct{ *tx }

func (d txDiscounts) LockUnused(_ context.Context, code string) (*discount.Code, error) {
	if err := d.check("discounts.LockUnused"); err != nil {
		return nil, err
	}
	c := d.st.findCode(code)
	if c == nil || c.Used {
		return nil, discount.ErrInvalidOrUsed
	}
	cp := *c
	return &cp, nil
}

func (d txDiscounts) MarkUsed(_ context.Context, code string) error {
	if err := d.check("discounts.MarkUsed"); err != nil {
		return err
	}
	c := d.st.findCode(code)
	if c == nil || c.Used {
		return discount.ErrInvalidOrUsed
	}
	c.Used = true
	return nil
}

func (d txDiscounts) Insert(_ context.Context, c *discount.Code) error {
	if err := d.check("discounts.Insert"); err != nil {
		return err
	}
	if d.st.findCode(c.Code) != nil {
		return discount.ErrCodeExists
	}
	d.st.codeSeq++
	c.ID = d.st.codeSeq
	c.CreatedAt = d.stamp()
	d.st.codes = append(d.st.codes, *c)
	return nil
}

func (d txDiscounts) HasUnused(_ context.Context) (bool, error) {
	if err := d.check("discounts.HasUnused"); err != nil {
		return false, err
	}
	for _, c := range d.st.codes {
		if !c.Used {
			return true, nil
		}
	}
	return false, nil
}

func (d txDiscounts) ListUnused(_ context.Context) ([]discount.Code, error) {
	if err := d.check("discounts.ListUnused"); err != nil {
		return nil, err
	}
	codes := []discount.Code{}
	for _, c := range d.st.codes {
		if !c.Used {
			codes = append(codes, c)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].ID < codes[j].ID })
	return codes, nil
}
