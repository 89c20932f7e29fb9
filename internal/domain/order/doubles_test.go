package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nveliz/tienda-backend/internal/domain/audit"
	"github.com/nveliz/tienda-backend/internal/domain/catalog"
	"github.com/nveliz/tienda-backend/internal/domain/user"
)

// memOrders is an in-memory Repository.
type memOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[uuid.UUID]Order)}
}

func cloneOrder(o Order) Order {
	items := make([]LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

func (m *memOrders) Get(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *memOrders) Update(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *memOrders) ListByOwner(_ context.Context, ownerID uuid.UUID, page Page) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Order
	for _, o := range m.orders {
		if o.OwnerID == ownerID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page), len(all), nil
}

func (m *memOrders) ListByStatus(_ context.Context, status Status, f Filter, page Page) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Order
	for _, o := range m.orders {
		if o.Status != status {
			continue
		}
		if f.CreatedAfter != nil && o.CreatedAt.Before(*f.CreatedAfter) {
			continue
		}
		if f.CreatedBefore != nil && o.CreatedAt.After(*f.CreatedBefore) {
			continue
		}
		all = append(all, cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool {
		var less bool
		if f.SortBy == SortByTotal {
			less = all[i].Total.LessThan(all[j].Total)
		} else {
			less = all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		if f.SortDir == SortDesc {
			return !less
		}
		return less
	})
	return paginate(all, page), len(all), nil
}

func paginate(all []Order, page Page) []Order {
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (m *memOrders) snapshot() map[uuid.UUID]Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := make(map[uuid.UUID]Order, len(m.orders))
	for id, o := range m.orders {
		snap[id] = cloneOrder(o)
	}
	return snap
}

func (m *memOrders) restore(snap map[uuid.UUID]Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = snap
}

// memInventory is an in-memory catalog.Inventory with per-product sales
// counters.
type memInventory struct {
	mu       sync.Mutex
	variants map[uuid.UUID]catalog.Variant
	sales    map[uuid.UUID]int64
}

func newMemInventory() *memInventory {
	return &memInventory{
		variants: make(map[uuid.UUID]catalog.Variant),
		sales:    make(map[uuid.UUID]int64),
	}
}

func (m *memInventory) GetVariant(_ context.Context, id uuid.UUID) (*catalog.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.variants[id]
	if !ok {
		return nil, catalog.ErrVariantNotFound
	}
	return &v, nil
}

func (m *memInventory) GetVariants(_ context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []catalog.Variant
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memInventory) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.variants[id]
	if !ok {
		return catalog.ErrVariantNotFound
	}
	if v.Stock+delta < 0 {
		return catalog.ErrStockExhausted
	}
	v.Stock += delta
	m.variants[id] = v
	return nil
}

func (m *memInventory) IncrementSales(_ context.Context, variantID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.variants[variantID]
	if !ok {
		return catalog.ErrVariantNotFound
	}
	m.sales[v.ProductID] += int64(qty)
	return nil
}

func (m *memInventory) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variants[id].Stock
}

func (m *memInventory) setStock(id uuid.UUID, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.variants[id]
	v.Stock = stock
	m.variants[id] = v
}

func (m *memInventory) setEnabled(id uuid.UUID, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.variants[id]
	v.Enabled = enabled
	m.variants[id] = v
}

func (m *memInventory) setPrice(id uuid.UUID, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.variants[id]
	v.Price = price
	m.variants[id] = v
}

func (m *memInventory) salesFor(variantID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sales[m.variants[variantID].ProductID]
}

type invSnapshot struct {
	variants map[uuid.UUID]catalog.Variant
	sales    map[uuid.UUID]int64
}

func (m *memInventory) snapshot() invSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := invSnapshot{
		variants: make(map[uuid.UUID]catalog.Variant, len(m.variants)),
		sales:    make(map[uuid.UUID]int64, len(m.sales)),
	}
	for id, v := range m.variants {
		snap.variants[id] = v
	}
	for id, n := range m.sales {
		snap.sales[id] = n
	}
	return snap
}

func (m *memInventory) restore(snap invSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants = snap.variants
	m.sales = snap.sales
}

// memUsers is an in-memory user.Repository.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]user.User)}
}

func (m *memUsers) Get(_ context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

// memTx implements TxRunner with snapshot rollback, so a failed callback
// leaves orders and inventory exactly as they were.
type memTx struct {
	orders *memOrders
	inv    *memInventory
}

func (t *memTx) WithinTx(_ context.Context, fn func(orders Repository, inv catalog.Inventory) error) error {
	ordersSnap := t.orders.snapshot()
	invSnap := t.inv.snapshot()

	if err := fn(t.orders, t.inv); err != nil {
		t.orders.restore(ordersSnap)
		t.inv.restore(invSnap)
		return err
	}
	return nil
}

// captureRecorder collects audit entries for assertions.
type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *captureRecorder) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *captureRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

// fixture wires the lifecycle engine and line-item manager against the
// in-memory doubles.
type fixture struct {
	orders *memOrders
	inv    *memInventory
	users  *memUsers
	rec    *captureRecorder
	svc    *Service
	items  *ItemService
}

func newFixture() *fixture {
	orders := newMemOrders()
	inv := newMemInventory()
	users := newMemUsers()
	rec := &captureRecorder{}
	locker := NewLocker()
	tx := &memTx{orders: orders, inv: inv}

	return &fixture{
		orders: orders,
		inv:    inv,
		users:  users,
		rec:    rec,
		svc:    NewService(orders, inv, users, tx, rec, locker),
		items:  NewItemService(orders, inv, rec, locker),
	}
}

func (f *fixture) user(role user.Role) uuid.UUID {
	id := uuid.New()
	f.users.mu.Lock()
	defer f.users.mu.Unlock()

	f.users.users[id] = user.User{
		ID:        id,
		Name:      "test user",
		Role:      role,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	return id
}

func (f *fixture) variant(price string, stock int) uuid.UUID {
	return f.addVariant(price, stock, true)
}

func (f *fixture) addVariant(price string, stock int, enabled bool) uuid.UUID {
	id := uuid.New()
	f.inv.mu.Lock()
	defer f.inv.mu.Unlock()

	f.inv.variants[id] = catalog.Variant{
		ID:        id,
		ProductID: uuid.New(),
		Size:      "M",
		Stock:     stock,
		Enabled:   enabled,
		Price:     decimal.RequireFromString(price),
		CreatedAt: time.Now().UTC(),
	}
	return id
}
