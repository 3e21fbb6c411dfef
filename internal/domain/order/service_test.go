package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-backend/internal/domain/coupon"
	"github.com/xenking/shop-backend/internal/domain/product"
	"github.com/xenking/shop-backend/internal/domain/tx"
	"github.com/xenking/shop-backend/pkg/retry"
)

// --- Transactional in-memory store ---
//
// The fake stages every mutation on its scope and applies the batch on
// Commit, holding a mutex so concurrent attempts serialize the way the
// database would. A decrement that would drive stock negative fails the
// commit with a transient conflict, mimicking a serialization failure.

type conflictError struct{ msg string }

func (e *conflictError) Error() string     { return e.msg }
func (e *conflictError) IsTransient() bool { return true }

type fakeDB struct {
	mu     sync.Mutex
	stock  map[variantKey]int
	prods  map[string]product.Product
	orders map[string]Order

	beginErr   error
	abortErr   error
	commitErrs []error // consumed one per commit before anything is applied

	begun     int
	committed int
	aborted   int
}

func newFakeDB(products ...product.Product) *fakeDB {
	db := &fakeDB{
		stock:  make(map[variantKey]int),
		prods:  make(map[string]product.Product),
		orders: make(map[string]Order),
	}
	for _, p := range products {
		db.prods[p.ID] = p
		for color, qty := range p.Stock {
			db.stock[variantKey{ProductID: p.ID, Color: color}] = qty
		}
	}
	return db
}

func (db *fakeDB) Begin(context.Context) (tx.Scope, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	db.begun++
	return &fakeScope{db: db}, nil
}

func (db *fakeDB) snapshotProduct(id string) (product.Product, bool) {
	p, ok := db.prods[id]
	if !ok {
		return product.Product{}, false
	}
	stock := make(map[string]int, len(p.Stock))
	for color := range p.Stock {
		stock[color] = db.stock[variantKey{ProductID: id, Color: color}]
	}
	p.Stock = stock
	return p, true
}

type fakeScope struct {
	db      *fakeDB
	moves   []stockMove
	inserts []Order
	updates map[string]Fields
	done    bool
}

func (s *fakeScope) Commit(context.Context) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if len(s.db.commitErrs) > 0 {
		err := s.db.commitErrs[0]
		s.db.commitErrs = s.db.commitErrs[1:]
		if err != nil {
			return err
		}
	}
	// Guard stock before applying anything: all or nothing.
	pending := make(map[variantKey]int)
	for _, m := range s.moves {
		pending[variantKey{ProductID: m.ProductID, Color: m.Color}] += m.Qty
	}
	for key, qty := range pending {
		if s.db.stock[key]-qty < 0 {
			return &conflictError{msg: "serialization failure on " + key.ProductID}
		}
	}
	for key, qty := range pending {
		s.db.stock[key] -= qty
	}
	for _, o := range s.inserts {
		s.db.orders[o.ID] = o
	}
	for id, fields := range s.updates {
		o := s.db.orders[id]
		applyFields(&o, fields)
		s.db.orders[id] = o
	}
	s.done = true
	s.db.committed++
	return nil
}

func (s *fakeScope) Abort(context.Context) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.db.aborted++
	return s.db.abortErr
}

func applyFields(o *Order, f Fields) {
	if f.Items != nil {
		o.Items = f.Items
	}
	if f.Total != nil {
		o.Total = *f.Total
	}
	if f.ShippingAddress != nil {
		o.ShippingAddress = *f.ShippingAddress
	}
	if f.MobilePhone != nil {
		o.MobilePhone = *f.MobilePhone
	}
	if f.Status != nil {
		o.Status = *f.Status
	}
	if f.Paid != nil {
		o.Paid = *f.Paid
	}
	if f.PaidAt != nil {
		o.PaidAt = f.PaidAt
	}
	if f.DeliveredAt != nil {
		o.DeliveredAt = f.DeliveredAt
	}
	if f.Available != nil {
		o.Available = *f.Available
	}
	if f.Deleted != nil {
		o.Deleted = *f.Deleted
	}
}

// fakeCatalog implements product.Repository on top of fakeDB.
type fakeCatalog struct {
	db *fakeDB
}

func (c *fakeCatalog) List(context.Context) ([]product.Product, error) { return nil, nil }

func (c *fakeCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	p, ok := c.db.snapshotProduct(id)
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (c *fakeCatalog) FetchByIDs(_ context.Context, _ tx.Scope, ids []string) ([]product.Product, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.db.snapshotProduct(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) DecrementStock(_ context.Context, scope tx.Scope, id, color string, qty int) error {
	s := scope.(*fakeScope)
	s.moves = append(s.moves, stockMove{ProductID: id, Color: color, Qty: qty})
	return nil
}

func (c *fakeCatalog) IncrementStock(_ context.Context, scope tx.Scope, id, color string, qty int) error {
	s := scope.(*fakeScope)
	s.moves = append(s.moves, stockMove{ProductID: id, Color: color, Qty: -qty})
	return nil
}

// fakeOrderRepo implements Repository on top of fakeDB.
type fakeOrderRepo struct {
	db        *fakeDB
	insertErr error
}

func (r *fakeOrderRepo) Insert(_ context.Context, scope tx.Scope, o *Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	s := scope.(*fakeScope)
	s.inserts = append(s.inserts, *o)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id string) (*Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *fakeOrderRepo) FindByIDForUpdate(ctx context.Context, _ tx.Scope, id string) (*Order, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []Order
	for _, o := range r.db.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateFields(_ context.Context, scope tx.Scope, id string, fields Fields) (*Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if scope == nil {
		applyFields(&o, fields)
		r.db.orders[id] = o
		return &o, nil
	}
	s := scope.(*fakeScope)
	if s.updates == nil {
		s.updates = make(map[string]Fields)
	}
	s.updates[id] = fields
	applyFields(&o, fields)
	return &o, nil
}

// fakeResolver implements coupon.Resolver with a fixed answer.
type fakeResolver struct {
	pct decimal.Decimal
	err error
}

func (r *fakeResolver) ResolveDiscount(_ context.Context, code string) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}
	if r.err != nil {
		return decimal.Zero, r.err
	}
	return r.pct, nil
}

// --- Helpers ---

func newTestService(db *fakeDB, resolver coupon.Resolver) (*Service, *fakeOrderRepo) {
	repo := &fakeOrderRepo{db: db}
	svc := NewService(db, &fakeCatalog{db: db}, resolver, repo)
	svc.retries = retry.Policy{MaxAttempts: 5, BaseDelay: time.Microsecond}
	return svc, repo
}

func stockOf(db *fakeDB, id, color string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.stock[variantKey{ProductID: id, Color: color}]
}

var noCoupon = &fakeResolver{}

// --- CreateOrder ---

func TestCreateOrder_Success(t *testing.T) {
	db := newFakeDB(
		testProduct("p1", "10.00", map[string]int{"red": 5}),
		testProduct("p2", "20.00", map[string]int{product.DefaultColor: 3}),
	)
	svc, _ := newTestService(db, noCoupon)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "u1",
		Items: []ItemInput{
			{ProductID: "p1", Color: "red", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
		ShippingAddress: Address{Street: "1 Main St", City: "Springfield", ZipCode: "11111"},
		PaymentMethod:   "cash",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusProcessing, o.Status)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.Total), "got %s", o.Total)
	require.Len(t, o.Items, 2)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Items[0].UnitPrice))

	assert.Equal(t, 3, stockOf(db, "p1", "red"))
	assert.Equal(t, 2, stockOf(db, "p2", product.DefaultColor))
	assert.Equal(t, 1, db.committed)

	// Order is visible after commit.
	stored, err := svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(stored.Total))
}

func TestCreateOrder_CouponTenPercent(t *testing.T) {
	db := newFakeDB(testProduct("p1", "100.00", map[string]int{product.DefaultColor: 1}))
	svc, _ := newTestService(db, &fakeResolver{pct: decimal.NewFromInt(10)})

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:     "u1",
		Items:      []ItemInput{{ProductID: "p1", Quantity: 1}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("90.00").Equal(o.Total), "got %s", o.Total)
	assert.True(t, decimal.NewFromInt(10).Equal(o.DiscountPercent))
	assert.Equal(t, "SAVE10", o.CouponCode)
}

func TestCreateOrder_ExpiredCouponNoOrder(t *testing.T) {
	db := newFakeDB(testProduct("p1", "100.00", map[string]int{product.DefaultColor: 1}))
	svc, _ := newTestService(db, &fakeResolver{err: coupon.ErrExpired})

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:     "u1",
		Items:      []ItemInput{{ProductID: "p1", Quantity: 1}},
		CouponCode: "OLD",
	})
	require.ErrorIs(t, err, coupon.ErrExpired)
	assert.Empty(t, db.orders)
	assert.Equal(t, 1, stockOf(db, "p1", product.DefaultColor))
	assert.Equal(t, 1, db.aborted)
}

func TestCreateOrder_InsufficientStockAtomic(t *testing.T) {
	db := newFakeDB(
		testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}),
		testProduct("p2", "20.00", map[string]int{product.DefaultColor: 1}),
	)
	svc, _ := newTestService(db, noCoupon)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "u1",
		Items: []ItemInput{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	// Nothing committed: no order, no stock movement on either product.
	assert.Empty(t, db.orders)
	assert.Equal(t, 5, stockOf(db, "p1", product.DefaultColor))
	assert.Equal(t, 1, stockOf(db, "p2", product.DefaultColor))
	assert.Equal(t, 0, db.committed)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc, _ := newTestService(newFakeDB(), noCoupon)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{UserID: "u1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(newFakeDB(), noCoupon)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "u1",
		Items:  []ItemInput{{ProductID: "p1", Quantity: 0}},
	})
	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestCreateOrder_InsertErrorNotRetried(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	repo := &fakeOrderRepo{db: db, insertErr: errors.New("db write failed")}
	svc := NewService(db, &fakeCatalog{db: db}, noCoupon, repo)
	svc.retries = retry.Policy{MaxAttempts: 5, BaseDelay: time.Microsecond}

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "u1",
		Items:  []ItemInput{{ProductID: "p1", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order")
	assert.Equal(t, 1, db.begun)
	assert.Equal(t, 5, stockOf(db, "p1", product.DefaultColor))
}

// --- Retry behaviour ---

func TestCreateOrder_RetryBoundExceeded(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	db.commitErrs = []error{
		&conflictError{msg: "conflict 1"},
		&conflictError{msg: "conflict 2"},
		&conflictError{msg: "conflict 3"},
		&conflictError{msg: "conflict 4"},
		&conflictError{msg: "conflict 5"},
	}
	svc, _ := newTestService(db, noCoupon)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "u1",
		Items:  []ItemInput{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrTransactionConflict)
	assert.Equal(t, 5, db.begun)
	assert.Equal(t, 5, db.aborted)
	assert.Empty(t, db.orders)
	assert.Equal(t, 5, stockOf(db, "p1", product.DefaultColor))
}

func TestCreateOrder_ConflictsThenSuccess(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	db.commitErrs = []error{
		&conflictError{msg: "conflict 1"},
		&conflictError{msg: "conflict 2"},
		&conflictError{msg: "conflict 3"},
		&conflictError{msg: "conflict 4"},
	}
	svc, _ := newTestService(db, noCoupon)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "u1",
		Items:  []ItemInput{{ProductID: "p1", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, db.begun)
	assert.Equal(t, 1, db.committed)
	assert.Equal(t, 3, stockOf(db, "p1", product.DefaultColor))
	assert.Len(t, db.orders, 1)
	assert.NotNil(t, o)
}

func TestCreateOrder_NeverDoubleSellsLastUnit(t *testing.T) {
	const buyers = 8
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 1}))
	svc, _ := newTestService(db, noCoupon)

	var (
		wg        sync.WaitGroup
		successes int32
		mu        sync.Mutex
		failures  []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
				UserID: "u1",
				Items:  []ItemInput{{ProductID: "p1", Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, 0, stockOf(db, "p1", product.DefaultColor))
	assert.Len(t, db.orders, 1)
	for _, err := range failures {
		var stockErr *InsufficientStockError
		isStock := errors.As(err, &stockErr)
		isConflict := errors.Is(err, ErrTransactionConflict)
		assert.True(t, isStock || isConflict, "unexpected failure: %v", err)
	}
}

// --- UpdateByClient ---

func seedOrder(t *testing.T, svc *Service, db *fakeDB, items ...ItemInput) *Order {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:          "u1",
		Items:           items,
		ShippingAddress: Address{Street: "1 Main St", City: "Springfield", ZipCode: "11111"},
	})
	require.NoError(t, err)
	return o
}

func TestUpdateByClient_AddressOnly(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	addr := Address{Street: "2 Side St", City: "Shelbyville", ZipCode: "22222"}
	updated, err := svc.UpdateByClient(context.Background(), o.ID, "u1", ClientPatch{ShippingAddress: &addr})
	require.NoError(t, err)
	assert.Equal(t, addr, updated.ShippingAddress)
	assert.True(t, o.Total.Equal(updated.Total))
	assert.Equal(t, 4, stockOf(db, "p1", product.DefaultColor))
}

func TestUpdateByClient_ItemChangeRecomputesTotalAndStock(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, &fakeResolver{pct: decimal.NewFromInt(10)})
	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:     "u1",
		Items:      []ItemInput{{ProductID: "p1", Quantity: 2}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)
	require.Equal(t, 3, stockOf(db, "p1", product.DefaultColor))

	updated, err := svc.UpdateByClient(context.Background(), o.ID, "u1", ClientPatch{
		Items: []ItemInput{{ProductID: "p1", Quantity: 4}},
	})
	require.NoError(t, err)

	// Total keeps the order's recorded discount: 40 * 0.9 = 36.
	assert.True(t, decimal.RequireFromString("36.00").Equal(updated.Total), "got %s", updated.Total)
	assert.Equal(t, 1, stockOf(db, "p1", product.DefaultColor))
}

func TestUpdateByClient_ItemDecreaseRestoresStock(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 4})
	require.Equal(t, 1, stockOf(db, "p1", product.DefaultColor))

	updated, err := svc.UpdateByClient(context.Background(), o.ID, "u1", ClientPatch{
		Items: []ItemInput{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(updated.Total))
	assert.Equal(t, 4, stockOf(db, "p1", product.DefaultColor))
}

func TestUpdateByClient_InsufficientStockLeavesOrderUnchanged(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 3}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 2})

	_, err := svc.UpdateByClient(context.Background(), o.ID, "u1", ClientPatch{
		Items: []ItemInput{{ProductID: "p1", Quantity: 9}},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	stored, err := svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(stored.Total))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, 1, stockOf(db, "p1", product.DefaultColor))
}

func TestUpdateByClient_Forbidden(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	_, err := svc.UpdateByClient(context.Background(), o.ID, "intruder", ClientPatch{
		MobilePhone: ptr("555-0100"),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateByClient_ShippedOrderRejected(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 2})

	// Walk the order to shipped through the admin path.
	for _, next := range []Status{StatusPaid, StatusShipped} {
		s := next
		_, err := svc.UpdateStatusByAdmin(context.Background(), o.ID, AdminPatch{Status: &s})
		require.NoError(t, err)
	}

	_, err := svc.UpdateByClient(context.Background(), o.ID, "u1", ClientPatch{
		Items: []ItemInput{{ProductID: "p1", Quantity: 1}},
	})
	var stateErr *InvalidOrderStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusShipped, stateErr.Status)

	stored, err := svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, 3, stockOf(db, "p1", product.DefaultColor))
}

func TestUpdateByClient_EmptyPatchIsNoOp(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	updated, err := svc.UpdateByClient(context.Background(), o.ID, "u1", ClientPatch{})
	require.NoError(t, err)
	assert.Equal(t, o.ID, updated.ID)
	assert.Equal(t, 1, db.committed)
}

func TestUpdateByClient_UnknownOrder(t *testing.T) {
	svc, _ := newTestService(newFakeDB(), noCoupon)

	_, err := svc.UpdateByClient(context.Background(), "missing", "u1", ClientPatch{})
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Admin updates / payment ---

func TestUpdateStatusByAdmin_ValidTransition(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	paid := StatusPaid
	updated, err := svc.UpdateStatusByAdmin(context.Background(), o.ID, AdminPatch{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
}

func TestUpdateStatusByAdmin_InvalidTransition(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	delivered := StatusDelivered
	_, err := svc.UpdateStatusByAdmin(context.Background(), o.ID, AdminPatch{Status: &delivered})
	var trErr *InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusProcessing, trErr.From)
	assert.Equal(t, StatusDelivered, trErr.To)
}

func TestUpdateStatusByAdmin_SoftDeleteHidesOrder(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	deleted := true
	_, err := svc.UpdateStatusByAdmin(context.Background(), o.ID, AdminPatch{Deleted: &deleted})
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkPaid_SetsStatusAndTimestamp(t *testing.T) {
	db := newFakeDB(testProduct("p1", "10.00", map[string]int{product.DefaultColor: 5}))
	svc, _ := newTestService(db, noCoupon)
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixedNow }
	o := seedOrder(t, svc, db, ItemInput{ProductID: "p1", Quantity: 1})

	updated, err := svc.MarkPaid(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
	assert.True(t, updated.Paid)
	require.NotNil(t, updated.PaidAt)
	assert.Equal(t, fixedNow, *updated.PaidAt)

	// A duplicate notification is acknowledged without change.
	again, err := svc.MarkPaid(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, *again.PaidAt)
}

func ptr[T any](v T) *T { return &v }
