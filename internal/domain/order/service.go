package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/shop-backend/internal/domain/coupon"
	"github.com/xenking/shop-backend/internal/domain/product"
	"github.com/xenking/shop-backend/internal/domain/tx"
	"github.com/xenking/shop-backend/pkg/retry"
)

// CreateOrderRequest holds the input for placing an order.
type CreateOrderRequest struct {
	UserID          string
	Items           []ItemInput
	CouponCode      string
	ShippingAddress Address
	MobilePhone     string
	PaymentMethod   string
}

// ClientPatch is the restricted set of fields a customer may change on
// their own order while it is still processing. Nil fields are unchanged.
type ClientPatch struct {
	Items           []ItemInput
	ShippingAddress *Address
	MobilePhone     *string
}

// AdminPatch is the set of fields a status-update operation may change.
type AdminPatch struct {
	Status      *Status
	Paid        *bool
	PaidAt      *time.Time
	DeliveredAt *time.Time
	Available   *bool
	Deleted     *bool
}

// Service coordinates order placement and updates. Order creation runs as a
// single transaction: fetch products for update, validate availability,
// resolve the coupon, price the cart, persist the order, and decrement
// stock, committing all of it atomically. Serialization conflicts drive a
// bounded retry of the whole sequence; every other failure aborts and
// propagates unchanged.
type Service struct {
	txm     tx.Manager
	catalog product.Repository
	coupons coupon.Resolver
	orders  Repository
	retries retry.Policy
	now     func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	txm tx.Manager,
	catalog product.Repository,
	coupons coupon.Resolver,
	orders Repository,
) *Service {
	return &Service{
		txm:     txm,
		catalog: catalog,
		coupons: coupons,
		orders:  orders,
		retries: retry.DefaultPolicy,
		now:     time.Now,
	}
}

// CreateOrder places a new order. On success exactly one order exists and
// the stock of every referenced variant is decremented by the requested
// quantity; on any failure neither is visible.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	var created *Order
	err := retry.Do(ctx, s.retries, func(ctx context.Context) error {
		o, err := s.createOnce(ctx, req)
		if err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		if retry.IsTransient(err) {
			zctx.From(ctx).Warn("order creation exhausted retries",
				zap.Int("attempts", s.retries.MaxAttempts), zap.Error(err))
			return nil, ErrTransactionConflict
		}
		return nil, err
	}
	return created, nil
}

// createOnce runs one attempt of the order creation transaction.
func (s *Service) createOnce(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	scope, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer s.abort(ctx, scope)

	snapshots, err := s.fetchSnapshots(ctx, scope, productIDs(req.Items))
	if err != nil {
		return nil, err
	}

	reservation, err := ValidateAvailability(req.Items, snapshots)
	if err != nil {
		return nil, err
	}

	discount, err := s.coupons.ResolveDiscount(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}

	lines, err := PriceItems(req.Items, snapshots)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           lines,
		Total:           totalOf(lines, discount),
		DiscountPercent: discount,
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
		MobilePhone:     req.MobilePhone,
		PaymentMethod:   req.PaymentMethod,
		Status:          StatusProcessing,
		Available:       true,
	}
	if err := s.orders.Insert(ctx, scope, o); err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	if err := reservation.Commit(ctx, s.catalog, scope); err != nil {
		return nil, err
	}

	if err := scope.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit transaction")
	}
	return o, nil
}

// UpdateByClient applies a restricted patch to the requester's own order.
// The order must still be processing. An item change re-validates stock and
// recomputes the total under a fresh transaction, reserving only the delta
// over what the order already holds.
func (s *Service) UpdateByClient(ctx context.Context, orderID, requesterID string, patch ClientPatch) (*Order, error) {
	existing, err := s.getVisible(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != requesterID {
		return nil, ErrForbidden
	}
	if existing.Status != StatusProcessing {
		return nil, &InvalidOrderStateError{Status: existing.Status}
	}

	if patch.Items == nil && patch.ShippingAddress == nil && patch.MobilePhone == nil {
		return existing, nil
	}

	if patch.Items == nil {
		updated, err := s.orders.UpdateFields(ctx, nil, orderID, Fields{
			ShippingAddress: patch.ShippingAddress,
			MobilePhone:     patch.MobilePhone,
		})
		return updated, errors.Wrap(err, "update order")
	}

	if len(patch.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range patch.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	var updated *Order
	err = retry.Do(ctx, s.retries, func(ctx context.Context) error {
		o, err := s.updateItemsOnce(ctx, orderID, requesterID, patch)
		if err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		if retry.IsTransient(err) {
			return nil, ErrTransactionConflict
		}
		return nil, err
	}
	return updated, nil
}

// updateItemsOnce runs one attempt of the item-change transaction. The order
// is re-read for update inside the scope so the delta is computed against
// its authoritative current items, not a stale pre-transaction view.
func (s *Service) updateItemsOnce(ctx context.Context, orderID, requesterID string, patch ClientPatch) (*Order, error) {
	scope, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer s.abort(ctx, scope)

	existing, err := s.orders.FindByIDForUpdate(ctx, scope, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, ErrNotFound
	}
	if existing.UserID != requesterID {
		return nil, ErrForbidden
	}
	if existing.Status != StatusProcessing {
		return nil, &InvalidOrderStateError{Status: existing.Status}
	}

	ids := productIDs(patch.Items)
	for _, line := range existing.Items {
		ids = append(ids, line.ProductID)
	}
	snapshots, err := s.fetchSnapshots(ctx, scope, ids)
	if err != nil {
		return nil, err
	}

	delta, err := ValidateDelta(patch.Items, existing.Items, snapshots)
	if err != nil {
		return nil, err
	}

	lines, err := PriceItems(patch.Items, snapshots)
	if err != nil {
		return nil, err
	}
	total := totalOf(lines, existing.DiscountPercent)

	updated, err := s.orders.UpdateFields(ctx, scope, orderID, Fields{
		Items:           lines,
		Total:           &total,
		ShippingAddress: patch.ShippingAddress,
		MobilePhone:     patch.MobilePhone,
	})
	if err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if err := delta.Commit(ctx, s.catalog, scope); err != nil {
		return nil, err
	}

	if err := scope.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit transaction")
	}
	return updated, nil
}

// UpdateStatusByAdmin applies an administrative patch. Status changes must
// follow the order state machine; orders are never hard-deleted, only
// flagged.
func (s *Service) UpdateStatusByAdmin(ctx context.Context, orderID string, patch AdminPatch) (*Order, error) {
	existing, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	fields := Fields{
		Paid:        patch.Paid,
		PaidAt:      patch.PaidAt,
		DeliveredAt: patch.DeliveredAt,
		Available:   patch.Available,
		Deleted:     patch.Deleted,
	}
	if patch.Status != nil {
		next := *patch.Status
		if !next.Valid() {
			return nil, &ValidationError{Reason: "unknown order status " + next.String()}
		}
		if !existing.Status.CanTransition(next) {
			return nil, &InvalidTransitionError{From: existing.Status, To: next}
		}
		fields.Status = &next
	}
	if fields.Empty() {
		return existing, nil
	}

	updated, err := s.orders.UpdateFields(ctx, nil, orderID, fields)
	return updated, errors.Wrap(err, "update order")
}

// MarkPaid records a confirmed payment for the order. Already-paid orders
// are acknowledged without change so payment notifications stay idempotent.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	existing, err := s.getVisible(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.Paid {
		return existing, nil
	}
	if !existing.Status.CanTransition(StatusPaid) {
		return nil, &InvalidTransitionError{From: existing.Status, To: StatusPaid}
	}

	paid := true
	paidAt := s.now().UTC()
	status := StatusPaid
	updated, err := s.orders.UpdateFields(ctx, nil, orderID, Fields{
		Status: &status,
		Paid:   &paid,
		PaidAt: &paidAt,
	})
	return updated, errors.Wrap(err, "update order")
}

// GetByID returns the order, hiding soft-deleted records.
func (s *Service) GetByID(ctx context.Context, orderID string) (*Order, error) {
	return s.getVisible(ctx, orderID)
}

// ListByUser returns all orders owned by the given user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) getVisible(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Deleted {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) fetchSnapshots(ctx context.Context, scope tx.Scope, ids []string) (map[string]product.Product, error) {
	fetched, err := s.catalog.FetchByIDs(ctx, scope, dedupe(ids))
	if err != nil {
		return nil, errors.Wrap(err, "fetch products")
	}
	snapshots := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		snapshots[p.ID] = p
	}
	return snapshots, nil
}

// abort rolls the scope back. It runs detached from request cancellation so
// a cancelled caller still releases the transaction. Abort failure is
// logged distinctly and never masks the error that triggered it.
func (s *Service) abort(ctx context.Context, scope tx.Scope) {
	if err := scope.Abort(context.WithoutCancel(ctx)); err != nil {
		zctx.From(ctx).Error("transaction abort failed", zap.Error(err))
	}
}

func productIDs(items []ItemInput) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
