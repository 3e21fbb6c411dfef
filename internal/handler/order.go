package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-backend/internal/domain/order"
)

type orderItemReq struct {
	ProductID string `json:"productId"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

type addressReq struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
}

type createOrderReq struct {
	Items           []orderItemReq `json:"items"`
	CouponCode      string         `json:"couponCode,omitempty"`
	ShippingAddress addressReq     `json:"shippingAddress"`
	MobilePhone     string         `json:"mobilePhone,omitempty"`
	PaymentMethod   string         `json:"paymentMethod,omitempty"`
}

type updateOrderReq struct {
	Items           []orderItemReq `json:"items,omitempty"`
	ShippingAddress *addressReq    `json:"shippingAddress,omitempty"`
	MobilePhone     *string        `json:"mobilePhone,omitempty"`
}

type updateStatusReq struct {
	Status      *string    `json:"status,omitempty"`
	Paid        *bool      `json:"paid,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	Available   *bool      `json:"available,omitempty"`
	Deleted     *bool      `json:"deleted,omitempty"`
}

type orderItemResp struct {
	ProductID string  `json:"productId"`
	Color     string  `json:"color,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderResp struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []orderItemResp `json:"items"`
	Total           float64         `json:"total"`
	DiscountPercent float64         `json:"discountPercent"`
	CouponCode      string          `json:"couponCode,omitempty"`
	ShippingAddress addressReq      `json:"shippingAddress"`
	MobilePhone     string          `json:"mobilePhone,omitempty"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Status          string          `json:"status"`
	Paid            bool            `json:"paid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func toOrderResp(o *order.Order) orderResp {
	items := make([]orderItemResp, len(o.Items))
	for i, line := range o.Items {
		items[i] = orderItemResp{
			ProductID: line.ProductID,
			Color:     line.Color,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.InexactFloat64(),
		}
	}
	return orderResp{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		Total:           o.Total.InexactFloat64(),
		DiscountPercent: o.DiscountPercent.InexactFloat64(),
		CouponCode:      o.CouponCode,
		ShippingAddress: addressReq(o.ShippingAddress),
		MobilePhone:     o.MobilePhone,
		PaymentMethod:   o.PaymentMethod,
		Status:          o.Status.String(),
		Paid:            o.Paid,
		PaidAt:          o.PaidAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toItemInputs(items []orderItemReq) []order.ItemInput {
	if items == nil {
		return nil
	}
	out := make([]order.ItemInput, len(items))
	for i, item := range items {
		out[i] = order.ItemInput{
			ProductID: item.ProductID,
			Color:     item.Color,
			Quantity:  item.Quantity,
		}
	}
	return out
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:          userID,
		Items:           toItemInputs(req.Items),
		CouponCode:      req.CouponCode,
		ShippingAddress: order.Address(req.ShippingAddress),
		MobilePhone:     req.MobilePhone,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if o.UserID != userID {
		writeError(w, r, order.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderResp, len(orders))
	for i := range orders {
		out[i] = toOrderResp(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	userID := requesterID(r)
	if userID == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req updateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := order.ClientPatch{
		Items:       toItemInputs(req.Items),
		MobilePhone: req.MobilePhone,
	}
	if req.ShippingAddress != nil {
		addr := order.Address(*req.ShippingAddress)
		patch.ShippingAddress = &addr
	}

	o, err := h.orders.UpdateByClient(r.Context(), chi.URLParam(r, "orderID"), userID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := order.AdminPatch{
		Paid:        req.Paid,
		PaidAt:      req.PaidAt,
		DeliveredAt: req.DeliveredAt,
		Available:   req.Available,
		Deleted:     req.Deleted,
	}
	if req.Status != nil {
		status := order.Status(*req.Status)
		patch.Status = &status
	}

	o, err := h.orders.UpdateStatusByAdmin(r.Context(), chi.URLParam(r, "orderID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// paymentEvent is the minimal shape of a payment provider notification.
type paymentEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"orderId"`
}

// paymentNotify acknowledges payment notifications. Unrecognized event
// types are acked with 200 so the sender stops redelivering them; only
// completed payments change order state.
func (h *Handler) paymentNotify(w http.ResponseWriter, r *http.Request) {
	var event paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	switch event.Type {
	case "payment.completed":
		if _, err := h.orders.MarkPaid(r.Context(), event.OrderID); err != nil {
			writeError(w, r, err)
			return
		}
	default:
		zctx.From(r.Context()).Info("ignoring payment event", zap.String("type", event.Type))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
