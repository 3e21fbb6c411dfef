package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-backend/internal/domain/coupon"
	"github.com/xenking/shop-backend/internal/domain/order"
	"github.com/xenking/shop-backend/internal/domain/product"
)

// errorResponse is the uniform error body for every endpoint.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeError maps domain errors to HTTP statuses. Terminal request errors
// keep their message; anything unclassified is a 500 with the detail logged
// rather than leaked.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch status, ok := statusOf(err); {
	case ok:
		writeErrorMessage(w, status, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func statusOf(err error) (int, bool) {
	var (
		invalidQty *order.InvalidQuantityError
		notFound   *order.ProductNotFoundError
		noVariant  *order.VariantNotFoundError
		noStock    *order.InsufficientStockError
		badState   *order.InvalidOrderStateError
		badMove    *order.InvalidTransitionError
		validation *order.ValidationError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.As(err, &invalidQty),
		errors.As(err, &validation):
		return http.StatusBadRequest, true
	case errors.As(err, &notFound),
		errors.As(err, &noVariant),
		errors.As(err, &noStock),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden, true
	case errors.As(err, &badState),
		errors.As(err, &badMove):
		return http.StatusConflict, true
	case errors.Is(err, order.ErrTransactionConflict):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}
