// Package handler exposes the checkout HTTP API: order placement and
// history for authenticated buyers, plus the public product catalog.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/trendora/checkout/internal/domain/coupon"
	"github.com/trendora/checkout/internal/domain/inventory"
	"github.com/trendora/checkout/internal/domain/order"
	"github.com/trendora/checkout/internal/domain/product"
	"github.com/trendora/checkout/internal/idempotency"
	"github.com/trendora/checkout/internal/validate"
)

// Handler routes API requests to the order service and product repository.
type Handler struct {
	orderService *order.Service
	products     product.Repository
	idem         idempotency.Store
	auth         *Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orderService *order.Service,
	products product.Repository,
	idem idempotency.Store,
	auth *Authenticator,
) *Handler {
	return &Handler{
		orderService: orderService,
		products:     products,
		idem:         idem,
		auth:         auth,
	}
}

// Register binds all routes to the provided ServeMux. Order routes require
// a bearer token; the catalog is public.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/orders", h.auth.Require(http.HandlerFunc(h.placeOrder)))
	mux.Handle("GET /api/orders", h.auth.Require(http.HandlerFunc(h.listOrders)))
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// mapOrderError converts domain errors to HTTP status and message. Buyer
// mistakes surface with their message; everything else is logged server-side
// and returned as an opaque 500.
func mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validate.ErrEmptyCart),
		errors.Is(err, validate.ErrInvalidQuantity),
		errors.Is(err, validate.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, order.ErrUnknownPaymentMethod):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, coupon.ErrInvalidCoupon):
		writeError(w, http.StatusBadRequest, "invalid coupon code")
		return
	case errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrBelowMinimum),
		errors.Is(err, coupon.ErrUsageLimitReached):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		notFound     *order.ProductNotFoundError
		invalidSize  *order.InvalidSizeError
		insufficient *inventory.InsufficientStockError
		mismatch     *order.AmountMismatchError
	)
	switch {
	case errors.As(err, &notFound),
		errors.As(err, &invalidSize),
		errors.As(err, &insufficient),
		errors.As(err, &mismatch):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	zctx.From(r.Context()).Error("order request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
