package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trendora/checkout/internal/domain/order"
	"github.com/trendora/checkout/internal/idempotency"
	"github.com/trendora/checkout/internal/validate"
)

type addressPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type placeOrderPayload struct {
	Items           []validate.OrderItem `json:"items"`
	Address         addressPayload       `json:"address"`
	PaymentMethod   string               `json:"payment_method"`
	PaymentCaptured bool                 `json:"payment_captured"`
	Amount          decimal.Decimal      `json:"amount"`
	CouponCode      string               `json:"coupon_code"`
}

type orderResponse struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	Lines         []order.LineSnapshot `json:"lines"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	DeliveryFee   decimal.Decimal      `json:"delivery_fee"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod string               `json:"payment_method"`
	Paid          bool                 `json:"paid"`
	CouponCode    string               `json:"coupon_code,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

type placeOrderResponse struct {
	orderResponse
	CartCleared bool `json:"cart_cleared"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		Status:        string(o.Status),
		Lines:         o.Lines,
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		DeliveryFee:   o.DeliveryFee,
		Amount:        o.Amount,
		PaymentMethod: string(o.PaymentMethod),
		Paid:          o.Paid,
		CouponCode:    o.CouponCode,
		CreatedAt:     o.CreatedAt,
	}
}

// placeOrder handles POST /api/orders. An optional Idempotency-Key header
// makes the request safe to retry: the key is claimed before any stock is
// touched, so a duplicate in flight cannot run the pipeline a second time,
// and the stored response is replayed verbatim on later resubmissions.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" {
		won, err := h.idem.Reserve(ctx, idemKey)
		if err != nil {
			zctx.From(ctx).Error("idempotency claim failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !won {
			stored, err := h.idem.Get(ctx, idemKey)
			if err != nil {
				zctx.From(ctx).Error("idempotency lookup failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if stored == nil {
				writeError(w, http.StatusConflict,
					"a request with this idempotency key is in progress")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	var payload placeOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.releaseKey(ctx, idemKey)
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	result, err := h.orderService.PlaceOrder(ctx, order.PlaceOrderRequest{
		BuyerID: BuyerID(ctx),
		Items:   payload.Items,
		Address: order.Address{
			FirstName: payload.Address.FirstName,
			LastName:  payload.Address.LastName,
			Street:    payload.Address.Street,
			City:      payload.Address.City,
			State:     payload.Address.State,
			Zip:       payload.Address.Zip,
			Country:   payload.Address.Country,
			Phone:     payload.Address.Phone,
		},
		PaymentMethod:   payload.PaymentMethod,
		PaymentCaptured: payload.PaymentCaptured,
		Amount:          payload.Amount,
		CouponCode:      payload.CouponCode,
	})
	if err != nil {
		h.releaseKey(ctx, idemKey)
		mapOrderError(w, r, err)
		return
	}

	resp := placeOrderResponse{
		orderResponse: toOrderResponse(result.Order),
		CartCleared:   result.CartCleared,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		zctx.From(ctx).Error("encode order response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if idemKey != "" {
		err := h.idem.Save(ctx, idemKey, idempotency.StoredResponse{
			StatusCode: http.StatusCreated,
			Body:       buf.Bytes(),
			OrderID:    result.Order.ID,
		})
		if err != nil {
			// The order is already placed; replay protection is degraded
			// but the response must still go out.
			zctx.From(ctx).Error("idempotency save failed",
				zap.String("order_id", result.Order.ID),
				zap.Error(err),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(buf.Bytes())
}

// releaseKey frees a claimed idempotency key after a failed placement so
// the client can retry with the same key. No-op when the request carried
// no key.
func (h *Handler) releaseKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.idem.Release(ctx, key); err != nil {
		zctx.From(ctx).Error("idempotency release failed",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
}

// listOrders handles GET /api/orders, returning the buyer's history.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.orderService.ListOrders(r.Context(), BuyerID(r.Context()), page, limit)
	if err != nil {
		zctx.From(r.Context()).Error("list orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}
