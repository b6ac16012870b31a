package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trendora/checkout/internal/domain/product"
	"github.com/trendora/checkout/internal/validate"
)

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Sizes       []string        `json:"sizes"`
	Stock       int             `json:"stock"`
	Bestseller  bool            `json:"bestseller"`
}

func toProductResponse(p product.Product, now time.Time) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.EffectivePrice(now),
		Category:    p.Category,
		SubCategory: p.SubCategory,
		Sizes:       p.Sizes,
		Stock:       p.Stock,
		Bestseller:  p.Bestseller,
	}
}

// listProducts handles GET /api/products with page/limit query parameters.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, limit = validate.Pagination(page, limit)

	products, err := h.products.List(r.Context(), page, limit)
	if err != nil {
		zctx.From(r.Context()).Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p, now)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp, "page": page, "limit": limit})
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("get product failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p, time.Now()))
}
