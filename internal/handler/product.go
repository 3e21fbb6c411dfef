package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-backend/internal/domain/product"
)

type productResp struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Price     float64        `json:"price"`
	Available bool           `json:"available"`
	Stock     map[string]int `json:"stock"`
}

func toProductResp(p *product.Product) productResp {
	return productResp{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     p.Price.InexactFloat64(),
		Available: p.Available,
		Stock:     p.Stock,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for i := range products {
		if products[i].Deleted {
			continue
		}
		out = append(out, toProductResp(&products[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.Deleted {
		writeError(w, r, product.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toProductResp(p))
}
