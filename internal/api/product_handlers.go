package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/ec-backend/internal/cache"
	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

const productCachePrefix = "products:"

// ProductHandlers serves the catalog. Reads go through the redis cache when
// one is configured; writes invalidate it.
type ProductHandlers struct {
	products store.ProductStore
	cache    *cache.ProductCache
}

func NewProductHandlers(products store.ProductStore, c *cache.ProductCache) *ProductHandlers {
	return &ProductHandlers{products: products, cache: c}
}

func (h *ProductHandlers) List(w http.ResponseWriter, r *http.Request) {
	// Admins see inactive products too; their view is never cached.
	activeOnly := r.URL.Query().Get("all") != "true"

	cacheKey := productCachePrefix + "list"
	if activeOnly {
		var cached []product.Product
		if h.cache.Get(r.Context(), cacheKey, &cached) {
			respondData(w, http.StatusOK, "", cached)
			return
		}
	}

	products, err := h.products.ListProducts(r.Context(), activeOnly)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if activeOnly {
		h.cache.Set(r.Context(), cacheKey, products)
	}
	respondData(w, http.StatusOK, "", products)
}

func (h *ProductHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cacheKey := productCachePrefix + id
	var cached product.Product
	if h.cache.Get(r.Context(), cacheKey, &cached) {
		respondData(w, http.StatusOK, "", cached)
		return
	}

	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.cache.Set(r.Context(), cacheKey, p)
	respondData(w, http.StatusOK, "", p)
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	SKU         string          `json:"sku,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Images      []product.Image `json:"images,omitempty"`
	Stock       int             `json:"stock"`
}

func (h *ProductHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Price <= 0 {
		respondError(w, http.StatusBadRequest, "name and a positive price are required")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "stock cannot be negative")
		return
	}

	now := time.Now()
	p := &product.Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		SKU:         req.SKU,
		Brand:       req.Brand,
		Images:      req.Images,
		Stock:       req.Stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.products.CreateProduct(r.Context(), p); err != nil {
		respondDomainError(w, err)
		return
	}

	h.cache.InvalidatePrefix(r.Context(), productCachePrefix)
	respondData(w, http.StatusCreated, "Product created", p)
}

type RestockRequest struct {
	Stock int `json:"stock"`
}

// Restock overwrites the stock counter. This is an absolute set, not an
// increment; concurrent customer reservations still win or lose atomically
// against the new value.
func (h *ProductHandlers) Restock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RestockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "stock cannot be negative")
		return
	}

	if err := h.products.SetStock(r.Context(), id, req.Stock); err != nil {
		respondDomainError(w, err)
		return
	}

	h.cache.InvalidatePrefix(r.Context(), productCachePrefix)
	respondData(w, http.StatusOK, "Stock updated", map[string]any{
		"id":    id,
		"stock": req.Stock,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
