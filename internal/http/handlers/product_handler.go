// README: Product and tier quantity handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskdrive/internal/modules/product"
)

type ProductHandler struct {
	products *product.Store
}

func NewProductHandler(products *product.Store) *ProductHandler {
	return &ProductHandler{products: products}
}

func (h *ProductHandler) ListActive(c *gin.Context) {
	products, err := h.products.ListActive(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"products": products})
}

type createProductReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url"`
	IsActive    *bool  `json:"is_active"`
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || req.Price <= 0 {
		writeError(c, http.StatusBadRequest, "name and positive price are required")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	created, err := h.products.Create(c.Request.Context(), product.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		IsActive:    active,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

func (h *ProductHandler) ListTierQuantities(c *gin.Context) {
	configs, err := h.products.ListTierQuantities(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tier_configs": configs})
}

type tierQuantityReq struct {
	TierName      string `json:"tier_name"`
	QuantityLimit int    `json:"quantity_limit"`
}

func (h *ProductHandler) UpdateTierQuantities(c *gin.Context) {
	var req []tierQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	for _, tc := range req {
		if tc.TierName == "" || tc.QuantityLimit <= 0 {
			writeError(c, http.StatusBadRequest, "tier_name and positive quantity_limit are required")
			return
		}
	}
	for _, tc := range req {
		if err := h.products.UpsertTierQuantity(c.Request.Context(), tc.TierName, tc.QuantityLimit); err != nil {
			writeDomainError(c, err)
			return
		}
	}
	configs, err := h.products.ListTierQuantities(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "tier configs updated", "tier_configs": configs})
}
