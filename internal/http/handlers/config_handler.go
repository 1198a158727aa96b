// README: Drive configuration handlers (CRUD + products listing).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/product"
)

type ConfigHandler struct {
	configs  *driveconfig.Service
	products *product.Store
}

func NewConfigHandler(configs *driveconfig.Service, products *product.Store) *ConfigHandler {
	return &ConfigHandler{configs: configs, products: products}
}

type configReq struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	TasksRequired int     `json:"tasks_required"`
	IsActive      bool    `json:"is_active"`
	ProductIDs    []int64 `json:"product_ids"`
}

func (h *ConfigHandler) Create(c *gin.Context) {
	var req configReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cfg, err := h.configs.Create(c.Request.Context(), driveconfig.CreateCommand{
		Name:          req.Name,
		Description:   req.Description,
		TasksRequired: req.TasksRequired,
		IsActive:      req.IsActive,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cfg)
}

func (h *ConfigHandler) List(c *gin.Context) {
	configs, err := h.configs.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"configurations": configs})
}

func (h *ConfigHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cfg, err := h.configs.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (h *ConfigHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req configReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cfg, err := h.configs.Update(c.Request.Context(), driveconfig.UpdateCommand{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		TasksRequired: req.TasksRequired,
		IsActive:      req.IsActive,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (h *ConfigHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cfg, err := h.configs.Delete(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "configuration deleted", "configuration": cfg})
}

// Products lists the distinct products referenced by a configuration's task sets.
func (h *ConfigHandler) Products(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.configs.Get(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	products, err := h.products.ListForConfiguration(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"products": products})
}
