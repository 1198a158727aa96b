// README: Task set handlers (ad-hoc sets and product links).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskdrive/internal/modules/driveconfig"
)

type TaskSetHandler struct {
	configs *driveconfig.Service
}

func NewTaskSetHandler(configs *driveconfig.Service) *TaskSetHandler {
	return &TaskSetHandler{configs: configs}
}

type createTaskSetReq struct {
	DriveConfigurationID int64   `json:"drive_configuration_id"`
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	OrderInDrive         int     `json:"order_in_drive"`
	IsCombo              bool    `json:"is_combo"`
	ProductIDs           []int64 `json:"product_ids"`
}

func (h *TaskSetHandler) Create(c *gin.Context) {
	var req createTaskSetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	ts, err := h.configs.CreateTaskSet(c.Request.Context(), driveconfig.CreateTaskSetCommand{
		DriveConfigurationID: req.DriveConfigurationID,
		Name:                 req.Name,
		Description:          req.Description,
		OrderInDrive:         req.OrderInDrive,
		IsCombo:              req.IsCombo,
		ProductIDs:           req.ProductIDs,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, ts)
}

func (h *TaskSetHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ts, err := h.configs.GetTaskSet(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ts)
}

func (h *TaskSetHandler) ListForConfiguration(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sets, err := h.configs.ListTaskSets(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"task_sets": sets})
}

func (h *TaskSetHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ts, err := h.configs.DeleteTaskSet(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "task set deleted", "task_set": ts})
}

type addTaskSetProductReq struct {
	TaskSetID     int64  `json:"task_set_id"`
	ProductID     int64  `json:"product_id"`
	OrderInSet    int    `json:"order_in_set"`
	PriceOverride *int64 `json:"price_override"`
}

func (h *TaskSetHandler) AddProduct(c *gin.Context) {
	var req addTaskSetProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	link, err := h.configs.AddProduct(c.Request.Context(), driveconfig.AddProductCommand{
		TaskSetID:     req.TaskSetID,
		ProductID:     req.ProductID,
		OrderInSet:    req.OrderInSet,
		PriceOverride: req.PriceOverride,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, link)
}

func (h *TaskSetHandler) RemoveProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.configs.RemoveProduct(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "product link removed", "link": link})
}
