// README: Combo insertion handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskdrive/internal/modules/drive"
)

type ComboHandler struct {
	drive *drive.Service
}

func NewComboHandler(svc *drive.Service) *ComboHandler {
	return &ComboHandler{drive: svc}
}

type addComboReq struct {
	UserID     int64   `json:"user_id"`
	TaskItemID int64   `json:"task_item_id"`
	ProductID  int64   `json:"product_id"`
	ProductIDs []int64 `json:"product_ids"`
	// Optional explicit position; defaults to right after the target item.
	OrderInDrive *int `json:"order_in_drive"`
}

func (h *ComboHandler) AddAfterTask(c *gin.Context) {
	var req addComboReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	productIDs := req.ProductIDs
	if len(productIDs) == 0 && req.ProductID != 0 {
		productIDs = []int64{req.ProductID}
	}
	items, err := h.drive.AddComboAfterItem(c.Request.Context(), drive.AddComboCommand{
		UserID:        req.UserID,
		AfterItemID:   req.TaskItemID,
		ProductIDs:    productIDs,
		InsertAtOrder: req.OrderInDrive,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"message": "combo task added", "items": items})
}

type addSlotReq struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
}

func (h *ComboHandler) AddToItemSlot(c *gin.Context) {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	var req addSlotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	item, err := h.drive.AddProductToItemSlot(c.Request.Context(), req.UserID, itemID, req.ProductID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "product added to item", "item": item})
}
