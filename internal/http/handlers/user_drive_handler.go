// README: Per-user drive handlers (assignment, progress, session status).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskdrive/internal/modules/drive"
)

type UserDriveHandler struct {
	drive *drive.Service
}

func NewUserDriveHandler(svc *drive.Service) *UserDriveHandler {
	return &UserDriveHandler{drive: svc}
}

type assignDriveReq struct {
	DriveConfigurationID int64 `json:"drive_configuration_id"`
}

func (h *UserDriveHandler) Assign(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req assignDriveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	assignment, err := h.drive.AssignDriveToUser(c.Request.Context(), drive.AssignCommand{
		UserID:               userID,
		DriveConfigurationID: req.DriveConfigurationID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, assignment)
}

func (h *UserDriveHandler) AssignConfiguration(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req assignDriveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, assignment, err := h.drive.AssignConfigurationToUser(c.Request.Context(), drive.AssignCommand{
		UserID:               userID,
		DriveConfigurationID: req.DriveConfigurationID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := gin.H{"message": "drive configuration assigned", "user": u}
	if assignment != nil {
		resp["drive_session"] = assignment.Session
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *UserDriveHandler) AssignTierBased(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	assignment, err := h.drive.AssignTierBasedDrive(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"drive_session_id":       assignment.Session.ID,
		"drive_configuration_id": assignment.Session.DriveConfigurationID,
		"tasks_required":         assignment.Session.TasksRequired,
		"items":                  assignment.Items,
	})
}

func (h *UserDriveHandler) ActiveItems(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	items, err := h.drive.ActiveItems(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"items": items})
}

func (h *UserDriveHandler) Progress(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	report, err := h.drive.UserProgress(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *UserDriveHandler) UpdateStatus(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	session, err := h.drive.UpdateSessionStatus(c.Request.Context(), userID, drive.Status(req.Status))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, session)
}
