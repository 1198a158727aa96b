// README: Base handler utilities (JSON helpers, sentinel-to-status error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskdrive/internal/modules/drive"
	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/product"
	"taskdrive/internal/modules/user"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module sentinel errors onto HTTP statuses. Conflict
// and validation messages are surfaced verbatim; everything unexpected is a
// generic 500.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, drive.ErrValidation), errors.Is(err, driveconfig.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, drive.ErrNotFound),
		errors.Is(err, driveconfig.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, drive.ErrConflict),
		errors.Is(err, driveconfig.ErrConflict),
		errors.Is(err, drive.ErrActiveSession),
		errors.Is(err, drive.ErrSessionClosed),
		errors.Is(err, drive.ErrInvalidState):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
