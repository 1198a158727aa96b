// README: Handler tests for error mapping and request validation.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"taskdrive/internal/modules/drive"
	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/user"
)

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{drive.ErrValidation, http.StatusBadRequest},
		{driveconfig.ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: name is required", driveconfig.ErrValidation), http.StatusBadRequest},
		{drive.ErrNotFound, http.StatusNotFound},
		{driveconfig.ErrNotFound, http.StatusNotFound},
		{user.ErrNotFound, http.StatusNotFound},
		{drive.ErrConflict, http.StatusConflict},
		{drive.ErrActiveSession, http.StatusConflict},
		{drive.ErrSessionClosed, http.StatusConflict},
		{drive.ErrInvalidState, http.StatusConflict},
		{driveconfig.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: configuration has active drive sessions", driveconfig.ErrConflict), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeDomainError(c, tc.err)
		assert.Equalf(t, tc.want, w.Code, "error %v", tc.err)
	}
}

// Internal errors must not leak their message.
func TestWriteDomainErrorHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeDomainError(c, errors.New("pq: connection refused"))
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), "internal error")
}

func TestHandlersRejectMalformedInput(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Validation happens before any service call, so nil services are safe.
	configHandler := NewConfigHandler(nil, nil)
	comboHandler := NewComboHandler(nil)
	userHandler := NewUserDriveHandler(nil)

	r := gin.New()
	r.POST("/configurations", configHandler.Create)
	r.GET("/configurations/:id", configHandler.Get)
	r.POST("/combos/add-after-task", comboHandler.AddAfterTask)
	r.GET("/users/:userId/drive-progress", userHandler.Progress)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/configurations", "{not json", http.StatusBadRequest},
		{http.MethodGet, "/configurations/abc", "", http.StatusBadRequest},
		{http.MethodGet, "/configurations/-1", "", http.StatusBadRequest},
		{http.MethodPost, "/combos/add-after-task", "[1,2]", http.StatusBadRequest},
		{http.MethodGet, "/users/zero/drive-progress", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equalf(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}
