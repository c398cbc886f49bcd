// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"laundry/internal/modules/order"
	"laundry/internal/modules/slots"
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

func writeSlotsError(c *gin.Context, err error) {
	if errors.Is(err, slots.ErrBadRequest) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal error")
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrCancelWindowPassed),
		errors.Is(err, order.ErrScheduleUnknown):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrUnauthenticated):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrConflict), errors.Is(err, order.ErrSlotFull):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
