// README: Slot availability and date selector handlers.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"laundry/internal/modules/slots"
)

// SlotsService is the slot engine as seen by HTTP.
type SlotsService interface {
	Availability(ctx context.Context, req slots.Request) (slots.Result, error)
	Dates(ctx context.Context, n int, pickupDate string, tier slots.ServiceType) (slots.Dates, error)
}

type SlotsHandler struct {
	slots SlotsService
}

func NewSlotsHandler(svc SlotsService) *SlotsHandler {
	return &SlotsHandler{slots: svc}
}

// Availability serves POST /api/slots.
func (h *SlotsHandler) Availability(c *gin.Context) {
	var req slots.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, slots.ErrBadRequest.Error()+": malformed JSON body")
		return
	}
	res, err := h.slots.Availability(c.Request.Context(), req)
	if err != nil {
		writeSlotsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

const (
	defaultSelectorDays = 7
	maxSelectorDays     = 31
)

// Dates serves GET /api/slots/dates.
func (h *SlotsHandler) Dates(c *gin.Context) {
	n := defaultSelectorDays
	if v := c.Query("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > maxSelectorDays {
			writeError(c, http.StatusBadRequest, "days must be between 1 and 31")
			return
		}
		n = d
	}
	out, err := h.slots.Dates(c.Request.Context(), n, c.Query("pickupDate"), slots.ServiceType(c.Query("serviceType")))
	if err != nil {
		writeSlotsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}
