// README: Order handlers for placement, history and customer cancellation.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"laundry/internal/http/middleware"
	"laundry/internal/modules/order"
)

// OrderService is the order module as seen by HTTP.
type OrderService interface {
	Place(ctx context.Context, cmd order.PlaceCommand) (string, error)
	Cancel(ctx context.Context, cmd order.CancelCommand) error
	History(ctx context.Context, userID string, limit int) ([]order.Order, error)
}

type OrderHandler struct {
	order OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{order: svc}
}

// Create serves POST /api/orders. The session, when present, is the actor.
func (h *OrderHandler) Create(c *gin.Context) {
	var req order.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.order.Place(c.Request.Context(), order.PlaceCommand{
		SessionUID:  middleware.CallerUID(c),
		SessionRole: middleware.CallerRole(c),
		Request:     req,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id})
}

type cancelReq struct {
	OrderID      string `json:"order_id"`
	OrderIDCamel string `json:"orderId"`
}

// Cancel serves POST /api/orders/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := req.OrderID
	if id == "" {
		id = req.OrderIDCamel
	}
	if err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   id,
		ActorID:   middleware.CallerUID(c),
		ActorRole: middleware.CallerRole(c),
	}); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}

type orderView struct {
	ID                      string                `json:"id"`
	UserID                  string                `json:"user_id,omitempty"`
	Status                  order.Status          `json:"status"`
	RawStatus               string                `json:"raw_status"`
	Cancellable             bool                  `json:"cancellable"`
	TotalAmount             float64               `json:"total_amount"`
	DiscountAmount          float64               `json:"discount_amount"`
	Currency                string                `json:"currency"`
	DeliveryType            string                `json:"delivery_type"`
	PaymentMethod           string                `json:"payment_method"`
	PaymentStatus           string                `json:"payment_status"`
	PickupDate              *string               `json:"pickup_date"`
	DeliveryDate            *string               `json:"delivery_date"`
	PickupSlotDisplayTime   *string               `json:"pickup_slot_display_time"`
	DeliverySlotDisplayTime *string               `json:"delivery_slot_display_time"`
	DeliveryAddress         *string               `json:"delivery_address,omitempty"`
	AddressDetails          *order.AddressDetails `json:"address_details,omitempty"`
	AppliedCouponCode       *string               `json:"applied_coupon_code,omitempty"`
	CreatedAt               time.Time             `json:"created_at"`
}

func toOrderView(o order.Order) orderView {
	raw := o.CurrentStatus()
	return orderView{
		ID:                      o.ID,
		UserID:                  o.UserID,
		Status:                  order.NormalizeStatus(raw),
		RawStatus:               raw,
		Cancellable:             order.IsCancellable(raw),
		TotalAmount:             o.Total.Major(),
		DiscountAmount:          o.Discount.Major(),
		Currency:                o.Total.Currency,
		DeliveryType:            o.DeliveryType,
		PaymentMethod:           o.PaymentMethod,
		PaymentStatus:           o.PaymentStatus,
		PickupDate:              o.PickupDate,
		DeliveryDate:            o.DeliveryDate,
		PickupSlotDisplayTime:   o.PickupSlotDisplayTime,
		DeliverySlotDisplayTime: o.DeliverySlotDisplayTime,
		DeliveryAddress:         o.DeliveryAddress,
		AddressDetails:          o.AddressDetails,
		AppliedCouponCode:       o.AppliedCouponCode,
		CreatedAt:               o.CreatedAt,
	}
}

// List serves GET /api/orders for the signed-in caller.
func (h *OrderHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	orders, err := h.order.History(c.Request.Context(), middleware.CallerUID(c), limit)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}
