// README: Order intake schema; validates the client payload and derives the order record.
package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"laundry/internal/civil"
	"laundry/internal/modules/slots"
	"laundry/internal/types"
)

// FlexString accepts a JSON string or number. Slot ids arrive as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("slot id must be a string or number")
	}
	*f = FlexString(n.String())
	return nil
}

type SlotChoice struct {
	Date   string     `json:"date"`
	Label  string     `json:"label"`
	SlotID FlexString `json:"slotId"`
}

// PlaceRequest is the accepted order payload. Unknown fields are ignored.
type PlaceRequest struct {
	OrderID           string          `json:"orderId"`
	UserID            string          `json:"user_id"`
	Pickup            SlotChoice      `json:"pickup"`
	Delivery          SlotChoice      `json:"delivery"`
	ServiceType       string          `json:"serviceType"`
	Total             float64         `json:"total"`
	Discount          float64         `json:"discount"`
	PaymentMethod     string          `json:"paymentMethod"`
	PaymentID         string          `json:"payment_id"`
	Status            string          `json:"status"`
	OrderStatus       string          `json:"order_status"`
	DeliveryAddress   string          `json:"delivery_address"`
	AddressDetails    *AddressDetails `json:"address_details"`
	AppliedCouponCode string          `json:"applied_coupon_code"`
}

const (
	defaultOrderStatus   = "confirmed"
	defaultPaymentMethod = "cod"
)

// Validate checks the structural contract of the payload.
func (r PlaceRequest) Validate() error {
	for _, c := range []struct {
		name   string
		choice SlotChoice
	}{{"pickup", r.Pickup}, {"delivery", r.Delivery}} {
		if !civil.ValidDate(c.choice.Date) {
			return fmt.Errorf("%w: %s.date must be YYYY-MM-DD", ErrBadRequest, c.name)
		}
		if strings.TrimSpace(c.choice.Label) == "" {
			return fmt.Errorf("%w: %s.label is required", ErrBadRequest, c.name)
		}
	}
	if r.Delivery.Date < r.Pickup.Date {
		return fmt.Errorf("%w: delivery.date is before pickup.date", ErrBadRequest)
	}
	if st := strings.TrimSpace(r.ServiceType); st != "" && !slots.ServiceType(st).Valid() {
		return fmt.Errorf("%w: serviceType must be standard or express", ErrBadRequest)
	}
	if r.Total < 0 || r.Discount < 0 {
		return fmt.Errorf("%w: total and discount must not be negative", ErrBadRequest)
	}
	return nil
}

// buildOrder applies defaults and derives canonical slot times from labels.
func buildOrder(r PlaceRequest, userID string, now time.Time) *Order {
	id := strings.TrimSpace(r.OrderID)
	if id == "" {
		id = syntheticID(now)
	}
	orderStatus := firstNonEmpty(r.OrderStatus, defaultOrderStatus)
	method := firstNonEmpty(r.PaymentMethod, defaultPaymentMethod)
	paymentStatus := "paid"
	if method == defaultPaymentMethod {
		paymentStatus = "pending"
	}

	o := &Order{
		ID:                      id,
		UserID:                  userID,
		Total:                   types.FromMajor(r.Total, types.CurrencyINR),
		Discount:                types.FromMajor(r.Discount, types.CurrencyINR),
		OrderStatus:             orderStatus,
		Status:                  firstNonEmpty(r.Status, orderStatus),
		PickupDate:              optional(r.Pickup.Date),
		DeliveryDate:            optional(r.Delivery.Date),
		PaymentMethod:           method,
		PaymentStatus:           paymentStatus,
		PaymentID:               optional(r.PaymentID),
		DeliveryAddress:         optional(r.DeliveryAddress),
		AddressDetails:          r.AddressDetails,
		AppliedCouponCode:       optional(r.AppliedCouponCode),
		DeliveryType:            firstNonEmpty(r.ServiceType, string(slots.ServiceStandard)),
		PickupSlotID:            slotIDOrNil(string(r.Pickup.SlotID)),
		DeliverySlotID:          slotIDOrNil(string(r.Delivery.SlotID)),
		PickupSlotDisplayTime:   optional(r.Pickup.Label),
		DeliverySlotDisplayTime: optional(r.Delivery.Label),
		CreatedAt:               now,
	}
	o.PickupSlotStartTime, o.PickupSlotEndTime = slots.DeriveCanonicalTimes(r.Pickup.Label)
	o.DeliverySlotStartTime, o.DeliverySlotEndTime = slots.DeriveCanonicalTimes(r.Delivery.Label)
	return o
}

func syntheticID(now time.Time) string {
	return "ORD" + strconv.FormatInt(now.UnixMilli(), 10)
}

// isSlotUUID accepts RFC 4122 ids of versions 1 through 5 only.
func isSlotUUID(v string) bool {
	v = strings.TrimSpace(v)
	if len(v) != 36 {
		return false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return false
	}
	return id.Variant() == uuid.RFC4122 && id.Version() >= 1 && id.Version() <= 5
}

func slotIDOrNil(v string) *string {
	if !isSlotUUID(v) {
		return nil
	}
	s := strings.TrimSpace(v)
	return &s
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
