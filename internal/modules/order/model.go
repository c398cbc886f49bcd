// README: Order record, status vocabulary and cancellable-state rules.
package order

import (
	"strings"
	"time"

	"laundry/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusPickedUp       Status = "picked_up"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
	StatusRefunded       Status = "refunded"
)

// CancelledMarker is the literal written to order_status and status on cancellation.
const CancelledMarker = "Cancelled"

var statusAliases = map[string]Status{
	"pending":          StatusPending,
	"placed":           StatusPending,
	"confirmed":        StatusConfirmed,
	"processing":       StatusProcessing,
	"picked_up":        StatusPickedUp,
	"shipped":          StatusShipped,
	"out_for_delivery": StatusOutForDelivery,
	"delivered":        StatusDelivered,
	"completed":        StatusDelivered,
	"cancelled":        StatusCancelled,
	"canceled":         StatusCancelled,
	"failed":           StatusFailed,
	"refunded":         StatusRefunded,
}

// NormalizeStatus folds case and synonyms. Unknown values pass through lowercased.
func NormalizeStatus(s string) Status {
	t := strings.ToLower(strings.TrimSpace(s))
	if st, ok := statusAliases[t]; ok {
		return st
	}
	return Status(t)
}

// IsCancellable reports whether a customer may still cancel an order in status s.
func IsCancellable(s string) bool {
	switch NormalizeStatus(s) {
	case StatusPending, StatusProcessing, StatusConfirmed:
		return true
	}
	return false
}

type AddressDetails struct {
	Line1      string   `json:"line1,omitempty"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	Country    string   `json:"country,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	PlaceID    string   `json:"place_id,omitempty"`
}

type Order struct {
	ID                      string
	UserID                  string
	Total                   types.Money
	Discount                types.Money
	OrderStatus             string
	Status                  string
	PickupDate              *string
	DeliveryDate            *string
	PaymentMethod           string
	PaymentStatus           string
	PaymentID               *string
	DeliveryAddress         *string
	AddressDetails          *AddressDetails
	AppliedCouponCode       *string
	DeliveryType            string
	PickupSlotID            *string
	DeliverySlotID          *string
	PickupSlotDisplayTime   *string
	DeliverySlotDisplayTime *string
	PickupSlotStartTime     *string
	PickupSlotEndTime       *string
	DeliverySlotStartTime   *string
	DeliverySlotEndTime     *string
	CreatedAt               time.Time
}

// CurrentStatus prefers status and falls back to order_status.
func (o *Order) CurrentStatus() string {
	if strings.TrimSpace(o.Status) != "" {
		return o.Status
	}
	return o.OrderStatus
}

// Event is one row of the order status audit trail.
type Event struct {
	ID         int64
	OrderID    string
	FromStatus string
	ToStatus   string
	ActorType  string
	ActorID    *string
	CreatedAt  time.Time
}
