// README: Slot catalog, matrix rule and availability result types.
package slots

import (
	"errors"
	"time"
)

type Kind string

const (
	KindPickup   Kind = "pickup"
	KindDelivery Kind = "delivery"
)

func (k Kind) Valid() bool {
	return k == KindPickup || k == KindDelivery
}

type ServiceType string

const (
	ServiceStandard ServiceType = "standard"
	ServiceExpress  ServiceType = "express"
)

func (s ServiceType) Valid() bool {
	return s == ServiceStandard || s == ServiceExpress
}

// DefaultCapacity applies when neither slot_capacity nor the slot row carries a cap.
const DefaultCapacity = 9999

// SameDayPickupBufferMinutes hides same-day pickup slots ending within this many minutes.
const SameDayPickupBufferMinutes = 30

var (
	ErrBadRequest = errors.New("invalid payload")
	ErrSlotFull   = errors.New("slot is fully booked")
)

// Slot is one resolved time window. StartMin/EndMin are minutes since IST midnight.
type Slot struct {
	ID               string
	Label            string
	StartMin         int
	EndMin           int
	Active           bool
	FallbackCapacity int
}

// Contains reports whether minute m falls inside [StartMin, EndMin).
func (s Slot) Contains(m int) bool {
	return s.StartMin <= m && m < s.EndMin
}

// Row is a configured slot row as stored in pickup_slots / delivery_slots.
type Row struct {
	ID          string
	StartTime   string
	EndTime     string
	DisplayTime string
	IsActive    *bool
	Capacity    *int
}

// MatrixRule is the delivery_slot_matrix row for one service tier, with the
// weekday allow-list already translated to time.Weekday.
type MatrixRule struct {
	ServiceType       ServiceType
	MinDaysFromPickup *int
	MinGapHours       *int
	AllowedSlotsByDay map[time.Weekday][]string
}

// Allowed returns the slot-id allow-list for a weekday, or nil when unrestricted.
func (r *MatrixRule) Allowed(day time.Weekday) map[string]struct{} {
	if r == nil || len(r.AllowedSlotsByDay[day]) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(r.AllowedSlotsByDay[day]))
	for _, id := range r.AllowedSlotsByDay[day] {
		set[id] = struct{}{}
	}
	return set
}

// Booking is the slice of an order the ledger needs.
type Booking struct {
	SlotID *string
	Status string
}

// Request asks for availability of one date and kind.
type Request struct {
	Date         string      `json:"date" binding:"required"`
	Kind         Kind        `json:"kind" binding:"required"`
	ServiceType  ServiceType `json:"serviceType"`
	Pincode      string      `json:"pincode"`
	PickupDate   string      `json:"pickupDate"`
	PickupEndMin *int        `json:"pickupEndMin"`
}

// SlotView is the wire shape of one slot.
type SlotView struct {
	ID                string `json:"id"`
	DisplayTime       string `json:"display_time"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	IsAvailable       bool   `json:"is_available"`
	RemainingCapacity int    `json:"remaining_capacity"`
}

type Result struct {
	Date         string     `json:"date"`
	Kind         Kind       `json:"kind"`
	EarliestDate *string    `json:"earliest_date"`
	Slots        []SlotView `json:"slots"`
}

// Earliest is the delivery floor: nothing before Date, and on Date nothing
// starting before MinStartMin.
type Earliest struct {
	Date        string
	MinStartMin int
}
