// README: Reservation service; seeds counters from the booking ledger and guards slot capacity.
package reservation

import (
	"context"
	"fmt"

	"laundry/internal/metrics"
	"laundry/internal/modules/slots"
)

// LoadReader reports capacity and current bookings of one slot.
type LoadReader interface {
	SlotLoad(ctx context.Context, kind slots.Kind, date, slotID string) (capacity, booked int, found bool, err error)
}

type Service struct {
	store *Store
	loads LoadReader
}

func NewService(store *Store, loads LoadReader) *Service {
	return &Service{store: store, loads: loads}
}

// Reserve holds one unit of the slot. held is false when the slot is not in
// the catalog for that date, so there is nothing to guard or release.
// When the load cannot be read no counter is created; the error is returned
// so the caller can decide whether to proceed unguarded.
func (s *Service) Reserve(ctx context.Context, kind slots.Kind, date, slotID string) (held bool, err error) {
	capacity, booked, found, err := s.loads.SlotLoad(ctx, kind, date, slotID)
	if err != nil {
		return false, fmt.Errorf("read slot load: %w", err)
	}
	if !found {
		return false, nil
	}
	ok, err := s.store.TryReserve(ctx, string(kind), date, slotID, capacity, booked)
	if err != nil {
		return false, err
	}
	if !ok {
		metrics.IncReservationRejected(string(kind))
		return false, slots.ErrSlotFull
	}
	return true, nil
}

func (s *Service) Release(ctx context.Context, kind slots.Kind, date, slotID string) error {
	return s.store.Release(ctx, string(kind), date, slotID)
}
