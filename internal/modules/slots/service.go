// README: Slot service; composes catalog, ledger, earliest rules and same-day cutoffs into availability.
package slots

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"laundry/internal/civil"
	"laundry/internal/metrics"
)

// Store is everything the slot service reads from the relational store.
type Store interface {
	CatalogSource
	LedgerSource
	MatrixRule(ctx context.Context, tier ServiceType) (*MatrixRule, error)
}

// Serviceability answers whether a pincode is served. Implementations default to true.
type Serviceability interface {
	IsServiceable(ctx context.Context, pincode string) bool
}

type Service struct {
	store    Store
	catalog  *Resolver
	ledger   *Ledger
	earliest *EarliestEngine
	areas    Serviceability
	clock    civil.Clock
	log      zerolog.Logger

	pickupBuffer int
}

func NewService(store Store, areas Serviceability, clock civil.Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = civil.SystemClock{}
	}
	catalog := NewResolver(store, log)
	return &Service{
		store:    store,
		catalog:  catalog,
		ledger:   NewLedger(store, log),
		earliest: NewEarliestEngine(catalog, clock),
		areas:    areas,
		clock:    clock,
		log:      log,

		pickupBuffer: SameDayPickupBufferMinutes,
	}
}

// WithPickupBuffer overrides the same-day pickup buffer in minutes.
func (s *Service) WithPickupBuffer(minutes int) *Service {
	if minutes >= 0 {
		s.pickupBuffer = minutes
	}
	return s
}

// Validate rejects requests the pipeline cannot answer.
func (r Request) Validate() error {
	if !civil.ValidDate(r.Date) || !r.Kind.Valid() {
		return fmt.Errorf("%w: date (YYYY-MM-DD) and kind (pickup|delivery) are required", ErrBadRequest)
	}
	if r.ServiceType != "" && !r.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown serviceType %q", ErrBadRequest, r.ServiceType)
	}
	if r.Kind == KindDelivery {
		if r.ServiceType == "" || !civil.ValidDate(r.PickupDate) {
			return fmt.Errorf("%w: for delivery, provide serviceType and pickupDate", ErrBadRequest)
		}
	}
	if r.PickupEndMin != nil && (*r.PickupEndMin < 0 || *r.PickupEndMin > 1440) {
		return fmt.Errorf("%w: pickupEndMin out of range", ErrBadRequest)
	}
	return nil
}

// Availability computes the per-slot verdict for one date and kind.
func (s *Service) Availability(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	metrics.IncAvailability(string(req.Kind))

	res := Result{Date: req.Date, Kind: req.Kind, Slots: []SlotView{}}
	if s.areas != nil && req.Pincode != "" && !s.areas.IsServiceable(ctx, req.Pincode) {
		return res, nil
	}

	base := s.catalog.Resolve(ctx, req.Kind, req.Date)
	now := civil.Now(s.clock)
	caps := s.ledger.CapacityBySlot(ctx, req.Date)
	booked := s.ledger.BookedCounts(ctx, req.Date, req.Kind)

	var (
		floor   *Earliest
		allowed map[string]struct{}
	)
	if req.Kind == KindDelivery {
		e := s.earliest.Compute(ctx, req.ServiceType, req.PickupDate, req.PickupEndMin)
		res.EarliestDate = &e.Date
		if req.Date < e.Date {
			return res, nil
		}
		floor = &e
		allowed = s.rule(ctx, req.ServiceType).Allowed(civil.Weekday(req.Date))
	}

	blocked := s.pickupBlocked(req, base, now)

	views := make([]SlotView, 0, len(base))
	for i, slot := range base {
		capacity, ok := caps[slot.ID]
		if !ok {
			capacity = slot.FallbackCapacity
		}
		n := booked[slot.ID]
		available := slot.Active && capacity-n > 0 && !blocked(i, slot)

		if floor != nil && req.Date == floor.Date && slot.StartMin < floor.MinStartMin {
			available = false
		}
		if allowed != nil {
			if _, ok := allowed[slot.ID]; !ok {
				available = false
			}
		}

		views = append(views, SlotView{
			ID:                slot.ID,
			DisplayTime:       slot.Label,
			StartTime:         MinToHHMM(slot.StartMin),
			EndTime:           MinToHHMM(slot.EndMin),
			IsAvailable:       available,
			RemainingCapacity: Remaining(capacity, n),
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].StartTime < views[j].StartTime })
	res.Slots = views
	return res, nil
}

// pickupBlocked returns the same-day cutoff predicate for pickup requests.
// Inside a slot: that slot is blocked, plus the next one for standard.
// Between slots: anything ending within the buffer is blocked.
func (s *Service) pickupBlocked(req Request, base []Slot, now civil.WallClock) func(int, Slot) bool {
	if req.Kind != KindPickup || req.Date != now.Date {
		return func(int, Slot) bool { return false }
	}
	current := -1
	for i, slot := range base {
		if slot.Contains(now.MinuteOfDay) {
			current = i
			break
		}
	}
	if current >= 0 {
		skip := 1
		if req.ServiceType == ServiceExpress {
			skip = 0
		}
		return func(i int, _ Slot) bool { return i <= current+skip }
	}
	return func(_ int, slot Slot) bool {
		return slot.EndMin <= now.MinuteOfDay+s.pickupBuffer
	}
}

func (s *Service) rule(ctx context.Context, tier ServiceType) *MatrixRule {
	if s.store == nil {
		return nil
	}
	r, err := s.store.MatrixRule(ctx, tier)
	if err != nil {
		s.log.Warn().Err(err).Str("service_type", string(tier)).Msg("matrix rule unavailable, ignoring")
		metrics.IncFailOpen("matrix_rule")
		return nil
	}
	return r
}

// SlotLoad reports capacity and current bookings of one slot. found is false
// when the id is not in the catalog for that date. Unlike Availability it does
// not fail open: a ledger read error is returned as is.
func (s *Service) SlotLoad(ctx context.Context, kind Kind, date, slotID string) (int, int, bool, error) {
	for _, slot := range s.catalog.Resolve(ctx, kind, date) {
		if slot.ID != slotID {
			continue
		}
		caps, err := s.ledger.ReadCapacities(ctx, date)
		if err != nil {
			return 0, 0, true, fmt.Errorf("slot capacity: %w", err)
		}
		counts, err := s.ledger.ReadBookedCounts(ctx, date, kind)
		if err != nil {
			return 0, 0, true, fmt.Errorf("booked counts: %w", err)
		}
		c, ok := caps[slotID]
		if !ok {
			c = slot.FallbackCapacity
		}
		return c, counts[slotID], true, nil
	}
	return 0, 0, false, nil
}

// Dates is the selector payload: the next n IST dates and, when a pickup date
// is known, the date-only delivery hint for the tier.
type Dates struct {
	Days                 []civil.Day `json:"days"`
	EarliestDeliveryDate *string     `json:"earliest_delivery_date,omitempty"`
}

func (s *Service) Dates(ctx context.Context, n int, pickupDate string, tier ServiceType) (Dates, error) {
	out := Dates{Days: civil.NextDates(s.clock, n)}
	if pickupDate == "" {
		return out, nil
	}
	if !civil.ValidDate(pickupDate) {
		return Dates{}, fmt.Errorf("%w: pickupDate must be YYYY-MM-DD", ErrBadRequest)
	}
	if tier == "" {
		tier = ServiceStandard
	}
	if !tier.Valid() {
		return Dates{}, fmt.Errorf("%w: unknown serviceType %q", ErrBadRequest, tier)
	}
	d := EarliestDeliveryDate(pickupDate, tier, s.rule(ctx, tier))
	out.EarliestDeliveryDate = &d
	return out, nil
}
