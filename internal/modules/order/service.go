// README: Order service; placement with slot reservation, cancellation window and history.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"laundry/internal/civil"
	"laundry/internal/events"
	"laundry/internal/metrics"
	"laundry/internal/modules/slots"
)

var (
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("you do not have permission to cancel this order")
	ErrNotFound           = errors.New("order not found")
	ErrConflict           = errors.New("order already exists")
	ErrNotCancellable     = errors.New("order can no longer be cancelled")
	ErrCancelWindowPassed = errors.New("cancellation window has passed")
	ErrScheduleUnknown    = errors.New("unable to determine pickup schedule for cancellation")
	ErrSlotFull           = slots.ErrSlotFull
)

// DefaultStandardCancelLead is how long before pickup start a standard order locks.
const DefaultStandardCancelLead = 60 * time.Minute

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	MarkCancelled(ctx context.Context, id, userID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// Reservations guards slot capacity across concurrent placements.
type Reservations interface {
	Reserve(ctx context.Context, kind slots.Kind, date, slotID string) (bool, error)
	Release(ctx context.Context, kind slots.Kind, date, slotID string) error
}

type Deps struct {
	Reservations       Reservations
	Events             events.Publisher
	Clock              civil.Clock
	Log                zerolog.Logger
	StandardCancelLead time.Duration
}

type Service struct {
	store        Store
	reservations Reservations
	events       events.Publisher
	clock        civil.Clock
	log          zerolog.Logger
	cancelLead   time.Duration
}

func NewService(store Store, deps Deps) *Service {
	s := &Service{
		store:        store,
		reservations: deps.Reservations,
		events:       deps.Events,
		clock:        deps.Clock,
		log:          deps.Log,
		cancelLead:   deps.StandardCancelLead,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.clock == nil {
		s.clock = civil.SystemClock{}
	}
	if s.cancelLead <= 0 {
		s.cancelLead = DefaultStandardCancelLead
	}
	return s
}

type PlaceCommand struct {
	// SessionUID is the verified caller, empty when the request carried no session.
	SessionUID  string
	SessionRole string
	Request     PlaceRequest
}

type CancelCommand struct {
	OrderID   string
	ActorID   string
	ActorRole string
}

// defaultActorType is recorded in the audit trail when the session carries no role.
const defaultActorType = "customer"

// hold is one slot unit taken for an order.
type hold struct {
	kind   slots.Kind
	date   string
	slotID string
}

// Place validates the payload, guards slot capacity and writes the order.
func (s *Service) Place(ctx context.Context, cmd PlaceCommand) (string, error) {
	userID := firstNonEmpty(cmd.SessionUID, cmd.Request.UserID)
	if userID == "" {
		return "", fmt.Errorf("%w: user_id is required to place an order", ErrUnauthenticated)
	}
	if err := cmd.Request.Validate(); err != nil {
		return "", err
	}

	now := s.clock.Now()
	o := buildOrder(cmd.Request, userID, now)

	holds, err := s.reserve(ctx, o)
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, o); err != nil {
		s.release(ctx, holds)
		return "", err
	}

	actorType := defaultActorType
	if cmd.SessionUID != "" {
		actorType = firstNonEmpty(cmd.SessionRole, defaultActorType)
	}
	s.audit(ctx, &Event{
		OrderID:   o.ID,
		ToStatus:  o.Status,
		ActorType: actorType,
		ActorID:   &userID,
		CreatedAt: now,
	})
	metrics.IncOrderPlaced(o.DeliveryType)
	s.publish(ctx, events.New(events.TypeOrderPlaced, o.ID, userID, map[string]any{
		"delivery_type": o.DeliveryType,
		"pickup_date":   o.PickupDate,
		"delivery_date": o.DeliveryDate,
	}))
	s.log.Info().Str("order_id", o.ID).Str("user_id", userID).Str("delivery_type", o.DeliveryType).Msg("order placed")
	return o.ID, nil
}

// reserve takes a unit of each persisted slot. Redis failures are logged and
// skipped; a full slot aborts placement.
func (s *Service) reserve(ctx context.Context, o *Order) ([]hold, error) {
	if s.reservations == nil {
		return nil, nil
	}
	var holds []hold
	for _, h := range holdsFor(o) {
		held, err := s.reservations.Reserve(ctx, h.kind, h.date, h.slotID)
		if errors.Is(err, slots.ErrSlotFull) {
			s.release(ctx, holds)
			return nil, fmt.Errorf("%w: %s slot %s on %s", ErrSlotFull, h.kind, h.slotID, h.date)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("slot_id", h.slotID).Msg("slot reservation unavailable, continuing")
			metrics.IncFailOpen("reservation")
			continue
		}
		if held {
			holds = append(holds, h)
		}
	}
	return holds, nil
}

func (s *Service) release(ctx context.Context, holds []hold) {
	if s.reservations == nil {
		return
	}
	for _, h := range holds {
		if err := s.reservations.Release(ctx, h.kind, h.date, h.slotID); err != nil {
			s.log.Warn().Err(err).Str("slot_id", h.slotID).Msg("slot release failed")
		}
	}
}

func holdsFor(o *Order) []hold {
	var out []hold
	if o.PickupSlotID != nil && o.PickupDate != nil {
		out = append(out, hold{slots.KindPickup, *o.PickupDate, *o.PickupSlotID})
	}
	if o.DeliverySlotID != nil && o.DeliveryDate != nil {
		out = append(out, hold{slots.KindDelivery, *o.DeliveryDate, *o.DeliverySlotID})
	}
	return out
}

// Cancel cancels the caller's order while the pickup cutoff has not passed.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if cmd.ActorID == "" {
		return ErrUnauthenticated
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return fmt.Errorf("%w: invalid order_id", ErrBadRequest)
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.UserID != "" && o.UserID != cmd.ActorID {
		return ErrForbidden
	}
	from := o.CurrentStatus()
	if !IsCancellable(from) {
		metrics.IncCancelRejected("status")
		return ErrNotCancellable
	}
	cutoff, err := CancelCutoff(o, s.cancelLead)
	if err != nil {
		metrics.IncCancelRejected("schedule")
		return err
	}
	if s.clock.Now().After(cutoff) {
		metrics.IncCancelRejected("window")
		return ErrCancelWindowPassed
	}

	ok, err := s.store.MarkCancelled(ctx, o.ID, cmd.ActorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.audit(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   CancelledMarker,
		ActorType:  firstNonEmpty(cmd.ActorRole, defaultActorType),
		ActorID:    &cmd.ActorID,
		CreatedAt:  s.clock.Now(),
	})
	s.release(ctx, holdsFor(o))
	metrics.IncOrderCancelled()
	s.publish(ctx, events.New(events.TypeOrderCancelled, o.ID, cmd.ActorID, map[string]any{"from_status": from}))
	s.log.Info().Str("order_id", o.ID).Str("user_id", cmd.ActorID).Msg("order cancelled")
	return nil
}

// CancelCutoff is the last instant a customer may cancel o. Express orders
// lock at pickup start, standard orders lead earlier.
func CancelCutoff(o *Order, standardLead time.Duration) (time.Time, error) {
	if o.PickupDate == nil || !civil.ValidDate(*o.PickupDate) {
		return time.Time{}, ErrScheduleUnknown
	}
	startMin, ok := pickupStartMinute(o)
	if !ok {
		return time.Time{}, ErrScheduleUnknown
	}
	start, err := civil.Instant(*o.PickupDate, startMin)
	if err != nil {
		return time.Time{}, ErrScheduleUnknown
	}
	if strings.EqualFold(firstNonEmpty(o.DeliveryType, string(slots.ServiceStandard)), string(slots.ServiceExpress)) {
		return start, nil
	}
	return start.Add(-standardLead), nil
}

// pickupStartMinute reads the stored label first, then the stored start time.
func pickupStartMinute(o *Order) (int, bool) {
	if o.PickupSlotDisplayTime != nil {
		if start, _, ok := slots.ParseLabelMinutes(*o.PickupSlotDisplayTime); ok {
			return start, true
		}
	}
	if o.PickupSlotStartTime != nil {
		return slots.ParseHHMM(*o.PickupSlotStartTime)
	}
	return 0, false
}

// History lists the caller's orders, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, limit)
}

// audit appends to the status trail. The order row is already written, so a
// failed append is logged and the request still succeeds.
func (s *Service) audit(ctx context.Context, e *Event) {
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("order_id", e.OrderID).Str("to_status", e.ToStatus).Msg("order audit event write failed")
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Str("order_id", e.OrderID).Msg("event publish failed")
	}
}
