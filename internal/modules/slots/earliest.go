// README: Earliest-delivery rules; standard skips one slot after pickup, express takes the next one.
package slots

import (
	"context"

	"laundry/internal/civil"
)

// Slots to advance past the pickup slot before delivery may start.
const (
	standardAdvance = 2
	expressAdvance  = 1
)

type EarliestEngine struct {
	catalog *Resolver
	clock   civil.Clock
}

func NewEarliestEngine(catalog *Resolver, clock civil.Clock) *EarliestEngine {
	if clock == nil {
		clock = civil.SystemClock{}
	}
	return &EarliestEngine{catalog: catalog, clock: clock}
}

// Compute returns the delivery floor for a pickup. With no known pickup end
// the floor is the start of pickupDate.
func (e *EarliestEngine) Compute(ctx context.Context, tier ServiceType, pickupDate string, pickupEndMin *int) Earliest {
	if pickupEndMin == nil {
		return Earliest{Date: pickupDate}
	}
	if tier == ServiceExpress {
		return e.Express(ctx, pickupDate, *pickupEndMin)
	}
	return e.Standard(ctx, pickupDate, *pickupEndMin)
}

// Standard leaves one full slot between pickup and delivery.
func (e *EarliestEngine) Standard(ctx context.Context, pickupDate string, pickupEndMin int) Earliest {
	return e.afterPickup(ctx, pickupDate, pickupEndMin, standardAdvance)
}

// Express takes the slot right after pickup, but never one that has already
// started today.
func (e *EarliestEngine) Express(ctx context.Context, pickupDate string, pickupEndMin int) Earliest {
	byPickup := e.afterPickup(ctx, pickupDate, pickupEndMin, expressAdvance)
	byNow := e.nextFromNow(ctx)
	if byNow.Date > byPickup.Date || (byNow.Date == byPickup.Date && byNow.MinStartMin >= byPickup.MinStartMin) {
		return byNow
	}
	return byPickup
}

func (e *EarliestEngine) afterPickup(ctx context.Context, pickupDate string, pickupEndMin, advance int) Earliest {
	day := e.catalog.Resolve(ctx, KindDelivery, pickupDate)
	desired := anchorIndex(day, pickupEndMin) + advance
	if desired >= 0 && desired < len(day) {
		return Earliest{Date: pickupDate, MinStartMin: day[desired].StartMin}
	}
	next := civil.AddDays(pickupDate, 1)
	return Earliest{Date: next, MinStartMin: startAt(e.catalog.Resolve(ctx, KindDelivery, next), desired-len(day))}
}

func (e *EarliestEngine) nextFromNow(ctx context.Context) Earliest {
	now := civil.Now(e.clock)
	day := e.catalog.Resolve(ctx, KindDelivery, now.Date)

	desired := -1
	for i, s := range day {
		if s.Contains(now.MinuteOfDay) {
			desired = i + 1
			break
		}
	}
	if desired < 0 {
		for i, s := range day {
			if s.StartMin >= now.MinuteOfDay {
				desired = i
				break
			}
		}
	}
	if desired >= 0 && desired < len(day) {
		return Earliest{Date: now.Date, MinStartMin: day[desired].StartMin}
	}
	next := civil.AddDays(now.Date, 1)
	return Earliest{Date: next, MinStartMin: startAt(e.catalog.Resolve(ctx, KindDelivery, next), 0)}
}

// anchorIndex finds the slot ending at pickupEndMin, else the nearest by end.
func anchorIndex(day []Slot, pickupEndMin int) int {
	best, bestDiff := -1, 0
	for i, s := range day {
		if s.EndMin == pickupEndMin {
			return i
		}
		d := s.EndMin - pickupEndMin
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// startAt clamps idx into slots and returns that slot's start, or 0 when empty.
func startAt(slots []Slot, idx int) int {
	if len(slots) == 0 {
		return 0
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(slots)-1 {
		idx = len(slots) - 1
	}
	return slots[idx].StartMin
}

// Default minimum days between pickup and delivery when the matrix is silent.
var minDaysDefault = map[ServiceType]int{
	ServiceStandard: 1,
	ServiceExpress:  0,
}

// EarliestDeliveryDate is the date-only hint shown before a pickup slot is chosen.
func EarliestDeliveryDate(pickupDate string, tier ServiceType, rule *MatrixRule) string {
	days := minDaysDefault[tier]
	if rule != nil && rule.MinDaysFromPickup != nil {
		days = *rule.MinDaysFromPickup
	}
	return civil.AddDays(pickupDate, days)
}
