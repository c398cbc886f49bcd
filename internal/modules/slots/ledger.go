// README: Booking ledger reader; booked counts per slot and capacity caps, both fail-open.
package slots

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"laundry/internal/civil"
	"laundry/internal/metrics"
)

// ExcludedStatuses do not hold a slot. Compared case-insensitively.
var ExcludedStatuses = map[string]struct{}{
	"canceled":  {},
	"cancelled": {},
	"refunded":  {},
	"failed":    {},
	"rejected":  {},
	"expired":   {},
}

// HoldsSlot reports whether an order in status still consumes capacity.
func HoldsSlot(status string) bool {
	_, excluded := ExcludedStatuses[strings.ToLower(strings.TrimSpace(status))]
	return !excluded
}

// LedgerSource reads bookings and explicit capacity rows.
type LedgerSource interface {
	Bookings(ctx context.Context, kind Kind, date string) ([]Booking, error)
	Capacities(ctx context.Context, weekday int) (map[string]int, error)
}

type Ledger struct {
	source LedgerSource
	log    zerolog.Logger
}

func NewLedger(source LedgerSource, log zerolog.Logger) *Ledger {
	return &Ledger{source: source, log: log}
}

// BookedCounts counts slot-holding orders per slot id for date and kind.
// A read failure yields an empty map so availability is never blocked by it.
func (l *Ledger) BookedCounts(ctx context.Context, date string, kind Kind) map[string]int {
	out, err := l.ReadBookedCounts(ctx, date, kind)
	if err != nil {
		l.log.Warn().Err(err).Str("date", date).Str("kind", string(kind)).Msg("booked counts unavailable, treating as zero")
		metrics.IncFailOpen("booked_counts")
		return map[string]int{}
	}
	return out
}

// ReadBookedCounts is BookedCounts without the fallback. Callers that persist
// the result (the reservation counter) must not seed from a failed read.
func (l *Ledger) ReadBookedCounts(ctx context.Context, date string, kind Kind) (map[string]int, error) {
	out := map[string]int{}
	if l.source == nil {
		return out, nil
	}
	rows, err := l.source.Bookings(ctx, kind, date)
	if err != nil {
		return nil, err
	}
	for _, b := range rows {
		if b.SlotID == nil || !HoldsSlot(b.Status) {
			continue
		}
		out[*b.SlotID]++
	}
	return out, nil
}

// CapacityBySlot returns explicit caps for the Sunday-first weekday of date.
func (l *Ledger) CapacityBySlot(ctx context.Context, date string) map[string]int {
	caps, err := l.ReadCapacities(ctx, date)
	if err != nil {
		l.log.Warn().Err(err).Str("date", date).Msg("slot capacity unavailable, using fallbacks")
		metrics.IncFailOpen("capacity")
		return map[string]int{}
	}
	return caps
}

func (l *Ledger) ReadCapacities(ctx context.Context, date string) (map[string]int, error) {
	if l.source == nil {
		return map[string]int{}, nil
	}
	caps, err := l.source.Capacities(ctx, int(civil.Weekday(date)))
	if err != nil {
		return nil, err
	}
	if caps == nil {
		caps = map[string]int{}
	}
	return caps, nil
}

// Remaining is capacity minus booked, floored at zero.
func Remaining(capacity, booked int) int {
	if r := capacity - booked; r > 0 {
		return r
	}
	return 0
}
