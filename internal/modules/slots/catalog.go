// README: Catalog resolver; merges configured slot rows with the default table per date and kind.
package slots

import (
	"context"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"laundry/internal/civil"
	"laundry/internal/metrics"
)

// CatalogSource reads configured slot rows for a kind and a set of day_of_week keys.
type CatalogSource interface {
	SlotRows(ctx context.Context, kind Kind, dayKeys []int) ([]Row, error)
}

type Resolver struct {
	source CatalogSource
	log    zerolog.Logger
}

func NewResolver(source CatalogSource, log zerolog.Logger) *Resolver {
	return &Resolver{source: source, log: log}
}

// Resolve returns the ordered slot catalog for kind on date.
// Delivery uses delivery rows only. Pickup merges pickup rows with any
// delivery windows it lacks. Both fall back to DefaultSlots when empty.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, date string) []Slot {
	keys := civil.DayOfWeekKeys(date)
	delivery := r.rows(ctx, KindDelivery, keys)

	if kind == KindDelivery {
		if len(delivery) == 0 {
			return DefaultSlots()
		}
		return delivery
	}

	pickup := r.rows(ctx, KindPickup, keys)
	merged := mergeByWindow(pickup, delivery)
	if len(merged) == 0 {
		return DefaultSlots()
	}
	return merged
}

func (r *Resolver) rows(ctx context.Context, kind Kind, keys []int) []Slot {
	if r.source == nil {
		return nil
	}
	rows, err := r.source.SlotRows(ctx, kind, keys)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", string(kind)).Msg("slot rows unavailable, using defaults")
		metrics.IncFailOpen("catalog")
		return nil
	}
	out := make([]Slot, 0, len(rows))
	for i, row := range rows {
		if s, ok := slotFromRow(row, i); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMin < out[j].StartMin })
	return out
}

func slotFromRow(row Row, idx int) (Slot, bool) {
	start, okStart := ParseHHMM(row.StartTime)
	end, okEnd := ParseHHMM(row.EndTime)
	if !okStart || !okEnd || start == 0 || end == 0 {
		return Slot{}, false
	}
	id := row.ID
	if id == "" {
		id = strconv.Itoa(idx + 1)
	}
	label := row.DisplayTime
	if label == "" {
		label = row.StartTime + "-" + row.EndTime
	}
	capacity := DefaultCapacity
	if row.Capacity != nil {
		capacity = *row.Capacity
	}
	return Slot{
		ID:               id,
		Label:            label,
		StartMin:         start,
		EndMin:           end,
		Active:           row.IsActive == nil || *row.IsActive,
		FallbackCapacity: capacity,
	}, true
}

type window struct{ start, end int }

// mergeByWindow keeps every pickup slot and appends delivery slots whose exact
// (start, end) window is not already present.
func mergeByWindow(pickup, delivery []Slot) []Slot {
	seen := make(map[window]struct{}, len(pickup))
	out := make([]Slot, 0, len(pickup)+len(delivery))
	for _, s := range pickup {
		seen[window{s.StartMin, s.EndMin}] = struct{}{}
		out = append(out, s)
	}
	for _, s := range delivery {
		w := window{s.StartMin, s.EndMin}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMin < out[j].StartMin })
	return out
}
