// README: Slot store backed by PostgreSQL (slot tables, capacity, bookings, delivery matrix).
package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry/internal/civil"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func slotTable(kind Kind) string {
	if kind == KindPickup {
		return "pickup_slots"
	}
	return "delivery_slots"
}

func (s *PgStore) SlotRows(ctx context.Context, kind Kind, dayKeys []int) ([]Row, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id::text,
		       to_char(start_time, 'HH24:MI:SS'),
		       to_char(end_time, 'HH24:MI:SS'),
		       COALESCE(display_time, ''),
		       is_active,
		       capacity
		FROM %s
		WHERE day_of_week = ANY($1)
		ORDER BY start_time ASC`, slotTable(kind)), dayKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r          Row
			start, end *string
		)
		if err := rows.Scan(&r.ID, &start, &end, &r.DisplayTime, &r.IsActive, &r.Capacity); err != nil {
			return nil, err
		}
		if start != nil {
			r.StartTime = *start
		}
		if end != nil {
			r.EndTime = *end
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PgStore) Capacities(ctx context.Context, weekday int) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT slot_id::text, capacity
		FROM slot_capacity
		WHERE weekday = $1`, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			id       string
			capacity *int
		)
		if err := rows.Scan(&id, &capacity); err != nil {
			return nil, err
		}
		if capacity == nil {
			out[id] = DefaultCapacity
			continue
		}
		out[id] = *capacity
	}
	return out, rows.Err()
}

func (s *PgStore) Bookings(ctx context.Context, kind Kind, date string) ([]Booking, error) {
	query := `SELECT pickup_slot_id::text, COALESCE(status, '') FROM orders WHERE pickup_date = $1::date`
	if kind == KindDelivery {
		query = `SELECT delivery_slot_id::text, COALESCE(status, '') FROM orders WHERE delivery_date = $1::date`
	}
	rows, err := s.db.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.SlotID, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MatrixRule returns nil, nil when the tier has no row.
func (s *PgStore) MatrixRule(ctx context.Context, tier ServiceType) (*MatrixRule, error) {
	var (
		r       = MatrixRule{ServiceType: tier}
		allowed []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT min_days_from_pickup, min_gap_hours, allowed_slots_by_day
		FROM delivery_slot_matrix
		WHERE service_type = $1
		LIMIT 1`, string(tier)).Scan(&r.MinDaysFromPickup, &r.MinGapHours, &allowed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.AllowedSlotsByDay, err = ParseAllowedSlots(allowed)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseAllowedSlots decodes the allowed_slots_by_day JSON object. Keys may use
// any weekday convention; values may be strings or numbers. Unknown keys are ignored.
func ParseAllowedSlots(raw []byte) (map[time.Weekday][]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var byKey map[string][]any
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("allowed_slots_by_day: %w", err)
	}
	out := make(map[time.Weekday][]string, len(byKey))
	for key, ids := range byKey {
		day, ok := civil.ParseWeekdayKey(key)
		if !ok {
			continue
		}
		for _, id := range ids {
			switch v := id.(type) {
			case string:
				out[day] = append(out[day], v)
			case float64:
				out[day] = append(out[day], strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
	}
	return out, nil
}
