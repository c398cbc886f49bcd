// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry/internal/types"
)

const uniqueViolation = "23505"

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, o *Order) error {
	var address []byte
	if o.AddressDetails != nil {
		b, err := json.Marshal(o.AddressDetails)
		if err != nil {
			return err
		}
		address = b
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, total_amount, discount_amount, order_status, status,
			pickup_date, delivery_date, payment_method, payment_status, payment_id,
			delivery_address, address_details, applied_coupon_code, delivery_type,
			pickup_slot_id, delivery_slot_id,
			pickup_slot_display_time, delivery_slot_display_time,
			pickup_slot_start_time, pickup_slot_end_time,
			delivery_slot_start_time, delivery_slot_end_time,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7::date, $8::date, $9, $10, $11,
			$12, $13::jsonb, $14, $15,
			$16::uuid, $17::uuid,
			$18, $19,
			$20::time, $21::time,
			$22::time, $23::time,
			$24
		)`,
		o.ID, o.UserID, o.Total.Major(), o.Discount.Major(), o.OrderStatus, o.Status,
		o.PickupDate, o.DeliveryDate, o.PaymentMethod, o.PaymentStatus, o.PaymentID,
		o.DeliveryAddress, address, o.AppliedCouponCode, o.DeliveryType,
		o.PickupSlotID, o.DeliverySlotID,
		o.PickupSlotDisplayTime, o.DeliverySlotDisplayTime,
		o.PickupSlotStartTime, o.PickupSlotEndTime,
		o.DeliverySlotStartTime, o.DeliverySlotEndTime,
		o.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

const selectOrder = `
	SELECT id, COALESCE(user_id, ''), COALESCE(total_amount, 0)::float8, COALESCE(discount_amount, 0)::float8,
	       COALESCE(order_status, ''), COALESCE(status, ''),
	       to_char(pickup_date, 'YYYY-MM-DD'), to_char(delivery_date, 'YYYY-MM-DD'),
	       COALESCE(payment_method, ''), COALESCE(payment_status, ''), payment_id,
	       delivery_address, address_details, applied_coupon_code, COALESCE(delivery_type, ''),
	       pickup_slot_id::text, delivery_slot_id::text,
	       pickup_slot_display_time, delivery_slot_display_time,
	       to_char(pickup_slot_start_time, 'HH24:MI:SS'), to_char(pickup_slot_end_time, 'HH24:MI:SS'),
	       to_char(delivery_slot_start_time, 'HH24:MI:SS'), to_char(delivery_slot_end_time, 'HH24:MI:SS'),
	       created_at
	FROM orders`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o               Order
		total, discount float64
		address         []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &total, &discount,
		&o.OrderStatus, &o.Status,
		&o.PickupDate, &o.DeliveryDate,
		&o.PaymentMethod, &o.PaymentStatus, &o.PaymentID,
		&o.DeliveryAddress, &address, &o.AppliedCouponCode, &o.DeliveryType,
		&o.PickupSlotID, &o.DeliverySlotID,
		&o.PickupSlotDisplayTime, &o.DeliverySlotDisplayTime,
		&o.PickupSlotStartTime, &o.PickupSlotEndTime,
		&o.DeliverySlotStartTime, &o.DeliverySlotEndTime,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Total = types.FromMajor(total, types.CurrencyINR)
	o.Discount = types.FromMajor(discount, types.CurrencyINR)
	if len(address) > 0 {
		var a AddressDetails
		if json.Unmarshal(address, &a) == nil {
			o.AddressDetails = &a
		}
	}
	return &o, nil
}

func (s *PgStore) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// MarkCancelled writes the cancelled marker. Orders without an owner may be
// cancelled by any signed-in caller.
func (s *PgStore) MarkCancelled(ctx context.Context, id, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET order_status = $1, status = $1
		WHERE id = $2 AND (user_id = $3 OR user_id IS NULL)`,
		CancelledMarker, id, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	rows, err := s.db.Query(ctx, selectOrder+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PgStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_status_events (order_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.OrderID, e.FromStatus, e.ToStatus, e.ActorType, e.ActorID, e.CreatedAt,
	)
	return err
}
