// README: Service area store backed by PostgreSQL.
package area

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Get returns nil, nil when the pincode has no row.
func (s *Store) Get(ctx context.Context, pincode string) (*Area, error) {
	var a Area
	err := s.db.QueryRow(ctx, `
		SELECT pincode, COALESCE(is_active, false)
		FROM service_areas
		WHERE pincode = $1
		LIMIT 1`, pincode).Scan(&a.Pincode, &a.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
