// README: Serviceability check; unknown pincodes and lookup failures are served.
package area

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"laundry/internal/metrics"
)

type Reader interface {
	Get(ctx context.Context, pincode string) (*Area, error)
}

type Service struct {
	store Reader
	log   zerolog.Logger
}

func NewService(store Reader, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// IsServiceable is false only for a known pincode marked inactive.
func (s *Service) IsServiceable(ctx context.Context, pincode string) bool {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" || s.store == nil {
		return true
	}
	a, err := s.store.Get(ctx, pincode)
	if err != nil {
		s.log.Warn().Err(err).Str("pincode", pincode).Msg("service area lookup failed, allowing")
		metrics.IncFailOpen("serviceability")
		return true
	}
	if a == nil {
		return true
	}
	return a.IsActive
}
