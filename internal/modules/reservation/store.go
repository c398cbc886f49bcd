// README: Slot reservation counters backed by Redis; atomic reserve-if-capacity-remains.
package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyFormat = "slots:reserve:%s:%s:%s"
	// Dates are bookable at most a week ahead; counters outlive that by a day.
	keyTTL = 8 * 24 * time.Hour
)

// KEYS[1] counter; ARGV[1] capacity, ARGV[2] seed count, ARGV[3] ttl seconds.
// Returns 1 when a unit was taken, 0 when the slot is full.
var reserveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  redis.call('SET', KEYS[1], ARGV[2], 'EX', ARGV[3])
  cur = ARGV[2]
end
if tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
return 1
`)

// KEYS[1] counter. Decrements without going below zero; a missing key is left alone.
var releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
if tonumber(cur) > 0 then
  redis.call('DECR', KEYS[1])
end
return 1
`)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func counterKey(kind, date, slotID string) string {
	return fmt.Sprintf(keyFormat, kind, date, slotID)
}

// TryReserve takes one unit of capacity. seed initialises the counter the
// first time the slot is touched.
func (s *Store) TryReserve(ctx context.Context, kind, date, slotID string, capacity, seed int) (bool, error) {
	n, err := reserveScript.Run(ctx, s.redis, []string{counterKey(kind, date, slotID)},
		capacity, seed, int(keyTTL.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Release(ctx context.Context, kind, date, slotID string) error {
	err := releaseScript.Run(ctx, s.redis, []string{counterKey(kind, date, slotID)}).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// Count returns the current counter and whether it exists.
func (s *Store) Count(ctx context.Context, kind, date, slotID string) (int, bool, error) {
	n, err := s.redis.Get(ctx, counterKey(kind, date, slotID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
