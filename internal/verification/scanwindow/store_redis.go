package scanwindow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "scanwindow:"

// RedisStore keeps per-serial scan timestamps in a Redis sorted set scored by
// unix nanos, so the window survives restarts and is shared across replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Record(ctx context.Context, serialNumber string, at time.Time, window time.Duration) (int64, error) {
	key := keyPrefix + serialNumber
	cutoff := strconv.FormatInt(at.Add(-window).UnixNano(), 10)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: uuid.NewString()})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recording scan for %s: %w", serialNumber, err)
	}
	return card.Val(), nil
}
