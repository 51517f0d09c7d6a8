package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// Redis key layout.
const (
	KeyPrefix  = "scorecard:checkpoint"
	MatchesKey = "scorecard:matches"
)

// ErrInvalidEntry indicates a stored value could not be decoded.
var ErrInvalidEntry = errors.New("invalid checkpoint entry")

// StoreErrors tracks store operation errors.
var StoreErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scorecard_checkpoint_errors_total",
		Help: "Total number of checkpoint store errors",
	},
	[]string{"operation"}, // "load", "save", "record_match", "matches"
)

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key RangeKey) (int64, bool, error) {
	next, err := s.redis.Get(ctx, key.String()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		StoreErrors.WithLabelValues("load").Inc()
		return 0, false, fmt.Errorf("redis get: %w", err)
	}
	return next, true, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key RangeKey, next int64) error {
	if err := s.redis.Set(ctx, key.String(), next, 0).Err(); err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// RecordMatch implements Store.
func (s *RedisStore) RecordMatch(ctx context.Context, identifier string, rec scorecard.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		StoreErrors.WithLabelValues("record_match").Inc()
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := s.redis.HSet(ctx, MatchesKey, identifier, data).Err(); err != nil {
		StoreErrors.WithLabelValues("record_match").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Matches implements Store.
func (s *RedisStore) Matches(ctx context.Context) (map[string]scorecard.Record, error) {
	raw, err := s.redis.HGetAll(ctx, MatchesKey).Result()
	if err != nil {
		StoreErrors.WithLabelValues("matches").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	out := make(map[string]scorecard.Record, len(raw))
	for identifier, data := range raw {
		var rec scorecard.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			StoreErrors.WithLabelValues("matches").Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, identifier, err)
		}
		out[identifier] = rec
	}
	return out, nil
}
