package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dynforms/internal/ratelimit/models"
)

const (
	keyPrefix        = "dynforms:lockout:"
	fieldFailures    = "failures"
	fieldWindowStart = "window_start"
	fieldLockedUntil = "locked_until"
)

// Redis keeps one hash per key. The key expires with its window or its lock,
// whichever ends later, so stale records need no sweeping.
type Redis struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Get(ctx context.Context, key models.Key) (*models.Lockout, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+key.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parse(key, fields)
}

// RecordFailure increments the counter atomically. The first failure of a
// window stamps its start and arms the expiry.
func (s *Redis) RecordFailure(ctx context.Context, key models.Key, now time.Time, window time.Duration) (*models.Lockout, error) {
	k := keyPrefix + key.String()
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, k, fieldWindowStart, now.UnixNano())
	pipe.HIncrBy(ctx, k, fieldFailures, 1)
	pipe.ExpireNX(ctx, k, window)
	all := pipe.HGetAll(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	return parse(key, all.Val())
}

// Lock stamps the lock and keeps the hash alive until it lifts.
func (s *Redis) Lock(ctx context.Context, key models.Key, until time.Time) error {
	k := keyPrefix + key.String()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, fieldLockedUntil, until.UnixNano())
	pipe.ExpireAt(ctx, k, until)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context, key models.Key) error {
	if err := s.client.Del(ctx, keyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

func parse(key models.Key, fields map[string]string) (*models.Lockout, error) {
	rec := &models.Lockout{Key: key}
	if raw, ok := fields[fieldFailures]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse failures: %w", err)
		}
		rec.Failures = n
	}
	start, err := unixNano(fields, fieldWindowStart)
	if err != nil {
		return nil, err
	}
	if start != nil {
		rec.WindowStart = *start
	}
	rec.LockedUntil, err = unixNano(fields, fieldLockedUntil)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func unixNano(fields map[string]string, name string) (*time.Time, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	t := time.Unix(0, n).UTC()
	return &t, nil
}
