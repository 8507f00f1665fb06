// Package cache keeps the latest published version of each template in Redis.
// It is read-through only: writes go to the store and then invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"dynforms/internal/catalog/models"
	id "dynforms/pkg/domain"
)

// Loader reads the latest published version from the authoritative store.
type Loader func(ctx context.Context) (*models.TemplateVersion, error)

const (
	keyPrefix        = "dynforms:catalog:latest_published:"
	generationPrefix = "dynforms:catalog:latest_generation:"
)

func key(templateID id.TemplateID) string {
	return keyPrefix + templateID.String()
}

func generationKey(templateID id.TemplateID) string {
	return generationPrefix + templateID.String()
}

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds the
// generation read before the load. A missing generation counts as "0".
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisCache caches hits only. Misses from the loader are never cached so a
// freshly published version is visible immediately after invalidation.
// Invalidate bumps a per-template generation; a load that started before the
// bump is returned to its callers but never written back.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

type Option func(*RedisCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

func NewRedis(client redis.Cmdable, ttl time.Duration, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestPublished returns the cached version or loads it. Concurrent misses
// for the same template share one load. Redis failures fall back to load.
func (c *RedisCache) LatestPublished(ctx context.Context, templateID id.TemplateID, load Loader) (*models.TemplateVersion, error) {
	k := key(templateID)
	raw, err := c.client.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var v models.TemplateVersion
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return &v, nil
		}
		c.warn(ctx, "discarding undecodable cache entry", k, nil)
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "cache read failed", k, err)
	}

	// Keying the flight by generation keeps callers that arrive after an
	// Invalidate from joining a load that started before it.
	generation, genErr := c.generation(ctx, templateID)
	if genErr != nil {
		c.warn(ctx, "cache generation read failed", k, genErr)
	}
	res, err, _ := c.group.Do(k+"@"+generation, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		loadCtx := context.WithoutCancel(ctx)
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			c.store(loadCtx, templateID, generation, v)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	v := *res.(*models.TemplateVersion)
	return &v, nil
}

func (c *RedisCache) generation(ctx context.Context, templateID id.TemplateID) (string, error) {
	g, err := c.client.Get(ctx, generationKey(templateID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return g, err
}

func (c *RedisCache) store(ctx context.Context, templateID id.TemplateID, generation string, v *models.TemplateVersion) {
	k := key(templateID)
	encoded, err := json.Marshal(v)
	if err != nil {
		return
	}
	err = setIfGeneration.Run(ctx, c.client,
		[]string{k, generationKey(templateID)},
		generation, string(encoded), c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.warn(ctx, "cache write failed", k, err)
	}
}

// Invalidate bumps the template's generation before dropping the cached
// value, so loads already in flight cannot repopulate it.
func (c *RedisCache) Invalidate(ctx context.Context, templateID id.TemplateID) error {
	if err := c.client.Incr(ctx, generationKey(templateID)).Err(); err != nil {
		return fmt.Errorf("bump latest version generation: %w", err)
	}
	if err := c.client.Del(ctx, key(templateID)).Err(); err != nil {
		return fmt.Errorf("invalidate latest version: %w", err)
	}
	return nil
}

func (c *RedisCache) warn(ctx context.Context, msg, k string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, msg, "key", k, "error", err)
}

// Passthrough always loads. Used when Redis is not configured.
type Passthrough struct{}

func (Passthrough) LatestPublished(ctx context.Context, _ id.TemplateID, load Loader) (*models.TemplateVersion, error) {
	return load(ctx)
}

func (Passthrough) Invalidate(context.Context, id.TemplateID) error { return nil }
