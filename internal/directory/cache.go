package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"examflow/pkg/domain"
)

const userKeyPrefix = "dir:user:"

// Cached fronts a Directory with a Redis read-through cache. Redis errors
// degrade to the backing directory; they never fail a lookup.
type Cached struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type CacheOption func(*Cached)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

func NewCached(next Directory, client *redis.Client, ttl time.Duration, opts ...CacheOption) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &Cached{next: next, client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cached) Lookup(ctx context.Context, id domain.UserID) (*User, error) {
	key := userKeyPrefix + id.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u User
		if jsonErr := json.Unmarshal(raw, &u); jsonErr == nil {
			return &u, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt directory cache entry", "user_id", id)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "directory cache read failed", "user_id", id, "error", err)
	}

	u, err := c.next.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(u); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "directory cache write failed", "user_id", id, "error", setErr)
		}
	}
	return u, nil
}

// Invalidate drops a cached user.
func (c *Cached) Invalidate(ctx context.Context, id domain.UserID) error {
	return c.client.Del(ctx, userKeyPrefix+id.String()).Err()
}
