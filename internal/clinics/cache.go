package clinics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const directoryCacheKey = "clinic_directory:v1"

// Cache is an optional redis read-through cache for the clinic
// directory. Every widget activation loads the directory, so the cache
// keeps a busy landing page from hammering the store. All methods are
// nil-safe; without redis the loader just queries the store.
type Cache struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewCache creates a directory cache. Returns nil when redisClient is
// nil so callers can pass it through unconditionally.
func NewCache(redisClient *redis.Client, ttl time.Duration) *Cache {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		redis:  redisClient,
		tracer: otel.Tracer("booking.internal.clinics.cache"),
		ttl:    ttl,
	}
}

// Get returns the cached directory. Any redis or decode failure is
// treated as a miss; the cache never turns into an error source.
func (c *Cache) Get(ctx context.Context) ([]Clinic, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	ctx, span := c.tracer.Start(ctx, "clinics.cache.get")
	defer span.End()

	raw, err := c.redis.Get(ctx, directoryCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			span.RecordError(err)
		}
		return nil, false
	}

	var clinics []Clinic
	if err := json.Unmarshal(raw, &clinics); err != nil {
		span.RecordError(err)
		return nil, false
	}
	return clinics, true
}

// Set stores the directory with the configured TTL. Best effort only; a
// failed write is recorded on the span and otherwise ignored.
func (c *Cache) Set(ctx context.Context, clinics []Clinic) {
	if c == nil || c.redis == nil {
		return
	}

	ctx, span := c.tracer.Start(ctx, "clinics.cache.set")
	defer span.End()

	data, err := json.Marshal(clinics)
	if err != nil {
		span.RecordError(err)
		return
	}
	if err := c.redis.Set(ctx, directoryCacheKey, data, c.ttl).Err(); err != nil {
		span.RecordError(err)
	}
}

// Invalidate drops the cached directory.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, directoryCacheKey).Err()
}
