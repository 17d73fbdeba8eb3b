package feed

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/momentum/market"
)

// DefaultCachePrefix namespaces cache keys.
const DefaultCachePrefix = "momentum:"

// Cache is a read-through Redis cache in front of another DataFeed. Only
// hits are cached; a data gap is asked again next time. Redis failures
// are logged and served from the underlying feed.
type Cache struct {
	rdb    redis.Cmdable
	next   DataFeed
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

func NewCache(rdb redis.Cmdable, next DataFeed, ttl time.Duration, prefix string, log zerolog.Logger) *Cache {
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl, prefix: prefix, log: log}
}

func (c *Cache) key(kind, symbol string, date time.Time) string {
	k := c.prefix + kind + ":"
	if symbol != "" {
		k += symbol + ":"
	}
	return k + date.Format(market.DateLayout)
}

// lookup returns the cached bytes, or nil on a miss or Redis failure.
func (c *Cache) lookup(ctx context.Context, key string) []byte {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil
	}
	return b
}

func (c *Cache) store(ctx context.Context, key string, v []byte) {
	if err := c.rdb.Set(ctx, key, v, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *Cache) Universe(ctx context.Context, date time.Time) ([]string, error) {
	key := c.key("universe", "", date)
	if b := c.lookup(ctx, key); b != nil {
		var syms []string
		if err := json.Unmarshal(b, &syms); err == nil {
			return syms, nil
		}
	}

	syms, err := c.next.Universe(ctx, date)
	if err != nil || len(syms) == 0 {
		return syms, err
	}
	if b, err := json.Marshal(syms); err == nil {
		c.store(ctx, key, b)
	}
	return syms, nil
}

func (c *Cache) Snapshot(ctx context.Context, symbol string, date time.Time) (market.Snapshot, bool, error) {
	key := c.key("snapshot", symbol, date)
	if b := c.lookup(ctx, key); b != nil {
		var s market.Snapshot
		if err := json.Unmarshal(b, &s); err == nil {
			return s, true, nil
		}
	}

	s, ok, err := c.next.Snapshot(ctx, symbol, date)
	if err != nil || !ok {
		return s, ok, err
	}
	if b, err := json.Marshal(s); err == nil {
		c.store(ctx, key, b)
	} else {
		// NaN values do not encode; the snapshot is still usable.
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("snapshot not cached")
	}
	return s, true, nil
}

func (c *Cache) Price(ctx context.Context, symbol string, date time.Time) (float64, bool, error) {
	key := c.key("price", symbol, date)
	if b := c.lookup(ctx, key); b != nil {
		if v, err := strconv.ParseFloat(string(b), 64); err == nil {
			return v, true, nil
		}
	}

	v, ok, err := c.next.Price(ctx, symbol, date)
	if err != nil || !ok {
		return v, ok, err
	}
	c.store(ctx, key, []byte(strconv.FormatFloat(v, 'f', -1, 64)))
	return v, true, nil
}
