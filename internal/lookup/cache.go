package lookup

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/molgan/internal/config"
)

const keyPrefix = "molgan:structure:"

// Cache stores resolved structures. Get returns "" on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisCache struct {
	client rueidis.Client
	cfg    *config.RedisEnvConfig
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(cfg *config.RedisEnvConfig) (*RedisCache, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)},
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		SelectDB:    cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
		cfg:    cfg,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		return "", err
	}
	return resp.ToString()
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		return r.client.Do(ctx, r.client.B().Set().Key(key).Value(value).Ex(ttl).Build()).Error()
	}
	return r.client.Do(ctx, r.client.B().Set().Key(key).Value(value).Build()).Error()
}

func (r *RedisCache) Close() {
	r.client.Close()
}

// CachedResolver consults the cache before the wrapped resolver and stores
// every successful resolution. Cache failures degrade to a direct lookup.
type CachedResolver struct {
	next  Resolver
	cache Cache
	ttl   time.Duration
}

var _ Resolver = (*CachedResolver)(nil)

func NewCachedResolver(next Resolver, cache Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, cache: cache, ttl: ttl}
}

func (c *CachedResolver) ByName(ctx context.Context, name string) Resolution {
	key := keyPrefix + "name:" + strings.ToLower(strings.TrimSpace(name))
	return c.through(ctx, key, func() Resolution { return c.next.ByName(ctx, name) })
}

func (c *CachedResolver) ByCID(ctx context.Context, cid int) Resolution {
	key := keyPrefix + "cid:" + strconv.Itoa(cid)
	return c.through(ctx, key, func() Resolution { return c.next.ByCID(ctx, cid) })
}

func (c *CachedResolver) through(ctx context.Context, key string, miss func() Resolution) Resolution {
	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("structure cache read failed")
	} else if cached != "" {
		return resolved(cached)
	}

	res := miss()
	if !res.OK {
		return res
	}
	if err := c.cache.Set(ctx, key, res.Structure, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("structure cache write failed")
	}
	return res
}
