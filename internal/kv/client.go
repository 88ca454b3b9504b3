// Package kv is the typed KV-store facade the rest of the system goes
// through, wrapping a Redis client with typed get/mget/set/keys/expire
// operations and TTL semantics.
package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
)

// Client wraps a redis.Client with typed get/mget/set/keys/expire
// operations, with TTL semantics where ttl=0 means "no expiry set".
type Client struct {
	rdb *redis.Client
}

// New connects to the given Redis URL (redis://host:port/db).
func New(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errs.New(errs.KindKVConnect, "parse redis url", err)
	}
	rdb := redis.NewClient(opts)
	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an already-constructed redis.Client (used by tests
// against miniredis).
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error { return c.rdb.Close() }

// GetBytes fetches a single key's raw value.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.KindKVGetValue, key, err)
	}
	return b, nil
}

// MGetBytes fetches multiple keys' raw values in one round trip. Missing
// keys are omitted from the returned slice (not nil-padded), since
// callers always decode byte blobs and a hole would have to be
// skipped anyway. An empty key list short-circuits without a round trip.
func (c *Client) MGetBytes(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errs.New(errs.KindKVGetValue, "mget", err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(s))
	}
	return out, nil
}

// GetString fetches a single key's value as a string.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errs.New(errs.KindKVGetValue, key, err)
	}
	return s, nil
}

// MGetString fetches multiple keys' values as strings. Unlike MGetBytes,
// the returned slice is the same length as keys and positionally
// aligned with it — a missing key yields an empty string at its index
// rather than shifting every value after it over by one. Callers that
// zip keys with values pairwise (e.g. re-seeding the translator map
// from gbf:translator:* at startup) need that alignment to avoid
// cross-pairing unrelated keys and values when a scan races an
// eviction.
func (c *Client) MGetString(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errs.New(errs.KindKVGetValue, "mget", err)
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// SetBytes writes a key with an optional TTL. ttl=0 means no expiry.
func (c *Client) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errs.New(errs.KindKVSetValue, key, err)
	}
	return nil
}

// SetMultipleString writes several string key/value pairs with no TTL,
// used for the translator mirror's symmetric entries.
func (c *Client) SetMultipleString(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, k, v)
	}
	if err := c.rdb.MSet(ctx, args...).Err(); err != nil {
		return errs.New(errs.KindKVSetValue, "mset", err)
	}
	return nil
}

// Expire sets or refreshes a key's TTL.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return errs.New(errs.KindKVExpire, key, err)
	}
	return nil
}

// Keys lists all keys matching pattern via cursor-based SCAN, avoiding
// the blocking O(N) KEYS command against a live, shared Redis instance.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, errs.New(errs.KindKVGetKeys, pattern, err)
		}
		out = append(out, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}
