package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/cartledger/internal/model"
)

// DefaultRedisNamespace prefixes every key the engine writes to Redis.
const DefaultRedisNamespace = "cartledger:"

// DefaultMaxAttempts bounds how often a conflicting unit of work is re-run.
const DefaultMaxAttempts = 8

// Redis is a KV on a shared Redis server. Units of work are optimistic:
// every key read inside one is WATCHed and the buffered writes are committed
// with MULTI/EXEC, which Redis aborts if a watched key changed meanwhile.
type Redis struct {
	client      *redis.Client
	namespace   string
	maxAttempts int
}

var _ KV = (*Redis)(nil)

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithNamespace overrides DefaultRedisNamespace.
func WithNamespace(ns string) RedisOption {
	return func(r *Redis) { r.namespace = ns }
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// NewRedis wraps an existing client. The store does not own the client's
// lifecycle beyond Close.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, namespace: DefaultRedisNamespace, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr string, opts ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedis(client, opts...), nil
}

// Isolation implements KV.
func (r *Redis) Isolation() Isolation {
	return IsolationOptimistic
}

// Get implements Reader.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	return redisGet(ctx, r.client, r.namespace+key)
}

// Keys implements Reader.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	return redisKeys(ctx, r.client, r.namespace, prefix)
}

// Update implements KV. fn may run more than once.
func (r *Redis) Update(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			st := newStaged(&redisTxReader{tx: tx, namespace: r.namespace})
			if err := fn(st); err != nil {
				return err
			}
			if st.empty() {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return st.each(func(key string, value *string) error {
					if value == nil {
						pipe.Del(ctx, r.namespace+key)
					} else {
						pipe.Set(ctx, r.namespace+key, *value, 0)
					}
					return nil
				})
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return model.NewConcurrentUpdate(r.maxAttempts)
}

// Close implements KV.
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisTxReader struct {
	tx        *redis.Tx
	namespace string
}

func (r *redisTxReader) Get(ctx context.Context, key string) (string, bool, error) {
	if err := r.tx.Watch(ctx, r.namespace+key).Err(); err != nil {
		return "", false, fmt.Errorf("watch %q: %w", key, err)
	}
	return redisGet(ctx, r.tx, r.namespace+key)
}

// Keys inside a unit of work are not watched; only point reads are.
func (r *redisTxReader) Keys(ctx context.Context, prefix string) ([]string, error) {
	return redisKeys(ctx, r.tx, r.namespace, prefix)
}

// redisReader is satisfied by *redis.Client and *redis.Tx.
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
}

func redisGet(ctx context.Context, c redisReader, key string) (string, bool, error) {
	v, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

func redisKeys(ctx context.Context, c redisReader, namespace, prefix string) ([]string, error) {
	found, err := c.Keys(ctx, escapeGlob(namespace+prefix)+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	keys := make([]string, 0, len(found))
	for _, k := range found {
		keys = append(keys, strings.TrimPrefix(k, namespace))
	}
	sort.Strings(keys)
	return keys, nil
}

// escapeGlob quotes the characters KEYS treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
