package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces checkpoint keys when no prefix is configured.
const DefaultRedisKeyPrefix = "glb:checkpoint"

// RedisStore implements Store using two Redis string keys written in a
// single MULTI/EXEC transaction.
type RedisStore struct {
	client       *redis.Client
	recordsKey   string
	processedKey string
}

// compile-time check
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore connected to the given Redis URL.
// The URL is parsed with redis.ParseURL so it supports redis:// and rediss:// schemes.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Verify connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership of the client and closes it on Close.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{
		client:       client,
		recordsKey:   prefix + ":records",
		processedKey: prefix + ":processed",
	}
}

// Load fetches both keys in one MGET.
func (r *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	vals, err := r.client.MGet(ctx, r.recordsKey, r.processedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis MGET %s %s: %w", r.recordsKey, r.processedKey, err)
	}

	records, hasRecords := vals[0].(string)
	processed, hasProcessed := vals[1].(string)

	switch {
	case !hasRecords && !hasProcessed:
		return nil, nil
	case !hasProcessed:
		return nil, fmt.Errorf("%w: key %s exists but %s is missing", ErrPartialCheckpoint, r.recordsKey, r.processedKey)
	case !hasRecords:
		return nil, fmt.Errorf("%w: key %s exists but %s is missing", ErrPartialCheckpoint, r.processedKey, r.recordsKey)
	}

	s, err := decodeSnapshot([]byte(records), []byte(processed))
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	return s, nil
}

// Save overwrites both keys atomically.
func (r *RedisStore) Save(ctx context.Context, s *Snapshot) error {
	records, processed, err := encodeSnapshot(s)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.recordsKey, records, 0)
		pipe.Set(ctx, r.processedKey, processed, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis SET checkpoint: %w", err)
	}
	return nil
}

// Clear deletes both keys.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.recordsKey, r.processedKey).Err(); err != nil {
		return fmt.Errorf("redis DEL checkpoint: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
