package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var errEmptyRedisURL = errors.New("cache.redis.empty_url")

// RedisConfig configures the Redis-backed Client.
type RedisConfig struct {
	URL         string
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// RedisClient implements Client on top of a Redis server.
// Retries are disabled: store failures surface immediately as ErrStoreUnavailable.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient parses the URL, dials the server, and verifies it answers PING.
func NewRedisClient(ctx context.Context, configuration RedisConfig) (*RedisClient, error) {
	if strings.TrimSpace(configuration.URL) == "" {
		return nil, fmt.Errorf("cache.redis.open: %w", errEmptyRedisURL)
	}
	options, parseErr := redis.ParseURL(configuration.URL)
	if parseErr != nil {
		return nil, fmt.Errorf("cache.redis.parse_url: %w", parseErr)
	}
	if configuration.DialTimeout > 0 {
		options.DialTimeout = configuration.DialTimeout
	}
	if configuration.IOTimeout > 0 {
		options.ReadTimeout = configuration.IOTimeout
		options.WriteTimeout = configuration.IOTimeout
	}
	options.MaxRetries = -1

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, classify("cache.redis.ping", err)
	}
	return &RedisClient{client: client}, nil
}

// NewRedisClientFromHandle wraps an already configured go-redis client.
func NewRedisClientFromHandle(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Close releases the connection pool.
func (store *RedisClient) Close() error {
	return store.client.Close()
}

// SetWithExpiration issues SET key value PX ttl.
func (store *RedisClient) SetWithExpiration(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := store.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify("cache.redis.set", err)
	}
	return nil
}

// Get issues GET key; a nil reply maps to found=false.
func (store *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := store.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("cache.redis.get", err)
	}
	return value, true, nil
}

// Delete issues DEL key.
func (store *RedisClient) Delete(ctx context.Context, key string) error {
	if err := store.client.Del(ctx, key).Err(); err != nil {
		return classify("cache.redis.del", err)
	}
	return nil
}

// SetExpiration issues EXPIRE key ttl.
func (store *RedisClient) SetExpiration(ctx context.Context, key string, ttl time.Duration) error {
	if err := store.client.Expire(ctx, key, ttl).Err(); err != nil {
		return classify("cache.redis.expire", err)
	}
	return nil
}

// AddToSet issues SADD key member.
func (store *RedisClient) AddToSet(ctx context.Context, key string, member string) error {
	if err := store.client.SAdd(ctx, key, member).Err(); err != nil {
		return classify("cache.redis.sadd", err)
	}
	return nil
}

// RemoveFromSet issues SREM key member.
func (store *RedisClient) RemoveFromSet(ctx context.Context, key string, member string) error {
	if err := store.client.SRem(ctx, key, member).Err(); err != nil {
		return classify("cache.redis.srem", err)
	}
	return nil
}

// Members issues SMEMBERS key.
func (store *RedisClient) Members(ctx context.Context, key string) ([]string, error) {
	members, err := store.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, classify("cache.redis.smembers", err)
	}
	return members, nil
}

// SetAndTrack wraps SET, SADD and EXPIRE in a MULTI/EXEC transaction.
func (store *RedisClient) SetAndTrack(ctx context.Context, key string, value string, setKey string, member string, ttl time.Duration) error {
	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		pipe.SAdd(ctx, setKey, member)
		pipe.Expire(ctx, setKey, ttl)
		return nil
	})
	if err != nil {
		return classify("cache.redis.set_and_track", err)
	}
	return nil
}

func classify(operation string, err error) error {
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		if strings.HasPrefix(replyErr.Error(), "WRONGTYPE") {
			return fmt.Errorf("%s: %w", operation, ErrWrongType)
		}
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %v", operation, ErrStoreUnavailable, err)
}
