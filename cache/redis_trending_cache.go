package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/model"
)

const keyPrefix = "plutoid"

// RedisTrendingCache keeps computed trending lists in redis so that every API
// replica serves the same result until it expires.
type RedisTrendingCache struct {
	inner     *redis.Client
	keyParser RedisKeyParser
}

// GetRedisTrendingCache connects to the redis instance named by REDIS_HOST,
// REDIS_PORT and REDIS_PASSWD and fails if it cannot be pinged.
func GetRedisTrendingCache(ctx context.Context) (*RedisTrendingCache, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return NewRedisTrendingCache(redisClient), nil
}

func NewRedisTrendingCache(client *redis.Client) *RedisTrendingCache {
	return &RedisTrendingCache{
		inner:     client,
		keyParser: RedisKeyParser{prefix: keyPrefix, delimiter: "__"},
	}
}

// RedisKeyParser namespaces cache keys so the instance can be shared.
type RedisKeyParser struct {
	prefix    string
	delimiter string
}

func (r RedisKeyParser) ValidateKey(key string) bool {
	return key != "" && !strings.Contains(key, r.delimiter)
}

func (r RedisKeyParser) EncodeKey(key string) (string, error) {
	if !r.ValidateKey(key) {
		return "", fmt.Errorf("invalid cache key: %q", key)
	}
	return r.prefix + r.delimiter + key, nil
}

func (r RedisKeyParser) DecodeKey(encoded string) (string, error) {
	splits := strings.Split(encoded, r.delimiter)
	if len(splits) != 2 || splits[0] != r.prefix {
		return "", fmt.Errorf("invalid key: %s", encoded)
	}
	return splits[1], nil
}

func (r *RedisTrendingCache) Get(ctx context.Context, key string) ([]*model.TrendingHashtag, bool, error) {
	k, err := r.keyParser.EncodeKey(key)
	if err != nil {
		return nil, false, err
	}
	val, err := r.inner.Get(ctx, k).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", k)
	}

	var tags []*model.TrendingHashtag
	if err := json.Unmarshal([]byte(val), &tags); err != nil {
		return nil, false, errors.Wrapf(err, "decode %s", k)
	}
	return tags, true, nil
}

func (r *RedisTrendingCache) Set(ctx context.Context, key string, tags []*model.TrendingHashtag, ttl time.Duration) error {
	k, err := r.keyParser.EncodeKey(key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return errors.Wrapf(r.inner.Set(ctx, k, b, ttl).Err(), "set %s", k)
}

func (r *RedisTrendingCache) Close() error {
	return r.inner.Close()
}
