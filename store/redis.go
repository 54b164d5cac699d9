package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisTimeout = 5 * time.Second

// Redis stores each value as a JSON string under "<prefix><ns>:<key>".
type Redis struct {
	client *redis.Client
	prefix string
}

func OpenRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	log.Printf("[STORE] connected to redis %s (db %d)", opts.Addr, opts.DB)
	return NewRedisWithClient(client), nil
}

func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "gchat:"}
}

func (r *Redis) key(ns, key string) string {
	return r.prefix + ns + ":" + key
}

func (r *Redis) Get(ns, key string, dst any) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	raw, err := r.client.Get(ctx, r.key(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s/%s: %w", ns, key, err)
	}
	return true, decode(raw, dst)
}

func (r *Redis) Set(ns, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(ns, key), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (r *Redis) Remove(ns, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(ns, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s/%s: %w", ns, key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
