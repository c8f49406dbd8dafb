// Package cache is the Redis read-through cache in front of focus reports.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/andresmejia3/focuswatch/internal/log"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

const keyPrefix = "focus_data_"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReportKey is the key of one student's latest report.
func ReportKey(room, student string) string {
	return fmt.Sprintf("%s%s_%s", keyPrefix, room, student)
}

// RoomKey is the key of every report in a room.
func RoomKey(room string) string {
	return fmt.Sprintf("%s%s_all", keyPrefix, room)
}

// Cache stores JSON values with a fixed TTL.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
	Close() error
}

// Options configures the Redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to Redis. An empty address yields a Nop cache so the server runs without Redis.
// An unreachable server is logged, not fatal: go-redis reconnects on demand.
func New(ctx context.Context, opts Options) Cache {
	logger := log.Component("cache")
	if opts.Address == "" {
		logger.Info("REDIS_ADDRESS not set, focus reports are served uncached")
		return Nop{}
	}

	logger.Infof("Connecting to Redis at %s...", opts.Address)
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Errorf("Failed to connect to Redis: %v", err)
	} else {
		logger.Info("Successfully connected to Redis")
	}

	return NewRedis(client, opts.TTL)
}

// Redis is a Cache backed by a go-redis client.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) GetJSON(ctx context.Context, key string, dst any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (r *Redis) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Flush removes every focus report key. Other keys in the database are left alone.
func (r *Redis) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.Delete(ctx, batch...)
}

func (r *Redis) Close() error { return r.client.Close() }

// Nop never stores anything; every read is a miss.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) error { return ErrMiss }
func (Nop) SetJSON(context.Context, string, any) error { return nil }
func (Nop) Delete(context.Context, ...string) error    { return nil }
func (Nop) Flush(context.Context) error                { return nil }
func (Nop) Close() error                               { return nil }
