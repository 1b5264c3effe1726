package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/smartrail/core/events"
)

// Redis defaults.
const (
	DefaultRedisChannel = "smartrail:predictions"
	DefaultRedisTTL     = 6 * time.Hour
	redisKeyPrefix      = "smartrail:prediction"
)

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	URL     string `json:"url"`
	Channel string `json:"channel"`
	TTL     string `json:"ttl"`
}

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisPublisher publishes predictions on a channel and caches the latest
// one per train and station.
type RedisPublisher struct {
	cli     redisClient
	channel string
	ttl     time.Duration
}

// NewRedisPublisher parses cfg.URL, connects and pings the server.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ttl := DefaultRedisTTL
	if cfg.TTL != "" {
		ttl, err = time.ParseDuration(cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("parse redis ttl: %w", err)
		}
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisPublisher(cli, cfg.Channel, ttl), nil
}

func newRedisPublisher(cli redisClient, channel string, ttl time.Duration) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{cli: cli, channel: channel, ttl: ttl}
}

// Name implements Publisher.
func (r *RedisPublisher) Name() string { return "redis" }

// Key returns the cache key of the latest prediction for a train at a station.
func Key(trainID, stationID string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, trainID, stationID)
}

// Publish implements Publisher.
func (r *RedisPublisher) Publish(ctx context.Context, ev events.PredictionEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	if err := r.cli.Set(ctx, Key(ev.TrainID, ev.StationID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := r.cli.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close closes the connection.
func (r *RedisPublisher) Close() error {
	return r.cli.Close()
}
