package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes broadcast slugs on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher backed by Redis.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends slug to the channel. A zero subscriber count is not an error;
// workers that were offline pick the messages up on their next poll.
func (p *RedisPublisher) Publish(ctx context.Context, slug string) error {
	if err := p.client.Publish(ctx, p.channel, slug).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", slug, p.channel, err)
	}
	return nil
}

// DialRedis connects to url, which may be a redis:// URL or a bare
// host:port, and pings it. It returns nil and no error when url is empty.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}
	return client, nil
}
