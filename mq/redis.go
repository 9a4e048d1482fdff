package mq

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel events are published to.
const Channel = "foodcart-events"

// RedisSink publishes to a Redis channel. It does not own the connection.
type RedisSink struct {
	Conn    redis.UniversalClient
	Channel string
}

func NewRedisSink(conn redis.UniversalClient) *RedisSink {
	return &RedisSink{Conn: conn, Channel: Channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, _ string, data []byte) error {
	return s.Conn.Publish(ctx, s.Channel, data).Err()
}

func (s *RedisSink) Close() error { return nil }
