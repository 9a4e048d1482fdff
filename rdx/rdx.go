// Package rdx holds the Redis connection and the menu cache built on it.
package rdx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a client for addr and checks it answers PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return conn, nil
}

// IsMiss reports whether err means the key was absent.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
