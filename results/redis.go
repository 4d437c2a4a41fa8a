package results

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisWriteTimeout = 5 * time.Second

// Connect opens a client for redisURL and verifies it with a PING.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RedisWriter pushes result lines onto the head of a Redis list, newest first.
type RedisWriter struct {
	client *redis.Client
	key    string
	format Format
	now    func() time.Time
}

func NewRedisWriter(client *redis.Client, key string, format Format) *RedisWriter {
	return &RedisWriter{client: client, key: key, format: format, now: time.Now}
}

func (w *RedisWriter) Write(level, seconds int) <-chan error {
	line := w.format.Line(level, seconds, w.now())
	errc := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisWriteTimeout)
		defer cancel()
		if err := w.client.LPush(ctx, w.key, line).Err(); err != nil {
			errc <- fmt.Errorf("failed to push result to %s: %w", w.key, err)
		} else {
			errc <- nil
		}
		close(errc)
	}()
	return errc
}
