package limiter

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis counts attempts in fixed windows shared by every server instance.
type Redis struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedis(addr string, password string, db int, max int, window time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{client: client, prefix: "pawnshop:login:", max: int64(max), window: window}
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) Close() error {
	return l.client.Close()
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return count.Val() <= l.max, nil
}
