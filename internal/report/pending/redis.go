package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisStore shares pending reports between stateless instances.
type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redisv9.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, prefix: "report:pending:"}
}

func (s *RedisStore) Put(ctx context.Context, token, body string) error {
	if err := s.client.Set(ctx, s.prefix+token, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("pending: redis set: %w", err)
	}
	return nil
}

// Take uses GETDEL so concurrent redemptions of one token see it only once.
func (s *RedisStore) Take(ctx context.Context, token string) (string, error) {
	body, err := s.client.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("pending: redis getdel: %w", err)
	}
	return body, nil
}
