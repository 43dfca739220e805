package handlecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps one hash per user (<prefix><userID>: taskID → handle) with a TTL refreshed on
// every write, so several clients of the same user share resolved handles.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis returns a Redis-backed cache. A zero ttl keeps hashes forever.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "taskkeeper:handles:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(userID string) string { return r.prefix + userID }

func (r *Redis) Get(ctx context.Context, userID, taskID string) (string, bool, error) {
	h, err := r.client.HGet(ctx, r.key(userID), taskID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("handle cache get: %w", err)
	}
	return h, true, nil
}

func (r *Redis) Put(ctx context.Context, userID, taskID, handle string) error {
	key := r.key(userID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, taskID, handle)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("handle cache put: %w", err)
	}
	return nil
}

func (r *Redis) Replace(ctx context.Context, userID string, handles map[string]string) error {
	key := r.key(userID)
	pairs := make([]any, 0, 2*len(handles))
	for id, h := range handles {
		pairs = append(pairs, id, h)
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(pairs) == 0 {
			return nil
		}
		p.HSet(ctx, key, pairs...)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("handle cache replace: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, userID, taskID string) error {
	if err := r.client.HDel(ctx, r.key(userID), taskID).Err(); err != nil {
		return fmt.Errorf("handle cache delete: %w", err)
	}
	return nil
}
