package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKey = "sakura:audit"
	defaultKeep     = 500
)

// RedisSink keeps the most recent entries in a capped list, newest first.
type RedisSink struct {
	rdb  *redis.Client
	key  string
	keep int64
}

func NewRedisSink(rdb *redis.Client, keep int) *RedisSink {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &RedisSink{rdb: rdb, key: defaultRedisKey, keep: int64(keep)}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is empty")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisSink) Record(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.key, raw)
	pipe.LTrim(ctx, s.key, 0, s.keep-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n entries, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := s.rdb.LRange(ctx, s.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		var e Entry
		if err := json.Unmarshal([]byte(it), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
