package stores

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/o3go/o3go/pkg/command"
)

// DefaultRedisPrefix prefixes transcript keys.
const DefaultRedisPrefix = "o3:transcript:"

// RedisSink appends transcript lines to a Redis list, one list per
// session. It implements dispatch.Sink.
type RedisSink struct {
	client    *backend.Client
	prefix    string
	sessionID string
	ttl       time.Duration
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisSink) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires the transcript after ttl of inactivity.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisSink) {
		s.ttl = ttl
	}
}

// NewRedisSink creates a sink for the given session.
func NewRedisSink(client *backend.Client, sessionID string, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		client:    client,
		prefix:    DefaultRedisPrefix,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisClient connects to addr.
func NewRedisClient(addr, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Key returns the list key holding the transcript.
func (s *RedisSink) Key() string {
	return s.prefix + s.sessionID
}

// Append implements dispatch.Sink.
func (s *RedisSink) Append(ctx context.Context, inv command.Invocation, line string) error {
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.Key(), line)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.Key(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append %s: %w", s.Key(), err)
	}
	return nil
}

// RedisLines reads back a transcript written by a RedisSink.
func RedisLines(ctx context.Context, client *backend.Client, key string) ([]string, error) {
	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis exists %s: %w", key, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("transcript %s: %w", key, ErrNotFound)
	}
	lines, err := client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read %s: %w", key, err)
	}
	return lines, nil
}
