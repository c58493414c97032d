// Package cache stores enrichment results in Redis. Every operation fails soft:
// a Redis outage degrades to a cache miss and never fails the caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailpilot/pkg/metrics"
)

// Operation tags used in cache keys.
const (
	OpFullAnalysis = "full_analysis"
	OpSummary      = "summary"
)

// Store is the cache contract used by the pipeline.
type Store interface {
	// Get decodes the value at key into dst. It reports false on miss or error.
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	// FlushAll removes every key owned by this store.
	FlushAll(ctx context.Context) bool
}

// Stats describes the keys owned by the store.
type Stats struct {
	Available bool   `json:"available"`
	Prefix    string `json:"prefix"`
	Keys      int64  `json:"keys"`
}

// Key builds the cache key for an email operation.
func Key(messageID, op string) string {
	return "email:" + messageID + ":" + op
}

// RedisStore is a Store backed by go-redis. Keys are namespaced by prefix so
// FlushAll never touches data owned by other applications on the same server.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	logger *zap.Logger
}

func NewRedisStore(rdb redis.Cmdable, prefix string, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string, dst any) bool {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncrementCacheLookup(opOf(key), "miss")
		return false
	}
	if err != nil {
		metrics.IncrementCacheLookup(opOf(key), "error")
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.IncrementCacheLookup(opOf(key), "error")
		s.logger.Warn("cache entry undecodable, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.IncrementCacheLookup(opOf(key), "hit")
	return true
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := s.rdb.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisStore) FlushAll(ctx context.Context) bool {
	removed := 0
	err := s.scan(ctx, func(keys []string) error {
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		removed += len(keys)
		return nil
	})
	if err != nil {
		s.logger.Warn("cache flush failed", zap.Int("removed", removed), zap.Error(err))
		return false
	}
	s.logger.Info("cache flushed", zap.String("prefix", s.prefix), zap.Int("removed", removed))
	return true
}

// Stats counts keys under the prefix.
func (s *RedisStore) Stats(ctx context.Context) Stats {
	st := Stats{Prefix: s.prefix}
	err := s.scan(ctx, func(keys []string) error {
		st.Keys += int64(len(keys))
		return nil
	})
	if err != nil {
		s.logger.Warn("cache stats failed", zap.Error(err))
		return st
	}
	st.Available = true
	return st
}

func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func opOf(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[i+1:]
		}
	}
	return "other"
}
