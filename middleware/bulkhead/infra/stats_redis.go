package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bulkhead-gateway/middleware/bulkhead/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisão em hashes do Redis.
//
// Layout (prefix padrão "bulkhead:stats"):
//
//	<prefix>:total                 outcome -> n
//	<prefix>:minute:<yyyymmddhhmm> outcome -> n (expira em ttl)
//	<prefix>:partition             "<partition>:<outcome>" -> n
//	<prefix>:wait_ms               partition -> soma do tempo de fila em ms
//	<prefix>:route                 "<METHOD PATH>:<outcome>" -> n (só com trackPaths)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackPaths bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackPaths(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackPaths = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "bulkhead:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := ev.Outcome.String()
	totalKey := s.prefix + ":total"

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	partition := strings.TrimSpace(string(ev.Partition))
	if partition != "" {
		pipe.HIncrBy(ctx, s.prefix+":partition", partition+":"+field, 1)
		if ev.Waited > 0 {
			pipe.HIncrBy(ctx, s.prefix+":wait_ms", partition, ev.Waited.Milliseconds())
		}
	}

	if s.trackPaths {
		routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
		if routeField != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", routeField+":"+field, 1)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
