package infra

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bulkhead-gateway/middleware/bulkhead/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsByOutcome(t *testing.T) {
	s := NewMemoryStatsStore()
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Partition: "/a", Outcome: domain.Admitted, Method: "GET", Path: "/a"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Partition: "/a", Outcome: domain.TimedOut, Method: "GET", Path: "/a"}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Partition: "/b", Outcome: domain.Cancelled}))

	assert.Equal(t, Counters{Admitted: 1, TimedOut: 1, Cancelled: 1}, s.Total())
	assert.Equal(t, Counters{Admitted: 1, TimedOut: 1}, s.ByPartition()["/a"])
	// sem trackPaths não conta rota
	assert.Empty(t, s.ByRoute())
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb,
		WithStatsPrefix("test:stats:"),
		WithStatsTTL(time.Hour),
		WithStatsBucket("Minute"),
		WithStatsTrackPaths(true),
	)
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		Partition: "global", Outcome: domain.Admitted, Method: "GET", Path: "/x",
		Waited: 150 * time.Millisecond, At: at,
	}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		Partition: "global", Outcome: domain.Overloaded, Method: "GET", Path: "/x", At: at,
	}))

	assert.Equal(t, "1", mr.HGet("test:stats:total", "admitted"))
	assert.Equal(t, "1", mr.HGet("test:stats:total", "overloaded"))
	assert.Equal(t, "1", mr.HGet("test:stats:minute:202405011230", "overloaded"))
	assert.Equal(t, time.Hour, mr.TTL("test:stats:minute:202405011230"))
	assert.Equal(t, "1", mr.HGet("test:stats:partition", "global:admitted"))
	assert.Equal(t, "150", mr.HGet("test:stats:wait_ms", "global"))
	assert.Equal(t, "1", mr.HGet("test:stats:route", "GET /x:overloaded"))
}

func TestRedisStatsStore_NoBucketNoPaths(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb, WithStatsBucket("none"))
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Partition: "global", Outcome: domain.TimedOut}))

	for _, k := range mr.Keys() {
		assert.False(t, strings.Contains(k, ":minute:"), "unexpected bucket key %s", k)
		assert.False(t, strings.HasSuffix(k, ":route"), "unexpected route key %s", k)
	}
	assert.Equal(t, "1", mr.HGet("bulkhead:stats:total", "timed_out"))
}

func TestRedisStatsStore_ReturnsErrorWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = rdb.Close() }()
	mr.Close()

	s := NewRedisStatsStore(rdb)
	assert.Error(t, s.Record(context.Background(), domain.StatsEvent{Partition: "global"}))
}

func TestPromStatsStore_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromStatsStore(reg)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Partition: "global", Outcome: domain.Admitted, Waited: 10 * time.Millisecond}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Partition: "global", Outcome: domain.Admitted}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Partition: "global", Outcome: domain.Overloaded}))

	assert.Equal(t, 2.0, testutil.ToFloat64(s.decisions.WithLabelValues("global", "admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.decisions.WithLabelValues("global", "overloaded")))
	// só quem esperou entra no histograma
	assert.Equal(t, 1, testutil.CollectAndCount(s.wait))
}

type fixedSnapshot domain.Snapshot

func (f fixedSnapshot) Snapshot() domain.Snapshot { return domain.Snapshot(f) }

func TestSnapshotCollector(t *testing.T) {
	c := NewSnapshotCollector(fixedSnapshot{
		Waiting:    3,
		MaxWaiting: 50,
		Partitions: []domain.PartitionSnapshot{
			{Key: "/a", InUse: 1, Capacity: 2},
			{Key: "/b", InUse: 0, Capacity: 4},
		},
	})

	expected := `
# HELP bulkhead_partition_capacity Slot capacity per partition
# TYPE bulkhead_partition_capacity gauge
bulkhead_partition_capacity{partition="/a"} 2
bulkhead_partition_capacity{partition="/b"} 4
# HELP bulkhead_waiting Requests currently waiting for a slot across all partitions
# TYPE bulkhead_waiting gauge
bulkhead_waiting 3
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"bulkhead_partition_capacity", "bulkhead_waiting"))
	assert.Equal(t, 6, testutil.CollectAndCount(c))
}

type errStats struct{ err error }

func (e errStats) Record(context.Context, domain.StatsEvent) error { return e.err }

func TestMultiStatsStore(t *testing.T) {
	assert.Nil(t, NewMultiStatsStore(nil, nil))

	mem := NewMemoryStatsStore()
	assert.Same(t, mem, NewMultiStatsStore(nil, mem))

	boom := errors.New("boom")
	multi := NewMultiStatsStore(mem, errStats{err: boom})
	err := multi.Record(context.Background(), domain.StatsEvent{Partition: "global", Outcome: domain.Admitted})
	assert.ErrorIs(t, err, boom)
	// o erro de um store não impede os outros
	assert.EqualValues(t, 1, mem.Total().Admitted)
}
