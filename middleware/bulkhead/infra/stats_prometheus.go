package infra

import (
	"context"

	"bulkhead-gateway/middleware/bulkhead/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bulkhead"

// PromStatsStore exporta as decisões como métricas Prometheus.
// O label partition herda a cardinalidade do modo per-path.
type PromStatsStore struct {
	decisions *prometheus.CounterVec
	wait      *prometheus.HistogramVec
}

// NewPromStatsStore registra as métricas em reg (use prometheus.DefaultRegisterer no binário).
func NewPromStatsStore(reg prometheus.Registerer) *PromStatsStore {
	factory := promauto.With(reg)
	return &PromStatsStore{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "admissions_total",
				Help:      "Total number of admission decisions by partition and outcome",
			},
			[]string{"partition", "outcome"},
		),
		wait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "wait_seconds",
				Help:      "Time spent waiting for a slot, for requests that had to queue",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"partition", "outcome"},
		),
	}
}

func (s *PromStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	partition, outcome := string(ev.Partition), ev.Outcome.String()
	s.decisions.WithLabelValues(partition, outcome).Inc()
	if ev.Waited > 0 {
		s.wait.WithLabelValues(partition, outcome).Observe(ev.Waited.Seconds())
	}
	return nil
}

// SnapshotCollector expõe a ocupação atual (fila e vagas por partição) como gauges,
// lendo o Snapshot a cada scrape.
type SnapshotCollector struct {
	src domain.SnapshotSource

	waiting    *prometheus.Desc
	maxWaiting *prometheus.Desc
	inUse      *prometheus.Desc
	capacity   *prometheus.Desc
}

func NewSnapshotCollector(src domain.SnapshotSource) *SnapshotCollector {
	return &SnapshotCollector{
		src: src,
		waiting: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "waiting"),
			"Requests currently waiting for a slot across all partitions", nil, nil),
		maxWaiting: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "max_waiting"),
			"Configured waiting queue capacity", nil, nil),
		inUse: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "partition", "in_use"),
			"Slots currently held per partition", []string{"partition"}, nil),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "partition", "capacity"),
			"Slot capacity per partition", []string{"partition"}, nil),
	}
}

func (c *SnapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.waiting
	ch <- c.maxWaiting
	ch <- c.inUse
	ch <- c.capacity
}

func (c *SnapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(snap.Waiting))
	ch <- prometheus.MustNewConstMetric(c.maxWaiting, prometheus.GaugeValue, float64(snap.MaxWaiting))
	for _, p := range snap.Partitions {
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(p.InUse), string(p.Key))
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(p.Capacity), string(p.Key))
	}
}
