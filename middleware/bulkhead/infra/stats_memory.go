package infra

import (
	"context"
	"sync"

	"bulkhead-gateway/middleware/bulkhead/domain"
)

type Counters struct {
	Admitted   int64
	Overloaded int64
	TimedOut   int64
	Cancelled  int64
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.Admitted:
		c.Admitted++
	case domain.Overloaded:
		c.Overloaded++
	case domain.TimedOut:
		c.TimedOut++
	case domain.Cancelled:
		c.Cancelled++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu          sync.Mutex
	total       Counters
	byPartition map[domain.Key]Counters
	byRoute     map[string]Counters

	trackPaths bool
}

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackPaths liga a contagem por "METHOD PATH".
func WithTrackPaths(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackPaths = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byPartition: make(map[domain.Key]Counters),
		byRoute:     make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)

	c := s.byPartition[ev.Partition]
	c.add(ev.Outcome)
	s.byPartition[ev.Partition] = c

	if s.trackPaths {
		route := ev.Method + " " + ev.Path
		r := s.byRoute[route]
		r.add(ev.Outcome)
		s.byRoute[route] = r
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByPartition() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byPartition))
	for k, v := range s.byPartition {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}
