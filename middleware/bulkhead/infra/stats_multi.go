package infra

import (
	"context"
	"errors"

	"bulkhead-gateway/middleware/bulkhead/domain"
)

type multiStatsStore []domain.StatsStore

// NewMultiStatsStore repassa cada evento para todos os stores não-nil.
// Retorna nil se nenhum store foi informado.
func NewMultiStatsStore(stores ...domain.StatsStore) domain.StatsStore {
	var out multiStatsStore
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (m multiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
