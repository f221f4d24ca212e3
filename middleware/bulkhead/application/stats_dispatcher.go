package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bulkhead-gateway/middleware/bulkhead/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultStatsBuffer  = 1024
	defaultStatsTimeout = 2 * time.Second
)

// statsDispatcher grava eventos fora do caminho da admissão.
// Com o buffer cheio o evento é descartado; a admissão nunca espera o store.
type statsDispatcher struct {
	store   domain.StatsStore
	timeout time.Duration
	logger  *zap.Logger

	ch        chan domain.StatsEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	errLog  rate.Sometimes
	dropLog rate.Sometimes
}

func newStatsDispatcher(store domain.StatsStore, buffer int, timeout time.Duration, logger *zap.Logger) *statsDispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	d := &statsDispatcher{
		store:   store,
		timeout: timeout,
		logger:  logger,
		ch:      make(chan domain.StatsEvent, buffer),
		done:    make(chan struct{}),
		errLog:  rate.Sometimes{Interval: 10 * time.Second},
		dropLog: rate.Sometimes{Interval: 10 * time.Second},
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *statsDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.ch:
			d.record(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.ch:
					d.record(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *statsDispatcher) record(ev domain.StatsEvent) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.store.Record(ctx, ev); err != nil {
		d.errLog.Do(func() {
			d.logger.Warn("bulkhead stats record failed", zap.Error(err))
		})
	}
}

// emit nunca bloqueia.
func (d *statsDispatcher) emit(ev domain.StatsEvent) {
	if d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	case <-d.done:
	default:
		n := d.dropped.Add(1)
		d.dropLog.Do(func() {
			d.logger.Warn("bulkhead stats buffer full, dropping event", zap.Uint64("dropped_total", n))
		})
	}
}

// close drena o que já está no buffer e para a goroutine.
func (d *statsDispatcher) close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
