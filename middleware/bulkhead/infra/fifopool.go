package infra

import (
	"context"
	"sync"
	"sync/atomic"

	"bulkhead-gateway/middleware/bulkhead/domain"

	"golang.org/x/sync/semaphore"
)

// fifoPool usa semaphore.Weighted, que atende os bloqueados em ordem de chegada
// e recusa TryAcquire enquanto houver alguém na fila.
type fifoPool struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
}

// NewFIFOPool cria um pool estritamente FIFO com capacidade `max`.
func NewFIFOPool(max int) domain.SlotPool {
	return &fifoPool{sem: semaphore.NewWeighted(int64(max)), capacity: max}
}

func (p *fifoPool) Acquire(ctx context.Context) (func(), bool) {
	// Weighted.Acquire pode ter sucesso mesmo com ctx encerrado
	if ctx.Err() != nil {
		return nil, false
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	p.inUse.Add(1)
	return p.releaser(), true
}

func (p *fifoPool) TryAcquire() (func(), bool) {
	if !p.sem.TryAcquire(1) {
		return nil, false
	}
	p.inUse.Add(1)
	return p.releaser(), true
}

func (p *fifoPool) InUse() int    { return int(p.inUse.Load()) }
func (p *fifoPool) Capacity() int { return p.capacity }

func (p *fifoPool) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			p.inUse.Add(-1)
			p.sem.Release(1)
		})
	}
}

// PoolFactoryByName devolve a fábrica de pool pelo nome ("channel" ou "fifo").
// ok=false para nomes desconhecidos.
func PoolFactoryByName(name string) (domain.PoolFactory, bool) {
	switch name {
	case "", "channel", "chan":
		return NewChanPool, true
	case "fifo":
		return NewFIFOPool, true
	default:
		return nil, false
	}
}
