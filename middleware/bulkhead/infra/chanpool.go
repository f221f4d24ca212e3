package infra

import (
	"context"
	"sync"

	"bulkhead-gateway/middleware/bulkhead/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool simples baseado em channel com capacidade `max`.
//
// Quando uma vaga libera e há goroutines bloqueadas no Acquire, o runtime entrega
// a vaga a um dos bloqueados antes de qualquer TryAcquire novo (ordem aproximadamente FIFO).
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	// ctx já encerrado não compete por vaga (select escolheria aleatoriamente)
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.sem <- struct{}{}:
		return p.releaser(), true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *chanPool) TryAcquire() (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return p.releaser(), true
	default:
		return nil, false
	}
}

func (p *chanPool) InUse() int    { return len(p.sem) }
func (p *chanPool) Capacity() int { return cap(p.sem) }

func (p *chanPool) releaser() func() {
	var once sync.Once
	return func() { once.Do(func() { <-p.sem }) }
}
