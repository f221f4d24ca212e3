package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: requisições executando em paralelo).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release; chamadas extras ao release são ignoradas.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	// TryAcquire não bloqueia: ou pega a vaga agora ou retorna ok=false.
	TryAcquire() (release func(), ok bool)
	InUse() int
	Capacity() int
}

// PoolFactory cria um SlotPool com a capacidade informada.
type PoolFactory func(capacity int) SlotPool
