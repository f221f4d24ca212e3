package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão do bulkhead.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas
// e podem ser usadas para web, gRPC, etc.
//
// Observação: cuidado com cardinalidade (ex.: salvar Partition/Path com per-path
// ligado pode explodir o número de séries/chaves em Redis/Prometheus).
type StatsEvent struct {
	Partition Key
	Outcome   Outcome

	Method string
	Path   string

	// Waited é quanto tempo a requisição ficou na fila (0 se pegou vaga direto).
	Waited time.Duration

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do bulkhead.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O gate trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
