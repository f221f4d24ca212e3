package application

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"bulkhead-gateway/middleware/bulkhead/domain"
)

// Registry cria sob demanda um pool por partição e devolve sempre a mesma instância
// para a mesma chave. A criação é serializada pelo mutex.
//
// Por padrão as partições vivem enquanto o processo viver. Com per-path e muitos
// paths distintos isso cresce sem limite; WithIdleTTL liga a limpeza de partições ociosas.
type Registry struct {
	mu           sync.Mutex
	entries      map[domain.Key]*registryEntry
	limitFor     func(domain.Key) int
	newPool      domain.PoolFactory
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type registryEntry struct {
	pool     domain.SlotPool
	lastSeen time.Time
	// leases conta quem está esperando ou segurando vaga neste pool.
	leases int
}

type RegistryOption func(*Registry)

// WithIdleTTL habilita a remoção de partições sem uso há mais de d.
// Zero (padrão) nunca remove.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) RegistryOption {
	return func(r *Registry) { r.cleanupEvery = d }
}

func NewRegistry(limitFor func(domain.Key) int, newPool domain.PoolFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:      make(map[domain.Key]*registryEntry),
		limitFor:     limitFor,
		newPool:      newPool,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IdleTTL devolve o tempo de ociosidade para remoção; zero desliga a limpeza.
func (r *Registry) IdleTTL() time.Duration { return r.idleTTL }

// get devolve o pool da partição, criando se necessário.
func (r *Registry) get(key domain.Key) domain.SlotPool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(key, time.Now()).pool
}

// Lease devolve o pool e marca a partição como em uso até done ser chamado.
// Partições com lease ativo nunca são removidas pelo Cleanup.
func (r *Registry) Lease(key domain.Key) (pool domain.SlotPool, done func()) {
	r.mu.Lock()
	ent := r.entryLocked(key, time.Now())
	ent.leases++
	r.mu.Unlock()

	var once sync.Once
	return ent.pool, func() {
		once.Do(func() {
			r.mu.Lock()
			ent.leases--
			ent.lastSeen = time.Now()
			r.mu.Unlock()
		})
	}
}

func (r *Registry) entryLocked(key domain.Key, now time.Time) *registryEntry {
	if ent, ok := r.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}
	ent := &registryEntry{pool: r.newPool(r.limitFor(key)), lastSeen: now}
	r.entries[key] = ent
	return ent
}

// Partitions devolve a ocupação de cada partição, ordenada pela chave.
func (r *Registry) Partitions() []domain.PartitionSnapshot {
	r.mu.Lock()
	out := make([]domain.PartitionSnapshot, 0, len(r.entries))
	for k, ent := range r.entries {
		out = append(out, domain.PartitionSnapshot{
			Key:      k,
			InUse:    ent.pool.InUse(),
			Capacity: ent.pool.Capacity(),
		})
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.PartitionSnapshot) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

// Cleanup remove partições ociosas (sem lease e sem acesso há idleTTL).
func (r *Registry) Cleanup() {
	if r.idleTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, ent := range r.entries {
		if ent.leases == 0 && ent.lastSeen.Before(cutoff) {
			delete(r.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa partições ociosas periodicamente.
// Pare cancelando o contexto. Não faz nada se idleTTL ou cleanupEvery forem zero.
func (r *Registry) StartJanitor(ctx DoneContext) {
	if r.idleTTL <= 0 || r.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
