package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"bulkhead-gateway/middleware/bulkhead/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Gate concentra a regra de admissão do bulkhead, sem saber nada sobre HTTP.
//
// Stats são gravados por uma goroutine própria; a decisão nunca espera o store.
//
// Fluxo por requisição:
//
//  1. resolve a partição e tenta pegar vaga sem esperar
//  2. sem vaga: se a fila global está cheia, rejeita (Overloaded)
//  3. entra na fila e espera até Timeout (TimedOut) ou até o ctx encerrar (Cancelled)
//
// A fila é um contador único para todas as partições; entrar nela é um CAS,
// então o contador nunca passa de MaxWaiting.
type Gate struct {
	cfg        Config
	classifier Classifier
	registry   *Registry
	stats      domain.StatsStore
	statsQueue *statsDispatcher
	logger     *zap.Logger

	waiting atomic.Int64

	// limita logs repetitivos sob carga
	overloadLog rate.Sometimes
	timeoutLog  rate.Sometimes

	statsBuffer  int
	statsTimeout time.Duration
	registryOpts []RegistryOption
}

type GateOption func(*Gate)

// WithStats grava um evento por decisão em s, de forma assíncrona.
func WithStats(s domain.StatsStore) GateOption {
	return func(g *Gate) { g.stats = s }
}

// WithStatsBuffer define quantos eventos podem aguardar gravação. Acima disso são descartados.
func WithStatsBuffer(n int) GateOption {
	return func(g *Gate) { g.statsBuffer = n }
}

// WithStatsTimeout limita cada chamada a StatsStore.Record. Zero não limita.
func WithStatsTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.statsTimeout = d }
}

func WithLogger(l *zap.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithRegistryOptions(opts ...RegistryOption) GateOption {
	return func(g *Gate) { g.registryOpts = append(g.registryOpts, opts...) }
}

// NewGate valida cfg e monta o gate com um pool por partição criado por newPool.
func NewGate(cfg Config, newPool domain.PoolFactory, opts ...GateOption) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if newPool == nil {
		return nil, errors.New("bulkhead: pool factory is required")
	}

	g := &Gate{
		cfg:          cfg.clone(),
		classifier:   Classifier{PerPath: cfg.PerPath},
		logger:       zap.NewNop(),
		overloadLog:  rate.Sometimes{Interval: time.Second},
		timeoutLog:   rate.Sometimes{Interval: time.Second},
		statsBuffer:  defaultStatsBuffer,
		statsTimeout: defaultStatsTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.registry = NewRegistry(g.cfg.LimitFor, newPool, g.registryOpts...)
	if g.stats != nil {
		g.statsQueue = newStatsDispatcher(g.stats, g.statsBuffer, g.statsTimeout, g.logger)
	}
	return g, nil
}

// Admission é o resultado de Gate.Admit.
// Se Outcome == domain.Admitted, Release deve ser chamado ao fim da execução.
type Admission struct {
	Outcome   domain.Outcome
	Partition domain.Key
	// Waited é o tempo na fila (0 se pegou vaga direto ou foi rejeitada).
	Waited time.Duration

	release func()
}

func (a Admission) Admitted() bool { return a.Outcome == domain.Admitted }

// Release devolve a vaga. Pode ser chamado mais de uma vez; só a primeira conta.
func (a Admission) Release() {
	if a.release != nil {
		a.release()
	}
}

// Admit decide se a requisição executa agora, espera ou é rejeitada.
// Rejeição e timeout são resultados normais, nunca erro.
func (g *Gate) Admit(ctx context.Context, method, path string) Admission {
	key := g.classifier.Classify(path)
	pool, unlease := g.registry.Lease(key)

	adm := g.admit(ctx, key, pool)
	if adm.Admitted() {
		release := adm.release
		var once sync.Once
		adm.release = func() {
			once.Do(func() {
				release()
				unlease()
			})
		}
	} else {
		unlease()
	}

	g.observe(ctx, method, path, adm)
	return adm
}

func (g *Gate) admit(ctx context.Context, key domain.Key, pool domain.SlotPool) Admission {
	if release, ok := pool.TryAcquire(); ok {
		return Admission{Outcome: domain.Admitted, Partition: key, release: release}
	}

	if !g.enterWait() {
		return Admission{Outcome: domain.Overloaded, Partition: key}
	}
	defer g.leaveWait()

	start := time.Now()
	release, ok := g.waitForSlot(ctx, pool)
	waited := time.Since(start)

	switch {
	case ok:
		return Admission{Outcome: domain.Admitted, Partition: key, Waited: waited, release: release}
	case ctx.Err() != nil:
		return Admission{Outcome: domain.Cancelled, Partition: key, Waited: waited}
	default:
		return Admission{Outcome: domain.TimedOut, Partition: key, Waited: waited}
	}
}

// enterWait reserva um lugar na fila, ou retorna false se ela está cheia.
func (g *Gate) enterWait() bool {
	limit := int64(g.cfg.MaxWaiting)
	for {
		cur := g.waiting.Load()
		if cur >= limit {
			return false
		}
		if g.waiting.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (g *Gate) leaveWait() { g.waiting.Add(-1) }

// waitForSlot espera no máximo cfg.Timeout. Timeout zero não espera.
func (g *Gate) waitForSlot(ctx context.Context, pool domain.SlotPool) (func(), bool) {
	if g.cfg.Timeout <= 0 {
		return nil, false
	}
	acqCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	return pool.Acquire(acqCtx)
}

func (g *Gate) observe(ctx context.Context, method, path string, adm Admission) {
	fields := func() []zap.Field {
		fs := []zap.Field{
			zap.String("partition", string(adm.Partition)),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int64("waiting", g.waiting.Load()),
		}
		if id := RequestIDFromContext(ctx); id != "" {
			fs = append(fs, zap.String("request_id", id))
		}
		return fs
	}

	switch adm.Outcome {
	case domain.Overloaded:
		g.overloadLog.Do(func() {
			g.logger.Warn("bulkhead overloaded, rejecting request",
				append(fields(), zap.Int("max_waiting", g.cfg.MaxWaiting))...)
		})
	case domain.TimedOut:
		g.timeoutLog.Do(func() {
			g.logger.Warn("bulkhead timeout waiting for slot",
				append(fields(), zap.Duration("waited", adm.Waited))...)
		})
	case domain.Cancelled:
		g.logger.Debug("request cancelled while waiting for slot",
			append(fields(), zap.Duration("waited", adm.Waited))...)
	case domain.Admitted:
		if adm.Waited > 0 && g.logger.Core().Enabled(zap.DebugLevel) {
			g.logger.Debug("request admitted after waiting",
				append(fields(), zap.Duration("waited", adm.Waited))...)
		}
	}

	if g.statsQueue == nil {
		return
	}
	g.statsQueue.emit(domain.StatsEvent{
		Partition: adm.Partition,
		Outcome:   adm.Outcome,
		Method:    method,
		Path:      path,
		Waited:    adm.Waited,
		At:        time.Now(),
	})
}

// Close grava os eventos de stats pendentes e para a goroutine de gravação.
// Eventos de admissões posteriores são ignorados.
func (g *Gate) Close() {
	if g.statsQueue != nil {
		g.statsQueue.close()
	}
}

// DroppedStats conta eventos descartados porque o buffer de stats estava cheio.
func (g *Gate) DroppedStats() uint64 {
	if g.statsQueue == nil {
		return 0
	}
	return g.statsQueue.dropped.Load()
}

// Waiting devolve quantas requisições estão na fila agora.
func (g *Gate) Waiting() int64 { return g.waiting.Load() }

func (g *Gate) Config() Config { return g.cfg.clone() }

func (g *Gate) Registry() *Registry { return g.registry }

// Snapshot implementa domain.SnapshotSource.
func (g *Gate) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Waiting:    g.waiting.Load(),
		MaxWaiting: g.cfg.MaxWaiting,
		Partitions: g.registry.Partitions(),
	}
}
