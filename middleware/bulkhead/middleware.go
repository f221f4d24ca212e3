package bulkhead

import (
	"context"
	"net/http"
	"time"

	"bulkhead-gateway/middleware/bulkhead/application"
	"bulkhead-gateway/middleware/bulkhead/domain"
	"bulkhead-gateway/middleware/bulkhead/infra"

	"go.uber.org/zap"
)

const (
	defaultRetryAfter      = 5 * time.Second
	defaultRequestIDHeader = "X-Request-ID"
)

type Options struct {
	Config application.Config

	// Pool cria o semáforo de cada partição. nil usa infra.NewChanPool.
	Pool domain.PoolFactory

	// ExcludePaths são paths (match exato) que não passam pelo bulkhead.
	ExcludePaths []string
	// Skip, se definido, também pode liberar a requisição do bulkhead.
	Skip func(r *http.Request) bool

	// RetryAfter vai no header/corpo da rejeição por fila cheia. Padrão 5s.
	RetryAfter time.Duration

	// IdleTTL > 0 habilita a limpeza de partições ociosas (ver StartJanitor).
	IdleTTL time.Duration

	Stats  domain.StatsStore
	Logger *zap.Logger

	// RequestIDHeader é lido só para correlacionar logs. Padrão X-Request-ID.
	RequestIDHeader string
}

// DefaultOptions usa application.DefaultConfig (100 vagas, fila 50, timeout 30s).
func DefaultOptions() Options {
	return Options{Config: application.DefaultConfig()}
}

// Bulkhead é o middleware pronto, com acesso ao estado do gate.
type Bulkhead struct {
	gate            *application.Gate
	exclude         map[string]struct{}
	skip            func(r *http.Request) bool
	retryAfter      time.Duration
	requestIDHeader string
	logger          *zap.Logger
}

func New(opts Options) (*Bulkhead, error) {
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = defaultRetryAfter
	}
	if opts.RequestIDHeader == "" {
		opts.RequestIDHeader = defaultRequestIDHeader
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	gate, err := application.NewGate(opts.Config, opts.Pool,
		application.WithStats(opts.Stats),
		application.WithLogger(opts.Logger),
		application.WithRegistryOptions(application.WithIdleTTL(opts.IdleTTL)),
	)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]struct{}, len(opts.ExcludePaths))
	for _, p := range opts.ExcludePaths {
		exclude[p] = struct{}{}
	}

	return &Bulkhead{
		gate:            gate,
		exclude:         exclude,
		skip:            opts.Skip,
		retryAfter:      opts.RetryAfter,
		requestIDHeader: opts.RequestIDHeader,
		logger:          opts.Logger,
	}, nil
}

// Middleware é o atalho New + Handler.
func Middleware(opts Options) (func(next http.Handler) http.Handler, error) {
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	return b.Handler, nil
}

func (b *Bulkhead) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.shouldSkip(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if id := r.Header.Get(b.requestIDHeader); id != "" {
			ctx = application.ContextWithRequestID(ctx, id)
		}

		adm := b.gate.Admit(ctx, r.Method, r.URL.Path)
		switch adm.Outcome {
		case domain.Overloaded:
			writeOverloaded(w, b.retryAfter)
			return
		case domain.TimedOut:
			writeTimeout(w)
			return
		case domain.Cancelled:
			// cliente já foi embora; não há para quem responder
			return
		}
		defer adm.Release()

		next.ServeHTTP(w, r)
	})
}

func (b *Bulkhead) shouldSkip(r *http.Request) bool {
	if _, ok := b.exclude[r.URL.Path]; ok {
		return true
	}
	return b.skip != nil && b.skip(r)
}

func (b *Bulkhead) Gate() *application.Gate { return b.gate }

// Close grava os stats pendentes. Chame depois do Shutdown do servidor.
func (b *Bulkhead) Close() { b.gate.Close() }

// Snapshot implementa domain.SnapshotSource.
func (b *Bulkhead) Snapshot() domain.Snapshot { return b.gate.Snapshot() }

// StartJanitor limpa partições ociosas periodicamente até ctx encerrar.
// Sem IdleTTL não faz nada e devolve false.
func (b *Bulkhead) StartJanitor(ctx context.Context) bool {
	reg := b.gate.Registry()
	ttl := reg.IdleTTL()
	if ttl <= 0 {
		return false
	}
	reg.StartJanitor(ctx)
	b.logger.Info("bulkhead janitor started", zap.Duration("idle_ttl", ttl))
	return true
}

// SnapshotHandler responde o Snapshot atual em JSON (endpoint administrativo).
func (b *Bulkhead) SnapshotHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Snapshot())
	})
}
