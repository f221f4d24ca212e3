package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulkhead-gateway/middleware/bulkhead"
	"bulkhead-gateway/middleware/bulkhead/application"
	"bulkhead-gateway/middleware/bulkhead/infra"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// Exemplo: injetando o bulkhead diretamente no seu webserver (sem proxy).
	// /relatorios é lento e ganha só 2 vagas; o resto divide 50 por path.
	stats := infra.NewMemoryStatsStore(infra.WithTrackPaths(true))
	bh, err := bulkhead.New(bulkhead.Options{
		Config: application.Config{
			MaxConcurrent: 50,
			MaxWaiting:    20,
			Timeout:       3 * time.Second,
			PerPath:       true,
			PathLimits:    map[string]int{"/relatorios": 2},
		},
		ExcludePaths: []string{"/healthz", "/bulkhead"},
		IdleTTL:      10 * time.Minute,
		Stats:        stats,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("bulkhead config error", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	bh.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/relatorios", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
			_, _ = w.Write([]byte("relatorio pronto\n"))
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/bulkhead", bh.SnapshotHandler())

	h := bh.Handler(mux)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		bh.Close()
		logger.Info("admission totals", zap.Any("totals", stats.Total()))
	}()

	logger.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
