package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulkhead-gateway/middleware/bulkhead"
	"bulkhead-gateway/middleware/bulkhead/domain"
	"bulkhead-gateway/middleware/bulkhead/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.logLevel, cfg.logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(headerRequestID)),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var redisStats domain.StatsStore
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatal("redis stats ping error", zap.Error(err))
		}

		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackPaths(cfg.statsTrackPaths),
		)
	}

	pool, _ := infra.PoolFactoryByName(cfg.pool)
	bh, err := bulkhead.New(bulkhead.Options{
		Config:       cfg.bulkhead,
		Pool:         pool,
		ExcludePaths: cfg.excludePaths,
		IdleTTL:      cfg.idleTTL,
		Stats:        infra.NewMultiStatsStore(infra.NewPromStatsStore(prometheus.DefaultRegisterer), redisStats),
		Logger:       logger.Named("bulkhead"),
	})
	if err != nil {
		logger.Fatal("bulkhead config error", zap.Error(err))
	}
	prometheus.MustRegister(infra.NewSnapshotCollector(bh))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	bh.StartJanitor(ctx)

	h := bh.Handler(proxy)
	h = requestID(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a escrita precisa cobrir a espera na fila + o upstream
		WriteTimeout: cfg.bulkhead.Timeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}
	servers := []*http.Server{srv}

	if cfg.metricsAddr != "" {
		adminMux := http.NewServeMux()
		adminMux.Handle("/metrics", promhttp.Handler())
		adminMux.Handle("/bulkhead", bh.SnapshotHandler())
		admin := &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           adminMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, admin)

		go func() {
			logger.Info("admin listening", zap.String("addr", cfg.metricsAddr))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server error", zap.Error(err))
			}
		}()
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
		bh.Close()
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", target.String()),
	)
	logger.Info("bulkhead",
		zap.Int("maxConcurrent", cfg.bulkhead.MaxConcurrent),
		zap.Int("maxWaiting", cfg.bulkhead.MaxWaiting),
		zap.Duration("timeout", cfg.bulkhead.Timeout),
		zap.Bool("perPath", cfg.bulkhead.PerPath),
		zap.Any("pathLimits", cfg.bulkhead.PathLimits),
		zap.Strings("excludePaths", cfg.excludePaths),
		zap.String("pool", cfg.pool),
		zap.Duration("idleTTL", cfg.idleTTL),
	)
	logger.Info("stats",
		zap.Bool("redisEnabled", cfg.statsEnabled),
		zap.String("redisAddr", cfg.statsRedisAddr),
		zap.String("bucket", cfg.statsBucket),
		zap.Duration("ttl", cfg.statsTTL),
		zap.Bool("trackPaths", cfg.statsTrackPaths),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	<-shutdownDone
}
