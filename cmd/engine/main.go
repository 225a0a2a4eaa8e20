package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ItshMoh/sol-sniper-engine/internal/broadcast"
	"github.com/ItshMoh/sol-sniper-engine/internal/config"
	"github.com/ItshMoh/sol-sniper-engine/internal/gateway"
	"github.com/ItshMoh/sol-sniper-engine/internal/queue"
	"github.com/ItshMoh/sol-sniper-engine/internal/router"
	"github.com/ItshMoh/sol-sniper-engine/internal/store"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
	"github.com/ItshMoh/sol-sniper-engine/internal/venue/meteora"
	"github.com/ItshMoh/sol-sniper-engine/internal/venue/raydium"
	"github.com/ItshMoh/sol-sniper-engine/internal/worker"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting sniper order execution engine")

	// ── Order store ─────────────────────────────────────────────
	st, err := openStore(cfg)
	if err != nil {
		telemetry.Errorf("Order store: %v", err)
		os.Exit(1)
	}
	telemetry.Infof("Order store ready  driver=%s", cfg.StoreDriver)

	// ── Redis / job queue ───────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		telemetry.Errorf("Redis unreachable at %s: %v", cfg.RedisAddr, err)
		os.Exit(1)
	}

	q := queue.New(rdb, "sniper-orders", queue.Options{
		Concurrency: cfg.QueueConcurrency,
		MaxRetries:  cfg.QueueMaxRetries,
		BackoffBase: cfg.QueueBackoffBase,
		RateMax:     cfg.QueueRateMax,
		RateWindow:  cfg.QueueRateWindow,
	})

	// ── Venues + router ─────────────────────────────────────────
	registry, err := config.LoadKnownPools(cfg.PoolRegistryPath)
	if err != nil {
		telemetry.Warnf("Pool registry disabled: %v", err)
	}

	raydiumClient := raydium.NewClient(cfg.RaydiumBaseURL)
	meteoraClient := meteora.NewClient(cfg.MeteoraBaseURL)
	rt := router.New(cfg.InputMint, registry, raydiumClient, meteoraClient)

	// ── Broadcaster + worker ────────────────────────────────────
	hub := broadcast.NewHub()
	proc := worker.New(st, hub, rt, worker.Config{
		InputMint:      cfg.InputMint,
		Cluster:        cfg.SolanaCluster,
		MonitorTimeout: cfg.MonitorTimeout,
		MaxRetries:     cfg.QueueMaxRetries,
	}, raydiumClient, meteoraClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workersDone := make(chan struct{})
	go func() {
		q.Run(ctx, proc.Process)
		close(workersDone)
	}()
	telemetry.Infof("Workers running  concurrency=%d max_retries=%d", cfg.QueueConcurrency, cfg.QueueMaxRetries)

	// ── HTTP gateway ────────────────────────────────────────────
	gw := gateway.NewServer(st, hub, q, redisPinger{rdb})

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      gw.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Errorf("HTTP server: %v", err)
			os.Exit(1)
		}
	}()
	telemetry.Infof("Gateway listening on %q", addr)
	telemetry.Infof("Ready to accept orders")

	// ── Shutdown ────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		telemetry.Warnf("Workers did not drain in time")
	}

	rdb.Close()
	st.Close()

	telemetry.Infof("Shutdown complete")
	telemetry.Plainf("final: submitted=%d confirmed=%d failed=%d retried=%d dead=%d e2e_p50=%s e2e_p99=%s",
		telemetry.Metrics.OrdersSubmitted.Value(),
		telemetry.Metrics.OrdersConfirmed.Value(),
		telemetry.Metrics.OrdersFailed.Value(),
		telemetry.Metrics.JobsRetried.Value(),
		telemetry.Metrics.JobsDeadLettered.Value(),
		telemetry.Metrics.OrderE2ELatency.P50(),
		telemetry.Metrics.OrderE2ELatency.P99())
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required with STORE_DRIVER=postgres")
		}
		return store.OpenPostgres(context.Background(), cfg.PostgresDSN)
	case "sqlite":
		return store.OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
