package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/hoangduy0308/proxypal/internal/auth"
	"github.com/hoangduy0308/proxypal/internal/config"
	"github.com/hoangduy0308/proxypal/internal/cryptotoken"
	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/forwarder"
	"github.com/hoangduy0308/proxypal/internal/procmgr"
	"github.com/hoangduy0308/proxypal/internal/ratelimit"
	"github.com/hoangduy0308/proxypal/internal/server"
	"github.com/hoangduy0308/proxypal/internal/storage/sqlite"
	"github.com/hoangduy0308/proxypal/internal/telemetry"
	"github.com/hoangduy0308/proxypal/internal/worker"
)

const serverConfigSettingKey = "server_config"

func run() error {
	env, err := config.Load()
	if err != nil {
		return err
	}

	slog.Info("starting proxypal", "version", version, "port", env.Port)

	cipher, err := cryptotoken.NewFromEnv(env.EncryptionKey)
	if err != nil {
		return err
	}

	store, err := sqlite.New(env.DatabasePath, cipher)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("database opened", "path", env.DatabasePath)

	ctx := context.Background()
	if err := config.Bootstrap(ctx, env, store); err != nil {
		return err
	}

	serverCfg, err := loadServerConfig(ctx, store)
	if err != nil {
		return err
	}
	slog.Info("server config loaded",
		"proxy_port", serverCfg.ProxyPort,
		"admin_port", serverCfg.AdminPort,
		"log_level", serverCfg.LogLevel,
	)

	apiKeyAuth, err := auth.NewAPIKeyAuth(store)
	if err != nil {
		return err
	}
	sessionAuth := auth.NewSessionAuth(store)

	rateLimiter := ratelimit.New(int64(serverCfg.RateLimits.RequestsPerMinute))

	fwd := forwarder.NewHTTPClientFromEnv()
	procManager := procmgr.NewLocalManagerFromEnv()

	if serverCfg.AutoStartProxy {
		providers, err := store.ListProviders(ctx)
		if err != nil {
			return err
		}
		accounts, err := listAllProviderAccounts(ctx, store, providers)
		if err != nil {
			return err
		}
		if err := forwarder.Generate(serverCfg, providers, accounts, env.ProxyConfigPath); err != nil {
			return err
		}
		if pid, err := procManager.Start(ctx, env.ProxyConfigPath, serverCfg.ProxyPort); err != nil {
			slog.Warn("auto-start proxy failed", "error", err)
		} else {
			slog.Info("proxy auto-started", "pid", pid)
		}
	}

	sweepRunner := worker.NewRunner(worker.NewSweepWorker(store))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(promRegistry)
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, 0.1)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("proxypal/server")
			slog.Info("opentelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	handler := server.New(server.Deps{
		Store:           store,
		APIKeyAuth:      apiKeyAuth,
		SessionAuth:     sessionAuth,
		RateLimiter:     rateLimiter,
		Forwarder:       fwd,
		ProcManager:     procManager,
		Cipher:          cipher,
		ProxyConfigPath: env.ProxyConfigPath,
		Version:         version,
		Metrics:         metrics,
		MetricsHandler:  metricsHandler,
		Tracer:          tracer,
	})

	addr := ":" + strconv.Itoa(env.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- sweepRunner.Run(workerCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("proxypal ready", "addr", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		workerCancel()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		workerCancel()
		return err
	}

	workerCancel()
	if err := <-workerDone; err != nil {
		slog.Error("worker shutdown error", "error", err)
	}

	if err := procManager.Stop(shutdownCtx); err != nil {
		slog.Error("proxy stop error", "error", err)
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("proxypal stopped")
	return nil
}

func loadServerConfig(ctx context.Context, store *sqlite.Store) (domain.ServerConfig, error) {
	raw, exists, err := store.GetSetting(ctx, serverConfigSettingKey)
	if err != nil {
		return domain.ServerConfig{}, err
	}
	if !exists {
		return domain.DefaultServerConfig(), nil
	}
	var cfg domain.ServerConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.DefaultServerConfig(), nil
	}
	return cfg, nil
}

func listAllProviderAccounts(ctx context.Context, store *sqlite.Store, providers []*domain.Provider) ([]*domain.ProviderAccount, error) {
	var all []*domain.ProviderAccount
	for _, p := range providers {
		accounts, err := store.ListProviderAccounts(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, accounts...)
	}
	return all, nil
}
