// Package main implements the entry point for the embargo service: a
// stream processor that defers publication of embargoed records until
// their privacy deadline elapses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/config"
	"github.com/c360/embargo/metric"
	"github.com/c360/embargo/natsclient"
	"github.com/c360/embargo/service"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "embargo"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithClientName(appName),
		natsclient.WithCredentials(cfg.NATS.CredsFile),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer func() { _ = natsClient.Close(ctx) }()

	metricsRegistry := metric.NewRegistry()
	metricsServer := startMetricsServer(cfg.MetricsAddr, metricsRegistry, logger)

	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	svc, err := service.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	logger.Info("Embargo service started",
		"nats_url", cfg.NATS.URL,
		"input_subject", cfg.Subjects.Input,
		"output_subject", cfg.Subjects.Output,
		"scan_interval", cfg.ScanInterval())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("Shutdown signal received", "signal", sig.String())

	if err := svc.Stop(cliCfg.ShutdownTimeout); err != nil {
		logger.Error("Pipeline stop reported errors", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("Embargo service stopped")
	return nil
}

// startMetricsServer exposes prometheus metrics; returns nil when disabled
func startMetricsServer(addr string, registry *metric.Registry, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		registry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	logger.Info("Metrics server started", "addr", addr)
	return server
}
