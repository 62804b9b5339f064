package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/resilience/config"
	"github.com/angeloszaimis/resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/resilience/internal/clock"
	"github.com/angeloszaimis/resilience/internal/greeter"
	"github.com/angeloszaimis/resilience/internal/handler"
	"github.com/angeloszaimis/resilience/internal/httpserver"
	"github.com/angeloszaimis/resilience/internal/metrics"
	"github.com/angeloszaimis/resilience/internal/protector"
	"github.com/angeloszaimis/resilience/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	registry, err := buildRegistry(cfg, log, collector)
	if err != nil {
		log.Error("Failed to build operation registry", slog.Any("err", err))
		os.Exit(1)
	}

	prot := protector.New(registry, log, collector)
	service := greeter.New(log, clock.NewSystem(), nil)
	greetHandler := handler.NewGreetHandler(log, prot, service)

	mux := setupRouter(greetHandler, collector, registry)

	srv, err := httpserver.New(cfg.Server.Address, mux, httpserver.DefaultTimeouts())
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Server listening", slog.String("address", cfg.Server.Address))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// buildRegistry translates the configuration into registry defaults plus
// per-operation overrides.
func buildRegistry(cfg *config.Config, log *slog.Logger, collector *metrics.Collector) (*protector.Registry, error) {
	defaults, err := settingsFrom(cfg.Breaker, cfg.TimeLimiter)
	if err != nil {
		return nil, err
	}

	registry := protector.NewRegistry(defaults, clock.NewSystem(), log, collector)

	for name, op := range cfg.Operations {
		settings, err := settingsFrom(op.Breaker, op.TimeLimiter)
		if err != nil {
			return nil, fmt.Errorf("operation %q: %w", name, err)
		}
		registry.Register(name, settings)
	}

	return registry, nil
}

// settingsFrom parses the duration strings of one configuration block.
// Empty strings stay zero so the registry treats them as unset.
func settingsFrom(bc config.BreakerConfig, tc config.TimeLimiterConfig) (protector.Settings, error) {
	settings := protector.Settings{
		Breaker: circuitbreaker.Config{
			FailureRateThreshold:   bc.FailureRateThreshold,
			MinimumCalls:           bc.MinimumCalls,
			WindowSize:             bc.WindowSize,
			HalfOpenPermittedCalls: bc.HalfOpenPermittedCalls,
			SlowCallRateThreshold:  bc.SlowCallRateThreshold,
		},
	}

	if bc.OpenStateWait != "" {
		wait, err := time.ParseDuration(bc.OpenStateWait)
		if err != nil {
			return protector.Settings{}, err
		}
		settings.Breaker.OpenStateWait = wait
	}

	if bc.SlowCallDurationThreshold != "" {
		threshold, err := time.ParseDuration(bc.SlowCallDurationThreshold)
		if err != nil {
			return protector.Settings{}, err
		}
		settings.Breaker.SlowCallDurationThreshold = threshold
	}

	if tc.Timeout != "" {
		timeout, err := time.ParseDuration(tc.Timeout)
		if err != nil {
			return protector.Settings{}, err
		}
		settings.Timeout = timeout
	}

	return settings, nil
}
