package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/splitterhq/balances/internal/amqp"
	"github.com/splitterhq/balances/internal/cache"
	"github.com/splitterhq/balances/internal/config"
	"github.com/splitterhq/balances/internal/currency"
	httpserver "github.com/splitterhq/balances/internal/http"
	"github.com/splitterhq/balances/internal/metrics"
	"github.com/splitterhq/balances/internal/service"
	"github.com/splitterhq/balances/internal/storage/sqlite"
	"github.com/splitterhq/balances/pkg/logging"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuration failed", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)
	slog.Info("Starting balance service")

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	summaryCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		slog.Error("Failed to initialize summary cache", "error", err)
		os.Exit(1)
	}
	defer summaryCache.Close()
	if summaryCache == nil {
		slog.Info("Summary cache disabled, no REDIS_URL provided")
	}

	var converter currency.Converter
	if cfg.CurrencyServiceURL != "" {
		converter = currency.NewClient(cfg.CurrencyServiceURL, cfg.CurrencyTimeout)
	} else {
		slog.Info("Currency conversion disabled, no CURRENCY_SERVICE_URL provided")
	}

	m := metrics.New()
	ledger := service.NewLedgerService(store, summaryCache, m)
	balances := service.NewBalanceService(store, converter, summaryCache, m, cfg.CurrencyTimeout)
	dispatcher := service.NewDispatcher(cfg.DispatcherBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			slog.Error("Dispatcher stopped", "error", err)
			cancel()
		}
	}()

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		handler := amqp.NewEventHandler(ledger, dispatcher)
		go func() {
			if err := amqpClient.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Event consumption failed", "error", err)
				cancel()
			}
		}()
	} else {
		slog.Info("Event ingestion disabled, no AMQP_URL provided")
	}

	if cfg.RetentionDays > 0 {
		go runPruner(ctx, ledger, cfg.RetentionDays, cfg.PruneInterval)
	}

	srv := httpserver.NewServer(cfg.HTTPAddr, balances)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", "error", err)
	}
	cancel()
	slog.Info("Shutdown complete")
}

// runPruner periodically drops ledger entries older than the retention
// horizon. Balances are unaffected because every stored entry is already
// folded into them.
func runPruner(ctx context.Context, ledger *service.LedgerService, retentionDays int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			horizon := time.Now().AddDate(0, 0, -retentionDays)
			if err := ledger.PruneAll(ctx, horizon); err != nil {
				slog.Error("Retention pruning failed", "error", err)
			}
		}
	}
}
