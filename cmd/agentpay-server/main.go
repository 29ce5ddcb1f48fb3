package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"agentpay/internal/config"
	"agentpay/internal/engine"
	"agentpay/internal/executor"
	"agentpay/internal/httpapi"
	"agentpay/internal/store"
	"agentpay/internal/util"
)

func main() {
	cfgPath := "config/agentpay.yaml"
	if p := os.Getenv("AGENTPAY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Storage. The sqlite backend persists the condition registry too; the
	// json backend keeps the registry in memory only.
	var (
		invoices store.InvoiceStore
		registry store.ConditionRegistry
	)
	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening sqlite store: %v", err)
		}
		invoices = db
		registry = db
	case "json":
		invoices = store.NewFileStore(cfg.Storage.InvoicePath, logger)
		registry = store.NewMemoryRegistry()
	default:
		log.Fatalf("unknown storage backend %q", cfg.Storage.Backend)
	}
	defer invoices.Close()

	// Executor backend.
	var exec executor.Client
	if cfg.Executor.Stub {
		balance, err := decimal.NewFromString(cfg.Executor.StubBalance)
		if err != nil {
			log.Fatalf("parsing stub_balance %q: %v", cfg.Executor.StubBalance, err)
		}
		exec = executor.NewStubClient(balance)
		logger.Warn("using in-process executor stub", "balance", balance)
	} else {
		exec = executor.NewHTTPClient(
			cfg.Executor.BaseURL,
			time.Duration(cfg.Executor.TimeoutSeconds)*time.Second,
			cfg.Executor.RateLimitPerMin,
			logger,
		)
	}

	buffer, err := decimal.NewFromString(cfg.Solvency.ReserveBuffer)
	if err != nil {
		log.Fatalf("parsing reserve_buffer %q: %v", cfg.Solvency.ReserveBuffer, err)
	}
	guard := engine.NewSolvencyGuard(exec, buffer, logger)
	orch := engine.NewOrchestrator(invoices, registry, guard, exec, logger)

	// Voice transcription collaborators are optional; without them the voice
	// endpoint generates invoice IDs.
	api := httpapi.NewServer(orch, nil, nil, cfg.Voice.DefaultRecipient, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("agentpay server listening",
			"addr", httpServer.Addr,
			"storage", cfg.Storage.Backend,
			"executor", exec.Name())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down agentpay server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
