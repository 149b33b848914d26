// Command loand runs the loan management HTTP daemon.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/schoollib/loanengine/config"
	"github.com/schoollib/loanengine/directory"
	"github.com/schoollib/loanengine/httpapi"
	"github.com/schoollib/loanengine/lending"
	"github.com/schoollib/loanengine/loans"
	"github.com/schoollib/loanengine/loans/memoryengine"
	"github.com/schoollib/loanengine/loans/oteladapters"
	"github.com/schoollib/loanengine/loans/postgresengine"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}

	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, people, catalog, cleanup, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("wiring storage failed: %v", err)
	}
	defer cleanup()

	service, err := lending.NewService(
		store,
		people,
		catalog,
		lending.WithPolicy(cfg.Policy),
		lending.WithContextualLogger(logger),
	)
	if err != nil {
		log.Fatalf("wiring service failed: %v", err)
	}

	handler := httpapi.NewHandler(service, httpapi.WithLogger(logger))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Println("server starting on port", cfg.Port)

		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatalf("server failed: %v", serveErr)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}

	log.Println("server shut down")
}

// buildDependencies selects the storage engine. With a Postgres DSN the loan
// store runs on pgx and the registries on sqlx; without one everything runs
// in memory, which is only useful for local experiments.
func buildDependencies(
	ctx context.Context,
	cfg config.Config,
	logger loans.ContextualLogger,
) (lending.LoanStore, loans.PersonDirectory, loans.ResourceCatalog, func(), error) {

	if cfg.PostgresDSN == "" {
		log.Println("POSTGRES_DSN not set, using in-memory storage")

		registry := directory.NewInMemoryDirectory()

		return memoryengine.NewLoanStore(), registry, registry, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, err := postgresengine.NewLoanStoreFromPGXPool(
		pool,
		postgresengine.WithTableName(cfg.LoansTable),
		postgresengine.WithContextualLogger(logger),
	)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}

	registryDB, err := sqlx.Connect("postgres", cfg.PostgresDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}

	registry, err := directory.NewPostgresDirectory(registryDB)
	if err != nil {
		pool.Close()
		_ = registryDB.Close()

		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = registryDB.Close()
	}

	return store, registry, registry, cleanup, nil
}
