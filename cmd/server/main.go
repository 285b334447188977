// Command server exposes backtesting and order generation over HTTP,
// plus health and Prometheus metrics endpoints.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/w1r2p1/moonshot/internal/api"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/storage"
	chstore "github.com/w1r2p1/moonshot/internal/storage/clickhouse"
	"github.com/w1r2p1/moonshot/internal/storage/memory"
	"github.com/w1r2p1/moonshot/internal/storage/migrations"
	pgstore "github.com/w1r2p1/moonshot/internal/storage/postgres"
)

func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")

	flag.Parse()

	logger := log.New(os.Stderr, "[server] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var historicalStore storage.HistoricalDataStore = memory.NewHistoricalDataStore()
	var referenceStore storage.ReferenceDataStore = memory.NewReferenceDataStore()
	var accountStore storage.AccountStore = memory.NewAccountStore()
	var rateStore storage.ExchangeRateStore = memory.NewExchangeRateStore()
	var positionStore storage.PositionStore = memory.NewPositionStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		dbName, err := chstore.DatabaseFromDSN(*clickhouseDSN)
		if err != nil {
			logger.Fatalf("invalid clickhouse dsn: %v", err)
		}
		conn, err := chstore.NewConnWithDatabase(ctx, *clickhouseDSN, dbName)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("postgres migrations: %v", err)
			}
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				logger.Fatalf("clickhouse migrations: %v", err)
			}
			logger.Print("Migrations applied")
		}

		referenceStore = pgstore.NewReferenceDataStore(pool)
		accountStore = pgstore.NewAccountStore(pool)
		rateStore = pgstore.NewExchangeRateStore(pool)
		positionStore = pgstore.NewPositionStore(pool)
		historicalStore = chstore.NewHistoricalDataStore(conn)
	}

	server := api.NewServer(api.ServerOptions{
		Port:          *port,
		Loader:        panel.NewLoader(historicalStore, referenceStore),
		AccountStore:  accountStore,
		RateStore:     rateStore,
		PositionStore: positionStore,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, shutting down...", sig)
		if err := server.Shutdown(); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("server: %v", err)
		}
	}
}
