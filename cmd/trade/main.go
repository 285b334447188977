// Command trade runs one strategy against current data and prints the
// orders needed to reach its target positions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/w1r2p1/moonshot/internal/costs"
	"github.com/w1r2p1/moonshot/internal/observability"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/reporting"
	"github.com/w1r2p1/moonshot/internal/storage"
	chstore "github.com/w1r2p1/moonshot/internal/storage/clickhouse"
	"github.com/w1r2p1/moonshot/internal/storage/memory"
	pgstore "github.com/w1r2p1/moonshot/internal/storage/postgres"
	"github.com/w1r2p1/moonshot/internal/strategy"
	"github.com/w1r2p1/moonshot/internal/trading"
)

func main() {
	// Strategy selection
	code := flag.String("code", "", "Strategy code, used as the order grouping label (required)")
	strategyType := flag.String("strategy", strategy.TypeMovingAverage, "Strategy: MAVG, MOMENTUM")
	window := flag.Int("window", 50, "Strategy window in trading periods")

	// Data selection
	db := flag.String("db", "", "History database identifier (required)")
	fields := flag.String("fields", "", "Comma-separated history fields (default Open,High,Low,Close,Volume)")
	instruments := flag.String("instruments", "", "Comma-separated instrument ids")
	universes := flag.String("universes", "", "Comma-separated universe names")
	excludeInstruments := flag.String("exclude-instruments", "", "Comma-separated instrument ids to exclude")
	excludeUniverses := flag.String("exclude-universes", "", "Comma-separated universe names to exclude")

	// Accounts and costs
	allocations := flag.String("allocations", "", "Account allocations, e.g. U1=0.5,U2=0.25 (required)")
	commissionRate := flag.Float64("commission-rate", 0, "Commission as a fraction of trade value")
	slippageBPS := flag.Float64("slippage-bps", 0, "Slippage in basis points per turnover")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON instead of CSV")

	flag.Parse()

	logger := log.New(os.Stderr, "[trade] ", log.LstdFlags)

	if *code == "" {
		logger.Fatal("--code is required")
	}
	if *db == "" {
		logger.Fatal("--db is required")
	}

	allocationMap, err := parseFloatMap(*allocations)
	if err != nil {
		logger.Fatalf("invalid --allocations: %v", err)
	}
	if len(allocationMap) == 0 {
		logger.Fatal("--allocations is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	var historicalStore storage.HistoricalDataStore = memory.NewHistoricalDataStore()
	var referenceStore storage.ReferenceDataStore = memory.NewReferenceDataStore()
	var accountStore storage.AccountStore = memory.NewAccountStore()
	var rateStore storage.ExchangeRateStore = memory.NewExchangeRateStore()
	var positionStore storage.PositionStore = memory.NewPositionStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (securities, accounts, rates, positions)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (history)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		referenceStore = pgstore.NewReferenceDataStore(pool)
		accountStore = pgstore.NewAccountStore(pool)
		rateStore = pgstore.NewExchangeRateStore(pool)
		positionStore = pgstore.NewPositionStore(pool)

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		historicalStore = chstore.NewHistoricalDataStore(conn)
	}

	strat, err := strategy.FromSpec(*code, strategy.Spec{Type: strings.ToUpper(*strategyType), Window: *window})
	if err != nil {
		logger.Fatalf("invalid strategy: %v", err)
	}

	cfg := strategy.Config{
		Code:               *code,
		DB:                 *db,
		DBFields:           parseList(*fields),
		Instruments:        parseList(*instruments),
		Universes:          parseList(*universes),
		ExcludeInstruments: parseList(*excludeInstruments),
		ExcludeUniverses:   parseList(*excludeUniverses),
		LookbackWindow:     *window,
		SlippageBPS:        *slippageBPS,
	}
	if *commissionRate > 0 {
		cfg.Commission.Single = costs.PercentageCommission{Rate: *commissionRate}
	}

	trader, err := trading.NewTrader(trading.TraderOptions{
		Strategy:      strat,
		Config:        cfg,
		Loader:        panel.NewLoader(historicalStore, referenceStore),
		AccountStore:  accountStore,
		RateStore:     rateStore,
		PositionStore: positionStore,
	})
	if err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	logger.Printf("Generating orders: code=%s strategy=%s accounts=%d", *code, *strategyType, len(allocationMap))

	orders, err := trader.CreateOrders(ctx, allocationMap)
	if err != nil {
		observability.RecordTradeRun(*code, "error")
		logger.Fatalf("create orders failed: %v", err)
	}
	observability.RecordTradeRun(*code, "ok")

	if len(orders) == 0 {
		logger.Print("No orders: targets match held positions")
		return
	}
	for _, o := range orders {
		observability.RecordOrder(*code, string(o.Action))
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(orders, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(reporting.RenderOrdersCSV(orders))
}

// parseList splits a comma-separated flag, dropping empty entries.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseFloatMap parses KEY=VALUE pairs separated by commas.
func parseFloatMap(s string) (map[string]float64, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", part)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", part, err)
		}
		out[key] = v
	}
	return out, nil
}
