// Command backtest runs one strategy over historical data and writes the
// results as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/w1r2p1/moonshot/internal/backtest"
	"github.com/w1r2p1/moonshot/internal/costs"
	"github.com/w1r2p1/moonshot/internal/observability"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/reporting"
	"github.com/w1r2p1/moonshot/internal/storage"
	chstore "github.com/w1r2p1/moonshot/internal/storage/clickhouse"
	"github.com/w1r2p1/moonshot/internal/storage/memory"
	pgstore "github.com/w1r2p1/moonshot/internal/storage/postgres"
	"github.com/w1r2p1/moonshot/internal/strategy"
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
	startDate := flag.String("start", "", "Start date YYYY-MM-DD (default all history)")
	endDate := flag.String("end", "", "End date YYYY-MM-DD (default latest)")

	// Capital and costs
	nlv := flag.String("nlv", "", "Per-currency net liquidation values, e.g. USD=100000,EUR=50000")
	allocation := flag.Float64("allocation", 1.0, "Fraction of capital allocated to the strategy")
	commissionRate := flag.Float64("commission-rate", 0, "Commission as a fraction of trade value")
	slippageBPS := flag.Float64("slippage-bps", 0, "Slippage in basis points per turnover")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Output
	output := flag.String("output", "", "Output CSV path (default stdout)")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *code == "" {
		logger.Fatal("--code is required")
	}
	if *db == "" {
		logger.Fatal("--db is required")
	}

	start, err := parseDate(*startDate)
	if err != nil {
		logger.Fatalf("invalid --start: %v", err)
	}
	end, err := parseDate(*endDate)
	if err != nil {
		logger.Fatalf("invalid --end: %v", err)
	}

	nlvMap, err := parseFloatMap(*nlv)
	if err != nil {
		logger.Fatalf("invalid --nlv: %v", err)
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

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (securities)")
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
		NLV:                nlvMap,
		SlippageBPS:        *slippageBPS,
	}
	if *commissionRate > 0 {
		cfg.Commission.Single = costs.PercentageCommission{Rate: *commissionRate}
	}

	runner, err := backtest.NewRunner(strat, cfg, panel.NewLoader(historicalStore, referenceStore))
	if err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	logger.Printf("Running backtest: code=%s strategy=%s window=%d db=%s", *code, *strategyType, *window, *db)

	began := time.Now()
	results, err := runner.Run(ctx, backtest.RunOptions{
		Start:      start,
		End:        end,
		Allocation: *allocation,
	})
	if err != nil {
		observability.RecordBacktestRun(*code, "error", time.Since(began).Seconds())
		logger.Fatalf("backtest failed: %v", err)
	}
	observability.RecordBacktestRun(*code, "ok", time.Since(began).Seconds())

	csv := reporting.RenderResultsCSV(results)
	if *output == "" {
		fmt.Print(csv)
		return
	}
	if err := os.WriteFile(*output, []byte(csv), 0o644); err != nil {
		logger.Fatalf("write output: %v", err)
	}
	logger.Printf("Wrote %s", *output)
}

// parseDate parses YYYY-MM-DD; empty input returns the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
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
