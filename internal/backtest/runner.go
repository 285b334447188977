// Package backtest orchestrates the historical evaluation pipeline:
// signals, weights, constraints, positions and cost-adjusted returns, each
// stage pure given the previous outputs and the panel.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/w1r2p1/moonshot/internal/constraint"
	"github.com/w1r2p1/moonshot/internal/costs"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/strategy"
)

// Runner executes backtests for one strategy.
type Runner struct {
	strategy strategy.Strategy
	cfg      strategy.Config
	loader   *panel.Loader
}

// NewRunner validates the config and creates a backtest runner.
func NewRunner(s strategy.Strategy, cfg strategy.Config, loader *panel.Loader) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{strategy: s, cfg: cfg.WithDefaults(), loader: loader}, nil
}

// RunOptions bound one backtest invocation.
type RunOptions struct {
	// Start and End bound the evaluation range. A zero Start means all
	// available history; with a Start set, extra history is queried to
	// satisfy the lookback window and trimmed from the output.
	Start time.Time
	End   time.Time

	// NLV overrides the config's per-currency net liquidation values.
	NLV map[string]float64

	// Allocation is the fraction of capital allocated to the strategy.
	// Zero means 1.0.
	Allocation float64
}

// Run executes the full pipeline and returns the combined results.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Results, error) {
	allocation := opts.Allocation
	if allocation == 0 {
		allocation = 1.0
	}

	nlv := opts.NLV
	if nlv == nil {
		nlv = r.cfg.NLV
	}

	p, err := r.loader.Load(ctx, panel.Query{
		DB:             r.cfg.DB,
		Fields:         r.cfg.DBFields,
		Selection:      r.cfg.Selection(),
		TimeFilters:    r.cfg.DBTimeFilters,
		ContFut:        r.cfg.ContFut,
		Start:          opts.Start,
		End:            opts.End,
		LookbackWindow: r.cfg.LookbackWindow,
		NLV:            nlv,
	})
	if err != nil {
		return nil, fmt.Errorf("load panel: %w", err)
	}

	signals, err := r.strategy.Signals(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("signals: %w", err)
	}

	weights, err := strategy.AllocateWeights(ctx, r.strategy, signals, p)
	if err != nil {
		return nil, fmt.Errorf("allocate weights: %w", err)
	}
	weights = weights.Apply(func(w float64) float64 { return w * allocation })

	maxQty, minQty, err := strategy.QuantityBounds(ctx, r.strategy, p)
	if err != nil {
		return nil, fmt.Errorf("quantity bounds: %w", err)
	}
	weights, err = constraint.ConstrainWeights(weights, p, maxQty, minQty)
	if err != nil {
		return nil, fmt.Errorf("constrain weights: %w", err)
	}

	positions, err := strategy.SimulatePositions(ctx, r.strategy, weights, p)
	if err != nil {
		return nil, fmt.Errorf("simulate positions: %w", err)
	}

	gross, err := strategy.SimulateGrossReturns(ctx, r.strategy, positions, p)
	if err != nil {
		return nil, fmt.Errorf("simulate gross returns: %w", err)
	}

	commissions, err := costs.Commissions(r.cfg.Commission, positions, p)
	if err != nil {
		return nil, fmt.Errorf("commissions: %w", err)
	}

	slippage, err := costs.Slippage(r.cfg.Slippage, r.cfg.SlippageBPS, positions, p)
	if err != nil {
		return nil, fmt.Errorf("slippage: %w", err)
	}

	returns, err := netReturns(gross, commissions, slippage)
	if err != nil {
		return nil, err
	}

	results := &Results{
		Code:        r.strategy.Code(),
		Panel:       p,
		Signals:     signals,
		Weights:     weights,
		Positions:   positions,
		Trades:      positions.Diff(),
		Commissions: commissions,
		Slippage:    slippage,
		Returns:     returns,
	}

	// The pipeline may have queried further back than requested to cover
	// the lookback window; trim those rows from the output.
	if !opts.Start.IsZero() {
		results = results.trimBefore(opts.Start)
	}

	return results, nil
}

// netReturns computes gross - commission - slippage, exactly.
func netReturns(gross, commissions, slippage *frame.Frame) (*frame.Frame, error) {
	net, err := gross.Combine(commissions, func(g, c float64) float64 { return g - c })
	if err != nil {
		return nil, err
	}
	return net.Combine(slippage, func(n, s float64) float64 { return n - s })
}
