package costs

import (
	"fmt"
	"math"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// FixedSlippage charges a fixed fraction of traded value per unit of
// turnover.
type FixedSlippage struct {
	// Rate is the one-way slippage as a fraction, e.g. 0.0005 for 5 bps.
	Rate float64
}

// Slippage implements SlippageModel.
func (m FixedSlippage) Slippage(trades, _ *frame.Frame, _ *panel.Panel) (*frame.Frame, error) {
	return trades.Apply(func(trade float64) float64 {
		if math.IsNaN(trade) {
			return 0
		}
		return math.Abs(trade) * m.Rate
	}), nil
}

// Slippage sums the outputs of all configured slippage models over the
// trade/position matrices. A nonzero bps rate replaces the per-model sum
// rather than adding to it. No models and no bps rate yields zero.
func Slippage(models []SlippageModel, bps float64, positions *frame.Frame, p *panel.Panel) (*frame.Frame, error) {
	trades := positions.Diff()
	total := frame.NewFilled(positions.Dates(), positions.Instruments(), 0)

	for _, model := range models {
		part, err := model.Slippage(trades, positions, p)
		if err != nil {
			return nil, fmt.Errorf("slippage model: %w", err)
		}
		total, err = total.Combine(part, func(a, b float64) float64 { return a + b })
		if err != nil {
			return nil, err
		}
	}

	if bps != 0 {
		return FixedSlippage{Rate: bps / 10000.0}.Slippage(trades, positions, p)
	}

	return total, nil
}
