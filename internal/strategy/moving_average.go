package strategy

import (
	"context"
	"math"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// MovingAverage goes long instruments trading above their trailing moving
// average. The comparison uses the prior period's average so a signal at t
// only depends on data through t.
type MovingAverage struct {
	code   string
	window int
}

// NewMovingAverage creates a moving-average strategy.
func NewMovingAverage(code string, window int) *MovingAverage {
	return &MovingAverage{code: code, window: window}
}

// Code returns the strategy identifier.
func (s *MovingAverage) Code() string { return s.code }

// Signals returns 1 where the price is above the lagged trailing mean,
// else 0.
func (s *MovingAverage) Signals(_ context.Context, p *panel.Panel) (*frame.Frame, error) {
	prices, err := p.Prices()
	if err != nil {
		return nil, err
	}
	mavgs := prices.RollingMean(s.window).Shift(1)
	return prices.Combine(mavgs, func(price, mavg float64) float64 {
		if math.IsNaN(price) || math.IsNaN(mavg) {
			return 0
		}
		if price > mavg {
			return 1
		}
		return 0
	})
}

// Ensure MovingAverage implements Strategy.
var _ Strategy = (*MovingAverage)(nil)
