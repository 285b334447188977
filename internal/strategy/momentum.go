package strategy

import (
	"context"
	"math"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// Momentum goes long instruments with a positive trailing return and short
// those with a negative one, measured over the configured window as of the
// prior period.
type Momentum struct {
	code   string
	window int
}

// NewMomentum creates a momentum strategy.
func NewMomentum(code string, window int) *Momentum {
	return &Momentum{code: code, window: window}
}

// Code returns the strategy identifier.
func (s *Momentum) Code() string { return s.code }

// Signals returns sign(price[t-1] - price[t-1-window]).
func (s *Momentum) Signals(_ context.Context, p *panel.Panel) (*frame.Frame, error) {
	prices, err := p.Prices()
	if err != nil {
		return nil, err
	}
	current := prices.Shift(1)
	past := prices.Shift(s.window + 1)
	return current.Combine(past, func(now, then float64) float64 {
		if math.IsNaN(now) || math.IsNaN(then) {
			return 0
		}
		switch {
		case now > then:
			return 1
		case now < then:
			return -1
		default:
			return 0
		}
	})
}

// Ensure Momentum implements Strategy.
var _ Strategy = (*Momentum)(nil)
