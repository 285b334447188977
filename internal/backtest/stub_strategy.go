package backtest

import (
	"context"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/strategy"
)

// StubStrategy emits signals from a caller-provided function. It is used
// for testing the pipeline without real strategy logic.
type StubStrategy struct {
	code     string
	signalFn func(p *panel.Panel) (*frame.Frame, error)
}

// NewStubStrategy creates a stub strategy with the given signal function.
func NewStubStrategy(code string, signalFn func(p *panel.Panel) (*frame.Frame, error)) *StubStrategy {
	return &StubStrategy{code: code, signalFn: signalFn}
}

// Code returns the strategy identifier.
func (s *StubStrategy) Code() string { return s.code }

// Signals invokes the provided signal function.
func (s *StubStrategy) Signals(_ context.Context, p *panel.Panel) (*frame.Frame, error) {
	return s.signalFn(p)
}

// Ensure StubStrategy implements Strategy.
var _ strategy.Strategy = (*StubStrategy)(nil)
