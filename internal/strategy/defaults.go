package strategy

import (
	"context"
	"math"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// EqualWeights is the default weight allocation: each period, allocated
// capital is divided among the active signals in proportion to signal
// magnitude, preserving sign. For the conventional -1/0/1 signals this is
// an equal split. Periods with no active signal get zero weights.
func EqualWeights(signals *frame.Frame) *frame.Frame {
	out := frame.New(signals.Dates(), signals.Instruments())
	for t := 0; t < signals.NumDates(); t++ {
		total := 0.0
		for i := 0; i < signals.NumInstruments(); i++ {
			if v := signals.At(t, i); !math.IsNaN(v) {
				total += math.Abs(v)
			}
		}
		for i := 0; i < signals.NumInstruments(); i++ {
			v := signals.At(t, i)
			switch {
			case math.IsNaN(v) || v == 0 || total == 0:
				out.Set(t, i, 0)
			default:
				out.Set(t, i, v/total)
			}
		}
	}
	return out
}

// AllocateWeights applies the strategy's allocation hook, or equal
// weighting when the strategy does not implement one.
func AllocateWeights(ctx context.Context, s Strategy, signals *frame.Frame, p *panel.Panel) (*frame.Frame, error) {
	if allocator, ok := s.(WeightAllocator); ok {
		return allocator.AllocateWeights(ctx, signals, p)
	}
	return EqualWeights(signals), nil
}

// SimulatePositions applies the strategy's position hook, or the default
// one-period lag. The lag is the no-lookahead invariant: position[t] ==
// weight[t-1].
func SimulatePositions(ctx context.Context, s Strategy, weights *frame.Frame, p *panel.Panel) (*frame.Frame, error) {
	if simulator, ok := s.(PositionSimulator); ok {
		return simulator.SimulatePositions(ctx, weights, p)
	}
	return weights.Shift(1), nil
}

// SimulateGrossReturns applies the strategy's gross-return hook, or the
// default: prior-period position times the current period's price
// relative change.
func SimulateGrossReturns(ctx context.Context, s Strategy, positions *frame.Frame, p *panel.Panel) (*frame.Frame, error) {
	if simulator, ok := s.(GrossReturnSimulator); ok {
		return simulator.SimulateGrossReturns(ctx, positions, p)
	}
	prices, err := p.Prices()
	if err != nil {
		return nil, err
	}
	return prices.PctChange().Combine(positions.Shift(1), func(change, position float64) float64 {
		return change * position
	})
}

// FinalizeOrders applies the strategy's finalization hook, or the default
// market day orders routed to the generic venue.
func FinalizeOrders(ctx context.Context, s Strategy, stubs []*domain.Order, p *panel.Panel) ([]*domain.Order, error) {
	if finalizer, ok := s.(OrderFinalizer); ok {
		return finalizer.FinalizeOrders(ctx, stubs, p)
	}
	for _, order := range stubs {
		order.Exchange = domain.DefaultExchange
		order.OrderType = domain.DefaultOrderType
		order.Tif = domain.DefaultTif
	}
	return stubs, nil
}

// QuantityBounds returns the strategy's max/min allowed quantity matrices,
// or nil/nil when the strategy declares no limits.
func QuantityBounds(ctx context.Context, s Strategy, p *panel.Panel) (maxQty, minQty *frame.Frame, err error) {
	limiter, ok := s.(QuantityLimiter)
	if !ok {
		return nil, nil, nil
	}
	maxQty, err = limiter.MaxAllowedQuantities(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	minQty, err = limiter.MinAllowedQuantities(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	return maxQty, minQty, nil
}
