// Package strategy defines the hooks a trading strategy implements and the
// defaults applied when a hook is absent. A strategy must produce signals;
// every other stage has a default the pipeline applies centrally.
package strategy

import (
	"context"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// Strategy produces directional signals from a panel. Signals are
// conventionally 1=long, 0=cash, -1=short, but any value usable in
// arithmetic with weights is accepted.
type Strategy interface {
	// Code returns the strategy identifier, used as the order grouping
	// label.
	Code() string

	// Signals returns a Date x Instrument signal matrix.
	Signals(ctx context.Context, p *panel.Panel) (*frame.Frame, error)
}

// WeightAllocator turns signals into capital weights. Strategies that do
// not implement it get equal-weight allocation.
type WeightAllocator interface {
	AllocateWeights(ctx context.Context, signals *frame.Frame, p *panel.Panel) (*frame.Frame, error)
}

// PositionSimulator turns weights into realized positions. The default is
// a one-period lag: a decision made with information through t-1 is held
// from t.
type PositionSimulator interface {
	SimulatePositions(ctx context.Context, weights *frame.Frame, p *panel.Panel) (*frame.Frame, error)
}

// GrossReturnSimulator computes returns before costs. The default is the
// prior-period position times the current period's price relative change.
type GrossReturnSimulator interface {
	SimulateGrossReturns(ctx context.Context, positions *frame.Frame, p *panel.Panel) (*frame.Frame, error)
}

// OrderFinalizer enriches order stubs with venue, order type, time in
// force and any other execution parameters. The default routes market day
// orders to a generic venue.
type OrderFinalizer interface {
	FinalizeOrders(ctx context.Context, stubs []*domain.Order, p *panel.Panel) ([]*domain.Order, error)
}

// QuantityLimiter supplies max/min allowed quantity matrices derived from
// liquidity or contract-size considerations. Returning nil means no
// constraint, which is the default.
type QuantityLimiter interface {
	MaxAllowedQuantities(ctx context.Context, p *panel.Panel) (*frame.Frame, error)
	MinAllowedQuantities(ctx context.Context, p *panel.Panel) (*frame.Frame, error)
}
