// Package costs models transaction costs as pure functions over trade,
// position and price matrices. Commission models are dispatched per
// (sectype, exchange, currency) group; slippage models accumulate.
package costs

import (
	"errors"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// Cost model errors.
var (
	ErrMissingCommissionGroup = errors.New("expected a commission model for each (sectype, exchange, currency) combination")
)

// CommissionModel produces a commission matrix, expressed as a fraction of
// allocated capital, from contract values and trades. nlvs may be nil when
// the panel carries no net liquidation values.
type CommissionModel interface {
	Commissions(contractValues, trades, nlvs *frame.Frame) (*frame.Frame, error)
}

// SlippageModel produces a slippage matrix, expressed as a fraction of
// allocated capital, from trades and positions.
type SlippageModel interface {
	Slippage(trades, positions *frame.Frame, p *panel.Panel) (*frame.Frame, error)
}
