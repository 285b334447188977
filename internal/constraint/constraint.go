// Package constraint rescales weights so that implied instrument
// quantities respect externally supplied liquidity and contract-size
// bounds.
package constraint

import (
	"errors"
	"math"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// Constraint errors.
var (
	ErrMissingNLV = errors.New("must provide NLVs to constrain weights")
)

// ConstrainWeights scales down weights whose implied quantity exceeds
// maxQty and scales up weights whose implied quantity falls below minQty.
// Either bound may be nil, meaning unconstrained; with both nil the input
// is returned untouched. Constraints apply only to cells where the weight
// changes from the constrained prior period (an entry, exit or resize).
// Comparing against the constrained prior row makes the operation
// idempotent: once an entry is capped, holding the capped exposure is not
// a trade, while reverting to the unconstrained weight is and gets capped
// in the same pass.
//
// The implied quantity of a cell is |weight| x NLV / prior-period contract
// value. A zero implied quantity that still trips a bound clamps the
// weight to zero rather than inheriting a divide-by-zero artifact.
func ConstrainWeights(weights *frame.Frame, p *panel.Panel, maxQty, minQty *frame.Frame) (*frame.Frame, error) {
	if maxQty == nil && minQty == nil {
		return weights, nil
	}

	if !p.HasNLV() {
		return nil, ErrMissingNLV
	}
	if maxQty != nil && !maxQty.SameAxes(weights) {
		return nil, frame.ErrShapeMismatch
	}
	if minQty != nil && !minQty.SameAxes(weights) {
		return nil, frame.ErrShapeMismatch
	}

	nlvs, err := p.NLVFrame()
	if err != nil {
		return nil, err
	}
	contractValues, err := p.ContractValues()
	if err != nil {
		return nil, err
	}
	priorContractValues := contractValues.Shift(1)

	out := weights.Clone()

	for t := 0; t < weights.NumDates(); t++ {
		for i := 0; i < weights.NumInstruments(); i++ {
			trade := math.NaN()
			if t > 0 {
				trade = weights.At(t, i) - out.At(t-1, i)
			}
			if math.IsNaN(trade) || trade == 0 {
				continue
			}

			weight := weights.At(t, i)
			target := math.Abs(weight) * nlvs.At(t, i) / priorContractValues.At(t, i)
			if math.IsNaN(target) {
				continue
			}

			if maxQty != nil {
				if max := maxQty.At(t, i); !math.IsNaN(max) && target > max {
					out.Set(t, i, scale(weight, max, target))
					continue
				}
			}
			if minQty != nil {
				if min := minQty.At(t, i); !math.IsNaN(min) && target < min {
					out.Set(t, i, scale(weight, min, target))
				}
			}
		}
	}

	return out, nil
}

// scale rescales a weight by bound/target, clamping to zero when the
// target quantity is zero.
func scale(weight, bound, target float64) float64 {
	if target == 0 {
		return 0
	}
	return weight * bound / target
}
