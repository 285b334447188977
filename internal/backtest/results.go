package backtest

import (
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// Results holds the output of one backtest: the derived matrices plus the
// panel they were computed from, all sharing one Date x Instrument shape.
type Results struct {
	Code string

	Panel       *panel.Panel
	Signals     *frame.Frame
	Weights     *frame.Frame
	Positions   *frame.Frame
	Trades      *frame.Frame
	Commissions *frame.Frame
	Slippage    *frame.Frame
	Returns     *frame.Frame
}

// Fields returns every result field plus the raw panel fields,
// concatenated along the field axis.
func (r *Results) Fields() map[string]*frame.Frame {
	out := map[string]*frame.Frame{
		domain.FieldSignal:     r.Signals,
		domain.FieldWeight:     r.Weights,
		domain.FieldPosition:   r.Positions,
		domain.FieldTrade:      r.Trades,
		domain.FieldCommission: r.Commissions,
		domain.FieldSlippage:   r.Slippage,
		domain.FieldReturn:     r.Returns,
	}
	for _, name := range r.Panel.Fields() {
		if f, err := r.Panel.Field(name); err == nil {
			out[name] = f
		}
	}
	return out
}

// FieldNames returns the derived field names in presentation order,
// followed by the panel's raw fields.
func (r *Results) FieldNames() []string {
	names := []string{
		domain.FieldSignal, domain.FieldWeight, domain.FieldPosition,
		domain.FieldTrade, domain.FieldCommission, domain.FieldSlippage,
		domain.FieldReturn,
	}
	return append(names, r.Panel.Fields()...)
}

// trimBefore drops rows strictly before the given date from every frame.
func (r *Results) trimBefore(date time.Time) *Results {
	return &Results{
		Code:        r.Code,
		Panel:       r.Panel.TrimBefore(date),
		Signals:     r.Signals.TrimBefore(date),
		Weights:     r.Weights.TrimBefore(date),
		Positions:   r.Positions.TrimBefore(date),
		Trades:      r.Trades.TrimBefore(date),
		Commissions: r.Commissions.TrimBefore(date),
		Slippage:    r.Slippage.TrimBefore(date),
		Returns:     r.Returns.TrimBefore(date),
	}
}
