package costs

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

// SecGroup is the dispatch key for commission configuration.
type SecGroup struct {
	SecType  string
	Exchange string
	Currency string
}

// String renders the group the way coverage errors report it.
func (g SecGroup) String() string {
	return fmt.Sprintf("(%s, %s, %s)", g.SecType, g.Exchange, g.Currency)
}

// CommissionConfig selects commission models. Exactly one of Single or
// PerGroup may be set; leaving both empty means no commission is applied.
type CommissionConfig struct {
	// Single is invoked over the full trade matrix.
	Single CommissionModel

	// PerGroup maps (sectype, exchange, currency) to a model. Every group
	// present among the instrument universe must be covered.
	PerGroup map[SecGroup]CommissionModel
}

// IsZero reports whether no commission model is configured.
func (c CommissionConfig) IsZero() bool {
	return c.Single == nil && len(c.PerGroup) == 0
}

// Commissions computes the commission matrix for the given positions. With
// no model configured the result is zero everywhere. With a per-group
// configuration, the groups actually present among the instruments are
// derived from the broadcast reference fields, checked for coverage once,
// and each instrument's cells take the result of its own group's model.
func Commissions(cfg CommissionConfig, positions *frame.Frame, p *panel.Panel) (*frame.Frame, error) {
	if cfg.IsZero() {
		return frame.NewFilled(positions.Dates(), positions.Instruments(), 0), nil
	}

	trades := positions.Diff()
	contractValues, err := p.ContractValues()
	if err != nil {
		return nil, err
	}

	var nlvs *frame.Frame
	if p.HasNLV() {
		nlvs, err = p.NLVFrame()
		if err != nil {
			return nil, err
		}
	}

	if cfg.Single != nil {
		return cfg.Single.Commissions(contractValues, trades, nlvs)
	}

	groupByInstrument, required := instrumentGroups(p)
	if err := checkGroupCoverage(cfg.PerGroup, required); err != nil {
		return nil, err
	}

	merged := frame.New(positions.Dates(), positions.Instruments())
	for _, group := range required {
		model := cfg.PerGroup[group]
		groupCommissions, err := model.Commissions(contractValues, trades, nlvs)
		if err != nil {
			return nil, fmt.Errorf("commissions for %s: %w", group, err)
		}
		for i, id := range positions.Instruments() {
			if groupByInstrument[id] != group {
				continue
			}
			for t := 0; t < merged.NumDates(); t++ {
				merged.Set(t, i, groupCommissions.At(t, i))
			}
		}
	}

	return merged, nil
}

// instrumentGroups tags every instrument with its dispatch group and
// returns the distinct groups in deterministic order.
func instrumentGroups(p *panel.Panel) (map[string]SecGroup, []SecGroup) {
	byInstrument := make(map[string]SecGroup, len(p.Instruments()))
	seen := make(map[SecGroup]struct{})
	var groups []SecGroup

	for _, id := range p.Instruments() {
		var group SecGroup
		if sec := p.Security(id); sec != nil {
			group = SecGroup{SecType: sec.SecType, Exchange: sec.PrimaryExchange, Currency: sec.Currency}
		}
		byInstrument[id] = group
		if _, ok := seen[group]; !ok {
			seen[group] = struct{}{}
			groups = append(groups, group)
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].String() < groups[j].String() })
	return byInstrument, groups
}

// checkGroupCoverage verifies every required group has a configured model.
func checkGroupCoverage(configured map[SecGroup]CommissionModel, required []SecGroup) error {
	var missing []string
	for _, group := range required {
		if _, ok := configured[group]; !ok {
			missing = append(missing, group.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w but none is defined for %s",
		ErrMissingCommissionGroup, strings.Join(missing, ", "))
}

// PercentageCommission charges a fixed fraction of traded value.
type PercentageCommission struct {
	// Rate is the commission as a fraction of traded value, e.g. 0.0005
	// for 5 bps.
	Rate float64
}

// Commissions implements CommissionModel.
func (m PercentageCommission) Commissions(_, trades, _ *frame.Frame) (*frame.Frame, error) {
	return trades.Apply(func(trade float64) float64 {
		if math.IsNaN(trade) {
			return 0
		}
		return math.Abs(trade) * m.Rate
	}), nil
}

// PerShareCommission charges a fixed amount per share or contract, with an
// optional minimum per order. The minimum requires net liquidation values
// to express money as a capital fraction; without them it is ignored.
type PerShareCommission struct {
	CostPerShare    float64
	MinimumPerOrder float64
}

// Commissions implements CommissionModel.
func (m PerShareCommission) Commissions(contractValues, trades, nlvs *frame.Frame) (*frame.Frame, error) {
	shifted := contractValues.Shift(1)
	out := frame.New(trades.Dates(), trades.Instruments())
	for t := 0; t < out.NumDates(); t++ {
		for i := 0; i < out.NumInstruments(); i++ {
			trade := trades.At(t, i)
			cv := shifted.At(t, i)
			if math.IsNaN(trade) || trade == 0 || math.IsNaN(cv) || cv == 0 {
				out.Set(t, i, 0)
				continue
			}
			// |trade| is a capital fraction; shares = |trade|*nlv/cv, cost
			// = shares*CostPerShare, fraction = cost/nlv. The nlv cancels
			// except for the per-order minimum.
			commission := math.Abs(trade) * m.CostPerShare / cv
			if nlvs != nil && m.MinimumPerOrder > 0 {
				if nlv := nlvs.At(t, i); !math.IsNaN(nlv) && nlv > 0 {
					if minFraction := m.MinimumPerOrder / nlv; commission < minFraction {
						commission = minFraction
					}
				}
			}
			out.Set(t, i, commission)
		}
	}
	return out, nil
}
