// Package trading converts the latest strategy weights into account-scoped
// order stubs: currency-adjusted target quantities, reconciled against
// currently held positions, clipped to allowed-quantity bounds.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/fx"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/storage"
	"github.com/w1r2p1/moonshot/internal/strategy"
)

// Trader errors.
var (
	ErrNoAllocations = errors.New("at least one account allocation is required")
	ErrNoHistory     = errors.New("no price history in the queried range")
)

// Trader generates orders for one strategy.
type Trader struct {
	strategy  strategy.Strategy
	cfg       strategy.Config
	loader    *panel.Loader
	accounts  storage.AccountStore
	rates     storage.ExchangeRateStore
	positions storage.PositionStore
	now       func() time.Time
}

// TraderOptions contains the collaborators for creating a Trader.
type TraderOptions struct {
	Strategy      strategy.Strategy
	Config        strategy.Config
	Loader        *panel.Loader
	AccountStore  storage.AccountStore
	RateStore     storage.ExchangeRateStore
	PositionStore storage.PositionStore

	// Now overrides the trading clock. Defaults to time.Now.
	Now func() time.Time
}

// NewTrader validates the config and creates a Trader.
func NewTrader(opts TraderOptions) (*Trader, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Trader{
		strategy:  opts.Strategy,
		cfg:       opts.Config.WithDefaults(),
		loader:    opts.Loader,
		accounts:  opts.AccountStore,
		rates:     opts.RateStore,
		positions: opts.PositionStore,
		now:       now,
	}, nil
}

// CreateOrders runs the strategy on today's panel and produces finalized
// orders for the given account allocations (account id to fraction of
// that account's net liquidation value). Returns nil when every net
// quantity is zero.
func (t *Trader) CreateOrders(ctx context.Context, allocations map[string]float64) ([]*domain.Order, error) {
	if len(allocations) == 0 {
		return nil, ErrNoAllocations
	}

	accounts := make([]string, 0, len(allocations))
	for account := range allocations {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	today := t.now().UTC()
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	p, err := t.loader.Load(ctx, panel.Query{
		DB:             t.cfg.DB,
		Fields:         t.cfg.DBFields,
		Selection:      t.cfg.Selection(),
		TimeFilters:    t.cfg.DBTimeFilters,
		ContFut:        t.cfg.ContFut,
		Start:          start,
		LookbackWindow: t.cfg.LookbackWindow,
		NLV:            t.cfg.NLV,
	})
	if err != nil {
		return nil, fmt.Errorf("load panel: %w", err)
	}
	if len(p.Dates()) == 0 {
		return nil, fmt.Errorf("%w: db %s", ErrNoHistory, t.cfg.DB)
	}

	signals, err := t.strategy.Signals(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("signals: %w", err)
	}

	weights, err := strategy.AllocateWeights(ctx, t.strategy, signals, p)
	if err != nil {
		return nil, fmt.Errorf("allocate weights: %w", err)
	}

	// Today's trading decision is the most recent row.
	signalDate := signals.LastDate()
	weightRow, err := weights.RowOn(signalDate)
	if err != nil {
		return nil, err
	}

	balances, err := t.accounts.GetBalances(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	balanceByAccount := make(map[string]*domain.AccountBalance, len(balances))
	for _, b := range balances {
		balanceByAccount[b.Account] = b
	}

	contractValues, err := p.ContractValues()
	if err != nil {
		return nil, err
	}
	// Stale instruments carry the last known contract value forward.
	contractValueRow, err := contractValues.ForwardFill().RowOn(signalDate)
	if err != nil {
		return nil, err
	}

	quoteByInstrument := make(map[string]string, len(p.Instruments()))
	for _, id := range p.Instruments() {
		if sec := p.Security(id); sec != nil {
			quoteByInstrument[id] = fx.QuoteCurrency(sec)
		}
	}
	rates, err := fx.Rates(ctx, t.rates, balances, quoteByInstrument)
	if err != nil {
		return nil, err
	}

	targets := targetQuantities(p.Instruments(), accounts, weightRow, allocations, balanceByAccount, rates, contractValueRow)

	net, err := t.reconcile(ctx, targets, accounts, p.Instruments())
	if err != nil {
		return nil, err
	}
	if net.allZero() {
		return nil, nil
	}

	if err := t.clipQuantities(ctx, net, p, signalDate); err != nil {
		return nil, err
	}

	stubs := net.orderStubs(t.strategy.Code())
	if len(stubs) == 0 {
		return nil, nil
	}

	orders, err := strategy.FinalizeOrders(ctx, t.strategy, stubs, p)
	if err != nil {
		return nil, fmt.Errorf("finalize orders: %w", err)
	}
	return orders, nil
}

// targetQuantities converts weights to integer quantities per (instrument,
// account): round(weight x allocation x account NLV x rate / contract
// value). Cells with any missing input are zero.
func targetQuantities(
	instruments, accounts []string,
	weightRow []float64,
	allocations map[string]float64,
	balances map[string]*domain.AccountBalance,
	rates map[string]map[string]float64,
	contractValueRow []float64,
) *quantityGrid {
	grid := newQuantityGrid(instruments, accounts)
	for i, instrumentID := range instruments {
		for a, account := range accounts {
			balance := balances[account]
			if balance == nil {
				continue
			}
			rate := math.NaN()
			if row, ok := rates[instrumentID]; ok {
				rate = row[account]
			}
			weight := weightRow[i] * allocations[account]
			value := weight * balance.NetLiquidation * rate
			quantity := value / contractValueRow[i]
			if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
				continue
			}
			grid.set(i, a, int64(math.Round(quantity)))
		}
	}
	return grid
}

// reconcile subtracts currently held quantities for this strategy's
// grouping label from the targets. Held positions that are not reported
// default to zero.
func (t *Trader) reconcile(ctx context.Context, targets *quantityGrid, accounts, instruments []string) (*quantityGrid, error) {
	held, err := t.positions.GetPositions(ctx, t.strategy.Code(), accounts, instruments)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	for _, pos := range held {
		i := targets.instrumentIndex(pos.InstrumentID)
		a := targets.accountIndex(pos.Account)
		if i < 0 || a < 0 {
			continue
		}
		targets.set(i, a, targets.at(i, a)-pos.Quantity)
	}
	return targets, nil
}

// clipQuantities applies the strategy's max/min allowed quantities to the
// net quantity grid, clipping magnitude while preserving sign.
func (t *Trader) clipQuantities(ctx context.Context, net *quantityGrid, p *panel.Panel, signalDate time.Time) error {
	maxQty, minQty, err := strategy.QuantityBounds(ctx, t.strategy, p)
	if err != nil {
		return fmt.Errorf("quantity bounds: %w", err)
	}
	if maxQty != nil {
		row, err := maxQty.RowOn(signalDate)
		if err != nil {
			return err
		}
		net.clipMax(row)
	}
	if minQty != nil {
		row, err := minQty.RowOn(signalDate)
		if err != nil {
			return err
		}
		net.clipMin(row)
	}
	return nil
}

// ReindexLikeOrders projects a Date x Instrument frame onto an order list
// at the most recent date, returning one value per order. Finalization
// hooks use it to attach per-instrument prices to orders.
func ReindexLikeOrders(f *frame.Frame, orders []*domain.Order) []float64 {
	row := f.Row(f.NumDates() - 1)
	out := make([]float64, len(orders))
	for n, order := range orders {
		out[n] = math.NaN()
		if i := f.InstrumentIndex(order.InstrumentID); i >= 0 {
			out[n] = row[i]
		}
	}
	return out
}
