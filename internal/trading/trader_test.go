package trading

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/storage/memory"
	"github.com/w1r2p1/moonshot/internal/strategy"
)

// tradeDay is the fixed "today" the test trader runs on.
var tradeDay = time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)

// longStub goes full long every instrument every period.
type longStub struct {
	code   string
	maxQty float64 // 0 means no limiter
	minQty float64
}

func (s *longStub) Code() string { return s.code }

func (s *longStub) Signals(_ context.Context, p *panel.Panel) (*frame.Frame, error) {
	return frame.NewFilled(p.Dates(), p.Instruments(), 1), nil
}

// limitedStub adds quantity bounds on top of longStub.
type limitedStub struct {
	longStub
}

func (s *limitedStub) MaxAllowedQuantities(_ context.Context, p *panel.Panel) (*frame.Frame, error) {
	if s.maxQty == 0 {
		return nil, nil
	}
	return frame.NewFilled(p.Dates(), p.Instruments(), s.maxQty), nil
}

func (s *limitedStub) MinAllowedQuantities(_ context.Context, p *panel.Panel) (*frame.Frame, error) {
	if s.minQty == 0 {
		return nil, nil
	}
	return frame.NewFilled(p.Dates(), p.Instruments(), s.minQty), nil
}

var _ strategy.QuantityLimiter = (*limitedStub)(nil)

// limitOrderStub finalizes stubs as limit orders at the latest close.
type limitOrderStub struct {
	longStub
}

func (s *limitOrderStub) FinalizeOrders(_ context.Context, stubs []*domain.Order, p *panel.Panel) ([]*domain.Order, error) {
	prices, err := p.Prices()
	if err != nil {
		return nil, err
	}
	limits := ReindexLikeOrders(prices, stubs)
	for n, order := range stubs {
		order.Exchange = domain.DefaultExchange
		order.OrderType = "LMT"
		order.Tif = domain.DefaultTif
		price := limits[n]
		order.LimitPrice = &price
	}
	return stubs, nil
}

var _ strategy.OrderFinalizer = (*limitOrderStub)(nil)

type traderFixture struct {
	historical *memory.HistoricalDataStore
	reference  *memory.ReferenceDataStore
	accounts   *memory.AccountStore
	rates      *memory.ExchangeRateStore
	positions  *memory.PositionStore
}

// newFixture seeds FI1 (USD stock, close 100) with history through today
// and one USD account with 100000 NLV.
func newFixture(t *testing.T) *traderFixture {
	t.Helper()
	ctx := context.Background()

	f := &traderFixture{
		historical: memory.NewHistoricalDataStore(),
		reference:  memory.NewReferenceDataStore(),
		accounts:   memory.NewAccountStore(),
		rates:      memory.NewExchangeRateStore(),
		positions:  memory.NewPositionStore(),
	}

	if err := f.reference.Insert(ctx, &domain.SecurityMaster{
		InstrumentID: "FI1", Symbol: "AAA", SecType: domain.SecTypeStock, Currency: "USD",
	}); err != nil {
		t.Fatalf("Insert security: %v", err)
	}

	for back := 5; back >= 0; back-- {
		date := time.Date(2024, 6, 10-back, 0, 0, 0, 0, time.UTC)
		if err := f.historical.Insert(ctx, "us-stk-1d", &domain.PricePoint{
			InstrumentID: "FI1", Date: date, Field: domain.FieldClose, Value: 100,
		}); err != nil {
			t.Fatalf("Insert point: %v", err)
		}
	}

	if err := f.accounts.SetBalance(ctx, &domain.AccountBalance{
		Account: "U1", NetLiquidation: 100000, Currency: "USD",
	}); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	return f
}

func (f *traderFixture) newTrader(t *testing.T, strat strategy.Strategy) *Trader {
	t.Helper()
	trader, err := NewTrader(TraderOptions{
		Strategy: strat,
		Config: strategy.Config{
			Code:           strat.Code(),
			DB:             "us-stk-1d",
			DBFields:       []string{domain.FieldClose},
			LookbackWindow: 5,
		},
		Loader:        panel.NewLoader(f.historical, f.reference),
		AccountStore:  f.accounts,
		RateStore:     f.rates,
		PositionStore: f.positions,
		Now:           func() time.Time { return tradeDay },
	})
	if err != nil {
		t.Fatalf("NewTrader failed: %v", err)
	}
	return trader
}

func TestCreateOrders_FullAllocationBuysTarget(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &longStub{code: "long-us"})

	orders, err := trader.CreateOrders(context.Background(), map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}

	o := orders[0]
	// weight 1.0 x 100000 NLV / 100 contract value = 1000 shares.
	if o.TotalQuantity != 1000 {
		t.Errorf("TotalQuantity = %d, want 1000", o.TotalQuantity)
	}
	if o.Action != domain.SideBuy {
		t.Errorf("Action = %s, want BUY", o.Action)
	}
	if o.InstrumentID != "FI1" || o.Account != "U1" {
		t.Errorf("Order routed to %s/%s, want FI1/U1", o.InstrumentID, o.Account)
	}
	if o.OrderRef != "long-us" {
		t.Errorf("OrderRef = %s, want the strategy code", o.OrderRef)
	}
	if o.Exchange != domain.DefaultExchange || o.OrderType != domain.DefaultOrderType || o.Tif != domain.DefaultTif {
		t.Errorf("Execution params = %s/%s/%s, want defaults", o.Exchange, o.OrderType, o.Tif)
	}
}

func TestCreateOrders_AllocationScalesQuantity(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &longStub{code: "long-us"})

	orders, err := trader.CreateOrders(context.Background(), map[string]float64{"U1": 0.5})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if got := orders[0].TotalQuantity; got != 500 {
		t.Errorf("TotalQuantity = %d, want 500", got)
	}
}

func TestCreateOrders_HeldTargetMeansNoOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.positions.SetPosition(ctx, &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "long-us", Quantity: 1000,
	}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	orders, err := trader.CreateOrders(ctx, map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if orders != nil {
		t.Fatalf("Expected nil orders when targets are already held, got %d", len(orders))
	}
}

func TestCreateOrders_PartialHoldOrdersTheDifference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.positions.SetPosition(ctx, &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "long-us", Quantity: 400,
	}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	orders, err := trader.CreateOrders(ctx, map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if got := orders[0].TotalQuantity; got != 600 {
		t.Errorf("TotalQuantity = %d, want 600", got)
	}
	if orders[0].Action != domain.SideBuy {
		t.Errorf("Action = %s, want BUY", orders[0].Action)
	}
}

func TestCreateOrders_OverweightHoldSells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.positions.SetPosition(ctx, &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "long-us", Quantity: 1500,
	}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	orders, err := trader.CreateOrders(ctx, map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if orders[0].Action != domain.SideSell {
		t.Errorf("Action = %s, want SELL", orders[0].Action)
	}
	if got := orders[0].TotalQuantity; got != 500 {
		t.Errorf("TotalQuantity = %d, want 500", got)
	}
}

func TestCreateOrders_PositionsFromOtherRefsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Held under a different grouping label; must not offset the target.
	if err := f.positions.SetPosition(ctx, &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "other-strategy", Quantity: 1000,
	}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	orders, err := trader.CreateOrders(ctx, map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 || orders[0].TotalQuantity != 1000 {
		t.Fatalf("Expected a full 1000 BUY regardless of foreign positions, got %+v", orders)
	}
}

func TestCreateOrders_CrossCurrencyAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.accounts.SetBalance(ctx, &domain.AccountBalance{
		Account: "U2", NetLiquidation: 50000, Currency: "EUR",
	}); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if err := f.rates.SetRate(ctx, "EUR", "USD", 1.08); err != nil {
		t.Fatalf("SetRate: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	orders, err := trader.CreateOrders(ctx, map[string]float64{"U1": 1.0, "U2": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(orders))
	}

	// Accounts are ordered lexically.
	if got := orders[0].TotalQuantity; got != 1000 {
		t.Errorf("U1 quantity = %d, want 1000", got)
	}
	// 50000 EUR x 1.08 / 100 = 540 shares.
	if orders[1].Account != "U2" || orders[1].TotalQuantity != 540 {
		t.Errorf("U2 order = %+v, want 540 shares", orders[1])
	}
}

func TestCreateOrders_MissingRateMeansNoOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.accounts.SetBalance(ctx, &domain.AccountBalance{
		Account: "U3", NetLiquidation: 1000000, Currency: "JPY",
	}); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	orders, err := trader.CreateOrders(ctx, map[string]float64{"U3": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if orders != nil {
		t.Fatalf("Expected nil orders with no JPY->USD rate, got %+v", orders)
	}
}

func TestCreateOrders_UnknownAccountFails(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &longStub{code: "long-us"})

	_, err := trader.CreateOrders(context.Background(), map[string]float64{"UX": 1.0})
	if err == nil {
		t.Fatal("Expected an error for an unknown account")
	}
}

func TestCreateOrders_NoHistoryRows(t *testing.T) {
	ctx := context.Background()

	// A known security with zero history rows: the selection resolves but
	// the panel has an empty date axis.
	f := &traderFixture{
		historical: memory.NewHistoricalDataStore(),
		reference:  memory.NewReferenceDataStore(),
		accounts:   memory.NewAccountStore(),
		rates:      memory.NewExchangeRateStore(),
		positions:  memory.NewPositionStore(),
	}
	if err := f.reference.Insert(ctx, &domain.SecurityMaster{
		InstrumentID: "FI1", Symbol: "AAA", SecType: domain.SecTypeStock, Currency: "USD",
	}); err != nil {
		t.Fatalf("Insert security: %v", err)
	}
	if err := f.accounts.SetBalance(ctx, &domain.AccountBalance{
		Account: "U1", NetLiquidation: 100000, Currency: "USD",
	}); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	trader := f.newTrader(t, &longStub{code: "long-us"})
	_, err := trader.CreateOrders(ctx, map[string]float64{"U1": 1.0})
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Expected ErrNoHistory, got %v", err)
	}
}

func TestCreateOrders_NoAllocations(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &longStub{code: "long-us"})

	_, err := trader.CreateOrders(context.Background(), nil)
	if !errors.Is(err, ErrNoAllocations) {
		t.Fatalf("Expected ErrNoAllocations, got %v", err)
	}
}

func TestCreateOrders_MaxQuantityCapsOrder(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &limitedStub{longStub: longStub{code: "long-us", maxQty: 300}})

	orders, err := trader.CreateOrders(context.Background(), map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if got := orders[0].TotalQuantity; got != 300 {
		t.Errorf("TotalQuantity = %d, want capped at 300", got)
	}
}

func TestCreateOrders_MinQuantityRaisesOrder(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &limitedStub{longStub: longStub{code: "long-us", minQty: 2000}})

	orders, err := trader.CreateOrders(context.Background(), map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if got := orders[0].TotalQuantity; got != 2000 {
		t.Errorf("TotalQuantity = %d, want raised to 2000", got)
	}
}

func TestCreateOrders_CustomFinalizerAttachesLimitPrice(t *testing.T) {
	f := newFixture(t)
	trader := f.newTrader(t, &limitOrderStub{longStub: longStub{code: "long-us"}})

	orders, err := trader.CreateOrders(context.Background(), map[string]float64{"U1": 1.0})
	if err != nil {
		t.Fatalf("CreateOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}

	o := orders[0]
	if o.OrderType != "LMT" {
		t.Errorf("OrderType = %s, want LMT", o.OrderType)
	}
	if o.LimitPrice == nil || *o.LimitPrice != 100 {
		t.Errorf("LimitPrice = %v, want 100", o.LimitPrice)
	}
}

func TestReindexLikeOrders(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	prices := frame.New(dates, []string{"FI1", "FI2"})
	prices.Set(1, 0, 101)
	prices.Set(1, 1, 202)

	orders := []*domain.Order{
		{InstrumentID: "FI2"},
		{InstrumentID: "FI1"},
		{InstrumentID: "FIX"},
	}

	values := ReindexLikeOrders(prices, orders)
	if values[0] != 202 || values[1] != 101 {
		t.Errorf("Reindexed values = %v, want [202 101 NaN]", values)
	}
	if !math.IsNaN(values[2]) {
		t.Errorf("Unknown instrument value = %v, want NaN", values[2])
	}
}
