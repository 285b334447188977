package costs

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/panel"
)

func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
	}
	return dates
}

func testPanel(t *testing.T, dates []time.Time, securities []*domain.SecurityMaster, nlv map[string]float64) *panel.Panel {
	t.Helper()
	instruments := make([]string, len(securities))
	for i, sec := range securities {
		instruments[i] = sec.InstrumentID
	}
	closes := frame.NewFilled(dates, instruments, 100)
	p, err := panel.New(dates, instruments, map[string]*frame.Frame{domain.FieldClose: closes}, securities, nlv)
	if err != nil {
		t.Fatalf("panel.New failed: %v", err)
	}
	return p
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCommissions_NoModelIsZero(t *testing.T) {
	dates := testDates(3)
	securities := []*domain.SecurityMaster{{InstrumentID: "FI1", SecType: domain.SecTypeStock, Currency: "USD"}}
	p := testPanel(t, dates, securities, nil)

	positions := frame.NewFilled(dates, []string{"FI1"}, 0.5)

	commissions, err := Commissions(CommissionConfig{}, positions, p)
	if err != nil {
		t.Fatalf("Commissions failed: %v", err)
	}
	for tIdx := 0; tIdx < 3; tIdx++ {
		if got := commissions.At(tIdx, 0); got != 0 {
			t.Errorf("Commission[%d] = %v, want 0", tIdx, got)
		}
	}
}

func TestCommissions_PercentageOfTrade(t *testing.T) {
	dates := testDates(3)
	securities := []*domain.SecurityMaster{{InstrumentID: "FI1", SecType: domain.SecTypeStock, Currency: "USD"}}
	p := testPanel(t, dates, securities, nil)

	positions := frame.New(dates, []string{"FI1"})
	positions.Set(0, 0, 0)
	positions.Set(1, 0, 1)
	positions.Set(2, 0, 0.5)

	cfg := CommissionConfig{Single: PercentageCommission{Rate: 0.001}}
	commissions, err := Commissions(cfg, positions, p)
	if err != nil {
		t.Fatalf("Commissions failed: %v", err)
	}

	// First period trade is undefined and charges nothing.
	if got := commissions.At(0, 0); got != 0 {
		t.Errorf("Commission[0] = %v, want 0", got)
	}
	if got := commissions.At(1, 0); !approxEqual(got, 0.001) {
		t.Errorf("Commission[1] = %v, want 0.001", got)
	}
	// The sell of half the position charges on |trade|.
	if got := commissions.At(2, 0); !approxEqual(got, 0.0005) {
		t.Errorf("Commission[2] = %v, want 0.0005", got)
	}
}

func TestCommissions_SingleEqualsPerGroupWithOneGroup(t *testing.T) {
	dates := testDates(3)
	securities := []*domain.SecurityMaster{
		{InstrumentID: "FI1", SecType: domain.SecTypeStock, PrimaryExchange: "NYSE", Currency: "USD"},
		{InstrumentID: "FI2", SecType: domain.SecTypeStock, PrimaryExchange: "NYSE", Currency: "USD"},
	}
	p := testPanel(t, dates, securities, nil)

	positions := frame.New(dates, []string{"FI1", "FI2"})
	for i := 0; i < 2; i++ {
		positions.Set(0, i, 0)
		positions.Set(1, i, 0.5)
		positions.Set(2, i, 0.25)
	}

	model := PercentageCommission{Rate: 0.002}
	single, err := Commissions(CommissionConfig{Single: model}, positions, p)
	if err != nil {
		t.Fatalf("Commissions (single) failed: %v", err)
	}

	group := SecGroup{SecType: domain.SecTypeStock, Exchange: "NYSE", Currency: "USD"}
	perGroup, err := Commissions(CommissionConfig{PerGroup: map[SecGroup]CommissionModel{group: model}}, positions, p)
	if err != nil {
		t.Fatalf("Commissions (per-group) failed: %v", err)
	}

	for tIdx := 0; tIdx < 3; tIdx++ {
		for i := 0; i < 2; i++ {
			if a, b := single.At(tIdx, i), perGroup.At(tIdx, i); a != b {
				t.Errorf("Mismatch at [%d][%d]: single=%v per-group=%v", tIdx, i, a, b)
			}
		}
	}
}

func TestCommissions_MissingGroupEnumerated(t *testing.T) {
	dates := testDates(2)
	securities := []*domain.SecurityMaster{
		{InstrumentID: "FI1", SecType: domain.SecTypeStock, PrimaryExchange: "NYSE", Currency: "USD"},
		{InstrumentID: "FI2", SecType: domain.SecTypeFuture, PrimaryExchange: "CME", Currency: "USD"},
	}
	p := testPanel(t, dates, securities, nil)

	positions := frame.NewFilled(dates, []string{"FI1", "FI2"}, 0.5)

	covered := SecGroup{SecType: domain.SecTypeStock, Exchange: "NYSE", Currency: "USD"}
	cfg := CommissionConfig{PerGroup: map[SecGroup]CommissionModel{covered: PercentageCommission{Rate: 0.001}}}

	_, err := Commissions(cfg, positions, p)
	if !errors.Is(err, ErrMissingCommissionGroup) {
		t.Fatalf("Expected ErrMissingCommissionGroup, got %v", err)
	}
	if !strings.Contains(err.Error(), "(FUT, CME, USD)") {
		t.Errorf("Expected error to name the uncovered group, got: %v", err)
	}
}

func TestPerShareCommission_UsesPriorContractValue(t *testing.T) {
	dates := testDates(2)
	instruments := []string{"FI1"}

	contractValues := frame.New(dates, instruments)
	contractValues.Set(0, 0, 50)
	contractValues.Set(1, 0, 200) // current-period value must not be used

	trades := frame.New(dates, instruments)
	trades.Set(1, 0, 0.5)

	model := PerShareCommission{CostPerShare: 0.01}
	commissions, err := model.Commissions(contractValues, trades, nil)
	if err != nil {
		t.Fatalf("Commissions failed: %v", err)
	}

	// shares/nlv = |trade|/cv[t-1]; cost fraction = that * CostPerShare.
	if got := commissions.At(1, 0); !approxEqual(got, 0.5*0.01/50) {
		t.Errorf("Commission = %v, want %v", got, 0.5*0.01/50)
	}
}

func TestPerShareCommission_MinimumPerOrder(t *testing.T) {
	dates := testDates(2)
	instruments := []string{"FI1"}

	contractValues := frame.NewFilled(dates, instruments, 100)
	trades := frame.New(dates, instruments)
	trades.Set(1, 0, 0.001)
	nlvs := frame.NewFilled(dates, instruments, 100000)

	model := PerShareCommission{CostPerShare: 0.005, MinimumPerOrder: 1}
	commissions, err := model.Commissions(contractValues, trades, nlvs)
	if err != nil {
		t.Fatalf("Commissions failed: %v", err)
	}

	// Raw commission 0.001*0.005/100 = 5e-8 falls below the 1/100000
	// minimum fraction.
	if got := commissions.At(1, 0); !approxEqual(got, 1.0/100000) {
		t.Errorf("Commission = %v, want %v", got, 1.0/100000)
	}
}

func TestSlippage_ModelsAccumulate(t *testing.T) {
	dates := testDates(3)
	securities := []*domain.SecurityMaster{{InstrumentID: "FI1", SecType: domain.SecTypeStock, Currency: "USD"}}
	p := testPanel(t, dates, securities, nil)

	positions := frame.New(dates, []string{"FI1"})
	positions.Set(0, 0, 0)
	positions.Set(1, 0, 1)
	positions.Set(2, 0, 1)

	models := []SlippageModel{
		FixedSlippage{Rate: 0.0002},
		FixedSlippage{Rate: 0.0003},
	}
	slippage, err := Slippage(models, 0, positions, p)
	if err != nil {
		t.Fatalf("Slippage failed: %v", err)
	}

	if got := slippage.At(1, 0); !approxEqual(got, 0.0005) {
		t.Errorf("Slippage[1] = %v, want 0.0005", got)
	}
	if got := slippage.At(2, 0); got != 0 {
		t.Errorf("Slippage[2] = %v, want 0 with no trade", got)
	}
}

func TestSlippage_BPSReplacesModels(t *testing.T) {
	dates := testDates(2)
	securities := []*domain.SecurityMaster{{InstrumentID: "FI1", SecType: domain.SecTypeStock, Currency: "USD"}}
	p := testPanel(t, dates, securities, nil)

	positions := frame.New(dates, []string{"FI1"})
	positions.Set(0, 0, 0)
	positions.Set(1, 0, 1)

	models := []SlippageModel{FixedSlippage{Rate: 0.01}}
	slippage, err := Slippage(models, 5, positions, p)
	if err != nil {
		t.Fatalf("Slippage failed: %v", err)
	}

	// 5 bps on a full-weight entry, not the model's 100 bps.
	if got := slippage.At(1, 0); !approxEqual(got, 0.0005) {
		t.Errorf("Slippage[1] = %v, want 0.0005", got)
	}
}

func TestSlippage_NoModelsNoBPSIsZero(t *testing.T) {
	dates := testDates(2)
	securities := []*domain.SecurityMaster{{InstrumentID: "FI1", SecType: domain.SecTypeStock, Currency: "USD"}}
	p := testPanel(t, dates, securities, nil)

	positions := frame.New(dates, []string{"FI1"})
	positions.Set(0, 0, 0)
	positions.Set(1, 0, 1)

	slippage, err := Slippage(nil, 0, positions, p)
	if err != nil {
		t.Fatalf("Slippage failed: %v", err)
	}
	for tIdx := 0; tIdx < 2; tIdx++ {
		if got := slippage.At(tIdx, 0); got != 0 {
			t.Errorf("Slippage[%d] = %v, want 0", tIdx, got)
		}
	}
}
