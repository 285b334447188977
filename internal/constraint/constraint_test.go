package constraint

import (
	"errors"
	"math"
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

// testPanel builds a panel with a flat 100 close and a 100000 USD NLV.
func testPanel(t *testing.T, dates []time.Time, withNLV bool) *panel.Panel {
	t.Helper()
	instruments := []string{"FI1"}
	closes := frame.NewFilled(dates, instruments, 100)
	securities := []*domain.SecurityMaster{{InstrumentID: "FI1", Currency: "USD"}}

	var nlv map[string]float64
	if withNLV {
		nlv = map[string]float64{"USD": 100000}
	}
	p, err := panel.New(dates, instruments, map[string]*frame.Frame{domain.FieldClose: closes}, securities, nlv)
	if err != nil {
		t.Fatalf("panel.New failed: %v", err)
	}
	return p
}

func TestConstrainWeights_NilBoundsReturnInput(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, false)
	weights := frame.NewFilled(dates, []string{"FI1"}, 0.5)

	out, err := ConstrainWeights(weights, p, nil, nil)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}
	if out != weights {
		t.Error("Expected the input frame back when no bounds are set")
	}
}

func TestConstrainWeights_RequiresNLV(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, false)
	weights := frame.NewFilled(dates, []string{"FI1"}, 0.5)
	maxQty := frame.NewFilled(dates, []string{"FI1"}, 100)

	_, err := ConstrainWeights(weights, p, maxQty, nil)
	if !errors.Is(err, ErrMissingNLV) {
		t.Fatalf("Expected ErrMissingNLV, got %v", err)
	}
}

func TestConstrainWeights_ShapeMismatch(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, true)
	weights := frame.NewFilled(dates, []string{"FI1"}, 0.5)
	maxQty := frame.NewFilled(testDates(3), []string{"FI1"}, 100)

	_, err := ConstrainWeights(weights, p, maxQty, nil)
	if !errors.Is(err, frame.ErrShapeMismatch) {
		t.Fatalf("Expected ErrShapeMismatch, got %v", err)
	}
}

func TestConstrainWeights_ScalesDownOverMax(t *testing.T) {
	dates := testDates(3)
	p := testPanel(t, dates, true)

	// Full-weight entry at t=1 implies 100000/100 = 1000 shares.
	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, 1)
	weights.Set(2, 0, 1)

	maxQty := frame.NewFilled(dates, []string{"FI1"}, 500)

	out, err := ConstrainWeights(weights, p, maxQty, nil)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}

	if got := out.At(1, 0); got != 0.5 {
		t.Errorf("Entry weight = %v, want 0.5", got)
	}
	// Holding the unconstrained weight at t=2 would raise exposure past the
	// capped entry, so it is capped in the same pass.
	if got := out.At(2, 0); got != 0.5 {
		t.Errorf("Follow-on weight = %v, want 0.5", got)
	}
}

func TestConstrainWeights_Idempotent(t *testing.T) {
	dates := testDates(3)
	p := testPanel(t, dates, true)

	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, 1)
	weights.Set(2, 0, 1)

	maxQty := frame.NewFilled(dates, []string{"FI1"}, 500)

	once, err := ConstrainWeights(weights, p, maxQty, nil)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}
	twice, err := ConstrainWeights(once, p, maxQty, nil)
	if err != nil {
		t.Fatalf("ConstrainWeights (second pass) failed: %v", err)
	}

	for tIdx := 0; tIdx < 3; tIdx++ {
		a, b := once.At(tIdx, 0), twice.At(tIdx, 0)
		if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
			t.Errorf("Not idempotent at t=%d: once=%v twice=%v", tIdx, a, b)
		}
	}
}

func TestConstrainWeights_ScalesUpUnderMin(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, true)

	// 0.1 weight implies 100 shares, below the 200 minimum.
	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, 0.1)

	minQty := frame.NewFilled(dates, []string{"FI1"}, 200)

	out, err := ConstrainWeights(weights, p, nil, minQty)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}

	want := 0.1 * 200 / 100
	if got := out.At(1, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("Weight = %v, want %v", got, want)
	}
}

func TestConstrainWeights_SignPreservedOnShorts(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, true)

	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, -1)

	maxQty := frame.NewFilled(dates, []string{"FI1"}, 500)

	out, err := ConstrainWeights(weights, p, maxQty, nil)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}
	if got := out.At(1, 0); got != -0.5 {
		t.Errorf("Short weight = %v, want -0.5", got)
	}
}

func TestConstrainWeights_ZeroTargetClampsToZero(t *testing.T) {
	dates := testDates(3)
	p := testPanel(t, dates, true)

	// Exit at t=2: the trade is nonzero but the implied quantity is zero.
	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, 0.5)
	weights.Set(2, 0, 0)

	minQty := frame.NewFilled(dates, []string{"FI1"}, 100)

	out, err := ConstrainWeights(weights, p, nil, minQty)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}

	if got := out.At(2, 0); got != 0 {
		t.Errorf("Exit weight = %v, want 0 clamp", got)
	}
	if math.IsNaN(out.At(2, 0)) {
		t.Error("Exit weight must not be NaN")
	}
}

func TestConstrainWeights_MaxWinsOverMin(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, true)

	// 1000 implied shares with max 500 and min 800: the max branch applies
	// and the result is not re-raised by the min.
	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, 1)

	maxQty := frame.NewFilled(dates, []string{"FI1"}, 500)
	minQty := frame.NewFilled(dates, []string{"FI1"}, 800)

	out, err := ConstrainWeights(weights, p, maxQty, minQty)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}
	if got := out.At(1, 0); got != 0.5 {
		t.Errorf("Weight = %v, want 0.5 from the max bound", got)
	}
}

func TestConstrainWeights_NaNBoundUnconstrained(t *testing.T) {
	dates := testDates(2)
	p := testPanel(t, dates, true)

	weights := frame.New(dates, []string{"FI1"})
	weights.Set(0, 0, 0)
	weights.Set(1, 0, 1)

	maxQty := frame.New(dates, []string{"FI1"}) // all NaN

	out, err := ConstrainWeights(weights, p, maxQty, nil)
	if err != nil {
		t.Fatalf("ConstrainWeights failed: %v", err)
	}
	if got := out.At(1, 0); got != 1 {
		t.Errorf("Weight = %v, want 1 with NaN bound", got)
	}
}
