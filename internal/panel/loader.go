package panel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
	"github.com/w1r2p1/moonshot/internal/observability"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// Loader errors.
var (
	ErrNoInstruments = errors.New("no instruments matched the selection")
)

// tradingDaysPerYear assumes 260 weekdays minus 25 holidays.
const tradingDaysPerYear = 260 - 25

// lookbackBufferDays pads the converted lookback to survive market
// closures around the start date.
const lookbackBufferDays = 10

// Query describes one panel construction request.
type Query struct {
	DB          string
	Fields      []string
	Selection   storage.SecuritySelection
	TimeFilters []string
	ContFut     string

	// Start and End bound the nominal date range. A zero Start means all
	// available history.
	Start time.Time
	End   time.Time

	// LookbackWindow is the number of extra trading periods of history the
	// strategy needs before Start for rolling computations.
	LookbackWindow int

	// NLV maps currency to net liquidation value. Optional.
	NLV map[string]float64
}

// StartWithLookback pushes a start date earlier to cover a lookback window
// measured in trading periods. Trading days convert to calendar days at
// ~235 trading days per year, plus a safety buffer.
func StartWithLookback(start time.Time, window int) time.Time {
	days := float64(window)*365.0/tradingDaysPerYear + lookbackBufferDays
	adjusted := start.Add(-time.Duration(days * 24 * float64(time.Hour)))
	return time.Date(adjusted.Year(), adjusted.Month(), adjusted.Day(), 0, 0, 0, 0, time.UTC)
}

// Loader constructs panels from a historical data source and a reference
// data source.
type Loader struct {
	historical storage.HistoricalDataStore
	reference  storage.ReferenceDataStore
}

// NewLoader creates a panel loader.
func NewLoader(historical storage.HistoricalDataStore, reference storage.ReferenceDataStore) *Loader {
	return &Loader{historical: historical, reference: reference}
}

// Load resolves the instrument selection against the reference source,
// retrieves the time-varying fields from the historical source, and joins
// them into a panel. The query start is pushed back by the lookback window
// before hitting the historical source; the nominal start is restored by
// the caller when trimming results.
func (l *Loader) Load(ctx context.Context, q Query) (*Panel, error) {
	began := time.Now()

	queryStart := time.Now()
	securities, err := l.reference.GetSecurities(ctx, q.Selection)
	observability.RecordDBQuery("reference", "get_securities", time.Since(queryStart).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("get securities: %w", err)
	}
	if len(securities) == 0 {
		return nil, ErrNoInstruments
	}

	instruments := make([]string, len(securities))
	for i, sec := range securities {
		instruments[i] = sec.InstrumentID
	}
	sort.Strings(instruments)

	fields := q.Fields
	if len(fields) == 0 {
		fields = domain.DefaultHistoryFields
	}

	start := q.Start
	if !start.IsZero() && q.LookbackWindow > 0 {
		start = StartWithLookback(start, q.LookbackWindow)
	}

	queryStart = time.Now()
	points, err := l.historical.GetPrices(ctx, storage.HistoricalQuery{
		DB:          q.DB,
		Start:       start,
		End:         q.End,
		Instruments: instruments,
		Fields:      fields,
		TimeFilters: q.TimeFilters,
		ContFut:     q.ContFut,
	})
	observability.RecordDBQuery("historical", "get_prices", time.Since(queryStart).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}

	dates := collectDates(points)
	frames := pivot(points, dates, instruments, fields)

	p, err := New(dates, instruments, frames, securities, q.NLV)
	if err != nil {
		return nil, err
	}
	observability.RecordPanelLoad(time.Since(began).Seconds(), len(instruments))
	return p, nil
}

// collectDates returns the sorted distinct dates among the points.
func collectDates(points []*domain.PricePoint) []time.Time {
	seen := make(map[int64]time.Time)
	for _, pt := range points {
		seen[pt.Date.UnixNano()] = pt.Date
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// pivot turns long-form points into one aligned frame per field. Every
// requested field gets a frame even if no observations arrived for it.
func pivot(points []*domain.PricePoint, dates []time.Time, instruments []string, fields []string) map[string]*frame.Frame {
	frames := make(map[string]*frame.Frame, len(fields))
	for _, field := range fields {
		frames[field] = frame.New(dates, instruments)
	}

	dateIdx := make(map[int64]int, len(dates))
	for t, d := range dates {
		dateIdx[d.UnixNano()] = t
	}

	for _, pt := range points {
		f, ok := frames[pt.Field]
		if !ok {
			// Sources may return extra fields; keep them.
			f = frame.New(dates, instruments)
			frames[pt.Field] = f
		}
		t, ok := dateIdx[pt.Date.UnixNano()]
		if !ok {
			continue
		}
		i := f.InstrumentIndex(pt.InstrumentID)
		if i < 0 {
			continue
		}
		f.Set(t, i, pt.Value)
	}

	return frames
}
