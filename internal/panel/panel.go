// Package panel builds and serves the aligned multi-field, time-indexed
// data structure the pipeline reads: time-varying fields as Date x
// Instrument frames, joined with per-instrument reference attributes that
// are constant along the date axis by construction.
package panel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/frame"
)

// Panel errors.
var (
	ErrUnknownField  = errors.New("field not in panel")
	ErrNoPriceField  = errors.New("no price field available for contract values")
	ErrMissingNLV    = errors.New("net liquidation values not in panel")
	ErrMisalignedKey = errors.New("field frame does not share the panel axes")
)

// priceFieldCandidates are the fields accepted for monetary calculations,
// in preference order.
var priceFieldCandidates = []string{
	domain.FieldClose, domain.FieldOpen, domain.FieldBid,
	domain.FieldAsk, domain.FieldHigh, domain.FieldLow,
}

// Panel combines time-varying market data with broadcast reference
// attributes. It is constructed once per run and read-only thereafter.
type Panel struct {
	dates       []time.Time
	instruments []string
	fieldNames  []string
	fields      map[string]*frame.Frame
	securities  map[string]*domain.SecurityMaster
	nlv         map[string]float64 // currency -> NLV, nil when not supplied
}

// New assembles a panel from aligned field frames and security reference
// rows. All frames must share the given axes. When nlv is non-nil, it must
// contain an entry for every currency among the securities; missing
// currencies are enumerated in the returned error.
func New(dates []time.Time, instruments []string, fields map[string]*frame.Frame, securities []*domain.SecurityMaster, nlv map[string]float64) (*Panel, error) {
	p := &Panel{
		dates:       append([]time.Time(nil), dates...),
		instruments: append([]string(nil), instruments...),
		fields:      make(map[string]*frame.Frame, len(fields)),
		securities:  make(map[string]*domain.SecurityMaster, len(securities)),
		nlv:         nlv,
	}

	probe := frame.New(dates, instruments)
	for name, f := range fields {
		if !f.SameAxes(probe) {
			return nil, fmt.Errorf("%w: %s", ErrMisalignedKey, name)
		}
		p.fields[name] = f
		p.fieldNames = append(p.fieldNames, name)
	}
	sort.Strings(p.fieldNames)

	for _, sec := range securities {
		p.securities[sec.InstrumentID] = sec
	}

	if nlv != nil {
		if err := checkNLVCoverage(nlv, securities); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// checkNLVCoverage verifies that every currency among the securities has an
// NLV entry.
func checkNLVCoverage(nlv map[string]float64, securities []*domain.SecurityMaster) error {
	missing := make(map[string]struct{})
	for _, sec := range securities {
		if _, ok := nlv[sec.Currency]; !ok {
			missing[sec.Currency] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for c := range missing {
		names = append(names, c)
	}
	sort.Strings(names)
	return fmt.Errorf("%w: NLV map is missing required currencies: %s",
		ErrMissingNLV, strings.Join(names, ", "))
}

// Dates returns the date axis.
func (p *Panel) Dates() []time.Time { return p.dates }

// Instruments returns the instrument axis.
func (p *Panel) Instruments() []string { return p.instruments }

// Fields returns the time-varying field names, sorted.
func (p *Panel) Fields() []string { return p.fieldNames }

// HasField reports whether a time-varying field is present.
func (p *Panel) HasField(name string) bool {
	_, ok := p.fields[name]
	return ok
}

// Field returns the frame for a time-varying field.
func (p *Panel) Field(name string) (*frame.Frame, error) {
	f, ok := p.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f, nil
}

// Security returns the reference row for an instrument, or nil.
func (p *Panel) Security(instrumentID string) *domain.SecurityMaster {
	return p.securities[instrumentID]
}

// HasNLV reports whether per-currency net liquidation values were supplied.
func (p *Panel) HasNLV() bool { return p.nlv != nil }

// NLVFrame returns per-instrument net liquidation value (looked up by the
// instrument's currency) broadcast across all dates.
func (p *Panel) NLVFrame() (*frame.Frame, error) {
	if p.nlv == nil {
		return nil, ErrMissingNLV
	}
	out := frame.New(p.dates, p.instruments)
	for i, id := range p.instruments {
		v := math.NaN()
		if sec := p.securities[id]; sec != nil {
			if nlv, ok := p.nlv[sec.Currency]; ok {
				v = nlv
			}
		}
		for t := 0; t < out.NumDates(); t++ {
			out.Set(t, i, v)
		}
	}
	return out, nil
}

// TrimBefore returns a panel whose time-varying fields drop all rows
// strictly before the given date. Reference attributes are unchanged.
func (p *Panel) TrimBefore(date time.Time) *Panel {
	var dates []time.Time
	trimmed := make(map[string]*frame.Frame, len(p.fields))
	for name, f := range p.fields {
		tf := f.TrimBefore(date)
		trimmed[name] = tf
		dates = tf.Dates()
	}
	if len(p.fields) == 0 {
		for _, d := range p.dates {
			if !d.Before(date) {
				dates = append(dates, d)
			}
		}
	}
	out := &Panel{
		dates:       dates,
		instruments: p.instruments,
		fieldNames:  p.fieldNames,
		fields:      trimmed,
		securities:  p.securities,
		nlv:         p.nlv,
	}
	return out
}

// PriceField resolves the field used for monetary calculations, trying
// Close, Open, Bid, Ask, High, Low in order.
func (p *Panel) PriceField() (string, error) {
	for _, candidate := range priceFieldCandidates {
		if p.HasField(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: need one of %s",
		ErrNoPriceField, strings.Join(priceFieldCandidates, ", "))
}

// Prices returns the frame of the resolved price field.
func (p *Panel) Prices() (*frame.Frame, error) {
	field, err := p.PriceField()
	if err != nil {
		return nil, err
	}
	return p.Field(field)
}

// ContractValues returns the monetary value of one unit per cell:
// price x multiplier / magnifier. Unset multipliers and magnifiers count
// as 1.
func (p *Panel) ContractValues() (*frame.Frame, error) {
	prices, err := p.Prices()
	if err != nil {
		return nil, err
	}
	out := frame.New(p.dates, p.instruments)
	for i, id := range p.instruments {
		multiplier, magnifier := 1.0, 1.0
		if sec := p.securities[id]; sec != nil {
			if sec.Multiplier > 0 {
				multiplier = sec.Multiplier
			}
			if sec.PriceMagnifier > 0 {
				magnifier = sec.PriceMagnifier
			}
		}
		for t := 0; t < out.NumDates(); t++ {
			out.Set(t, i, prices.At(t, i)/magnifier*multiplier)
		}
	}
	return out, nil
}
