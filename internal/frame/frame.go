// Package frame provides the aligned Date x Instrument matrix used by every
// pipeline stage. Missing values are NaN; all derived frames share the axes
// of the frame they were derived from.
package frame

import (
	"errors"
	"math"
	"time"
)

// Frame errors.
var (
	ErrShapeMismatch = errors.New("frames do not share the same axes")
	ErrUnknownDate   = errors.New("date not in frame index")
)

// Frame is a Date x Instrument matrix of float64 values. Dates are
// ascending and instruments keep a stable order; cells with no observation
// hold NaN.
type Frame struct {
	dates       []time.Time
	instruments []string
	values      [][]float64 // [dateIdx][instrumentIdx]
	instIdx     map[string]int
}

// New creates a frame with the given axes, filled with NaN.
func New(dates []time.Time, instruments []string) *Frame {
	return NewFilled(dates, instruments, math.NaN())
}

// NewFilled creates a frame with the given axes, every cell set to fill.
func NewFilled(dates []time.Time, instruments []string, fill float64) *Frame {
	f := &Frame{
		dates:       append([]time.Time(nil), dates...),
		instruments: append([]string(nil), instruments...),
		values:      make([][]float64, len(dates)),
		instIdx:     make(map[string]int, len(instruments)),
	}
	for i, id := range f.instruments {
		f.instIdx[id] = i
	}
	for t := range f.values {
		row := make([]float64, len(instruments))
		for i := range row {
			row[i] = fill
		}
		f.values[t] = row
	}
	return f
}

// NumDates returns the length of the date axis.
func (f *Frame) NumDates() int { return len(f.dates) }

// NumInstruments returns the length of the instrument axis.
func (f *Frame) NumInstruments() int { return len(f.instruments) }

// Dates returns the date axis. The slice must not be mutated.
func (f *Frame) Dates() []time.Time { return f.dates }

// Instruments returns the instrument axis. The slice must not be mutated.
func (f *Frame) Instruments() []string { return f.instruments }

// At returns the value at date index t and instrument index i.
func (f *Frame) At(t, i int) float64 { return f.values[t][i] }

// Set assigns the value at date index t and instrument index i.
func (f *Frame) Set(t, i int, v float64) { f.values[t][i] = v }

// InstrumentIndex returns the column index for an instrument id, or -1.
func (f *Frame) InstrumentIndex(id string) int {
	if i, ok := f.instIdx[id]; ok {
		return i
	}
	return -1
}

// DateIndex returns the row index of the given date, or -1.
func (f *Frame) DateIndex(date time.Time) int {
	for t, d := range f.dates {
		if d.Equal(date) {
			return t
		}
	}
	return -1
}

// LastDate returns the most recent date in the index. The frame must be
// non-empty.
func (f *Frame) LastDate() time.Time {
	return f.dates[len(f.dates)-1]
}

// Clone returns a deep copy sharing no state with the receiver.
func (f *Frame) Clone() *Frame {
	out := New(f.dates, f.instruments)
	for t := range f.values {
		copy(out.values[t], f.values[t])
	}
	return out
}

// SameAxes reports whether two frames share identical date and instrument
// axes, in order.
func (f *Frame) SameAxes(other *Frame) bool {
	if len(f.dates) != len(other.dates) || len(f.instruments) != len(other.instruments) {
		return false
	}
	for t := range f.dates {
		if !f.dates[t].Equal(other.dates[t]) {
			return false
		}
	}
	for i := range f.instruments {
		if f.instruments[i] != other.instruments[i] {
			return false
		}
	}
	return true
}

// Shift lags every column by n periods. The first n rows become NaN. This
// is the primitive behind the no-lookahead position invariant: a shifted
// frame at date t exposes the value decided at t-n.
func (f *Frame) Shift(n int) *Frame {
	out := New(f.dates, f.instruments)
	for t := n; t < len(f.values); t++ {
		copy(out.values[t], f.values[t-n])
	}
	return out
}

// Diff returns the first difference along the date axis. The first row is
// NaN, as is any cell where either operand is missing.
func (f *Frame) Diff() *Frame {
	out := New(f.dates, f.instruments)
	for t := 1; t < len(f.values); t++ {
		for i := range f.instruments {
			out.values[t][i] = f.values[t][i] - f.values[t-1][i]
		}
	}
	return out
}

// PctChange returns the relative change along the date axis:
// (x[t] - x[t-1]) / x[t-1].
func (f *Frame) PctChange() *Frame {
	out := New(f.dates, f.instruments)
	for t := 1; t < len(f.values); t++ {
		for i := range f.instruments {
			prev := f.values[t-1][i]
			out.values[t][i] = (f.values[t][i] - prev) / prev
		}
	}
	return out
}

// ForwardFill replaces each NaN with the most recent prior observation in
// the same column. Leading NaNs are preserved.
func (f *Frame) ForwardFill() *Frame {
	out := f.Clone()
	for i := range f.instruments {
		last := math.NaN()
		for t := range out.values {
			if math.IsNaN(out.values[t][i]) {
				out.values[t][i] = last
			} else {
				last = out.values[t][i]
			}
		}
	}
	return out
}

// FillNA replaces every NaN cell with v.
func (f *Frame) FillNA(v float64) *Frame {
	out := f.Clone()
	for t := range out.values {
		for i := range out.values[t] {
			if math.IsNaN(out.values[t][i]) {
				out.values[t][i] = v
			}
		}
	}
	return out
}

// Apply returns a new frame with fn applied to every cell.
func (f *Frame) Apply(fn func(float64) float64) *Frame {
	out := New(f.dates, f.instruments)
	for t := range f.values {
		for i := range f.values[t] {
			out.values[t][i] = fn(f.values[t][i])
		}
	}
	return out
}

// Combine merges two frames cell-wise through fn. The frames must share
// identical axes.
func (f *Frame) Combine(other *Frame, fn func(a, b float64) float64) (*Frame, error) {
	if !f.SameAxes(other) {
		return nil, ErrShapeMismatch
	}
	out := New(f.dates, f.instruments)
	for t := range f.values {
		for i := range f.values[t] {
			out.values[t][i] = fn(f.values[t][i], other.values[t][i])
		}
	}
	return out, nil
}

// Row returns a copy of the values at date index t.
func (f *Frame) Row(t int) []float64 {
	return append([]float64(nil), f.values[t]...)
}

// RowOn returns a copy of the values at the given date.
func (f *Frame) RowOn(date time.Time) ([]float64, error) {
	t := f.DateIndex(date)
	if t < 0 {
		return nil, ErrUnknownDate
	}
	return f.Row(t), nil
}

// TrimBefore drops all rows strictly before the given date.
func (f *Frame) TrimBefore(date time.Time) *Frame {
	start := len(f.dates)
	for t, d := range f.dates {
		if !d.Before(date) {
			start = t
			break
		}
	}
	out := New(f.dates[start:], f.instruments)
	for t := start; t < len(f.values); t++ {
		copy(out.values[t-start], f.values[t])
	}
	return out
}
