package domain

import "time"

// PricePoint is one observation of one time-varying field for one
// instrument. Historical data sources return price data in this long form;
// the panel loader pivots it into aligned Date x Instrument frames.
type PricePoint struct {
	InstrumentID string
	Date         time.Time
	Field        string // Open, High, Low, Close, Volume, Bid, Ask, ...
	Value        float64
}
