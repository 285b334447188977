package domain

// AccountBalance holds the capital base of one account.
type AccountBalance struct {
	Account        string  // account identifier
	NetLiquidation float64 // net liquidation value in the account's base currency
	Currency       string  // base currency
}

// ExchangeRate is one base/quote currency pair rate.
type ExchangeRate struct {
	BaseCurrency  string
	QuoteCurrency string
	Rate          float64
}

// HeldPosition is a currently held quantity reported by the position
// source for one (instrument, account) under one grouping label.
type HeldPosition struct {
	InstrumentID string
	Account      string
	OrderRef     string // grouping label the position is attributed to
	Quantity     int64  // signed share/contract count
}
