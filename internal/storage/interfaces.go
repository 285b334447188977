package storage

import (
	"context"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
)

// SecuritySelection narrows an instrument universe. Explicit ids and named
// universes are unioned; exclusions are removed from the result.
type SecuritySelection struct {
	Instruments        []string
	Universes          []string
	ExcludeInstruments []string
	ExcludeUniverses   []string
}

// HistoricalQuery describes one request against a history database.
type HistoricalQuery struct {
	DB          string    // history database identifier
	Start       time.Time // zero means all available history
	End         time.Time // zero means up to the latest bar
	Instruments []string  // explicit instrument ids, already resolved
	Fields      []string  // time-varying fields to retrieve
	TimeFilters []string  // intraday time filters, passed through
	ContFut     string    // continuous-futures option, passed through
}

// HistoricalDataStore retrieves time-varying market data in long form.
type HistoricalDataStore interface {
	// GetPrices returns all observations matching the query, ordered by
	// date ASC, instrument ASC, field ASC.
	GetPrices(ctx context.Context, q HistoricalQuery) ([]*domain.PricePoint, error)
}

// ReferenceDataStore retrieves static per-instrument attributes.
type ReferenceDataStore interface {
	// GetSecurities returns one row per instrument matching the selection,
	// ordered by instrument id ASC.
	GetSecurities(ctx context.Context, sel SecuritySelection) ([]*domain.SecurityMaster, error)
}

// AccountStore retrieves account balances.
type AccountStore interface {
	// GetBalances returns the latest net liquidation value and base
	// currency per requested account. Returns ErrNotFound if any requested
	// account is unknown.
	GetBalances(ctx context.Context, accounts []string) ([]*domain.AccountBalance, error)
}

// ExchangeRateStore retrieves currency exchange rates.
type ExchangeRateStore interface {
	// GetRates returns the latest rate for every (base, quote) combination
	// it knows among the requested currencies. Absent pairs are simply not
	// returned; callers treat them as missing.
	GetRates(ctx context.Context, baseCurrencies, quoteCurrencies []string) ([]*domain.ExchangeRate, error)
}

// PositionStore retrieves currently held positions.
type PositionStore interface {
	// GetPositions returns held quantities for the grouping label across
	// the given accounts and instruments. An empty result is valid and
	// means nothing is held.
	GetPositions(ctx context.Context, orderRef string, accounts, instruments []string) ([]*domain.HeldPosition, error)
}
