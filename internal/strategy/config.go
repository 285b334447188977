package strategy

import (
	"errors"

	"github.com/w1r2p1/moonshot/internal/costs"
	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// Config errors.
var (
	ErrMissingCode          = errors.New("config requires a strategy code")
	ErrMissingDB            = errors.New("config requires a history db")
	ErrNegativeLookback     = errors.New("lookback window must be >= 0")
	ErrNegativeSlippageBPS  = errors.New("slippage bps must be >= 0")
	ErrAmbiguousCommissions = errors.New("configure either a single commission model or a per-group map, not both")
)

// Config carries everything the pipeline needs besides the strategy hooks
// themselves. Defaults are applied centrally via WithDefaults, never
// implicitly at call sites.
type Config struct {
	// Code is the strategy identifier and order grouping label.
	Code string

	// DB is the history database to pull market data from.
	DB string

	// DBFields are the time-varying fields to retrieve. Defaults to
	// Open, High, Low, Close, Volume.
	DBFields []string

	// DBTimeFilters are intraday time filters passed through to the
	// historical source.
	DBTimeFilters []string

	// Instrument selection.
	Instruments        []string
	Universes          []string
	ExcludeInstruments []string
	ExcludeUniverses   []string

	// ContFut is the continuous-futures option passed through to the
	// historical source.
	ContFut string

	// LookbackWindow is the number of extra trading periods of history
	// needed before the start date for rolling computations.
	LookbackWindow int

	// NLV maps currency to net liquidation value. Optional; required for
	// weight constraints and per-NLV commission minimums. May also be
	// supplied per run.
	NLV map[string]float64

	// Commission selects commission models; zero value means none.
	Commission costs.CommissionConfig

	// Slippage models are summed; a nonzero SlippageBPS replaces the sum.
	Slippage    []costs.SlippageModel
	SlippageBPS float64

	// Benchmark optionally names an instrument in the historical data to
	// use as the benchmark. It is surfaced through the raw panel fields.
	Benchmark string
}

// Validate checks the config for structural problems.
func (c *Config) Validate() error {
	if c.Code == "" {
		return ErrMissingCode
	}
	if c.DB == "" {
		return ErrMissingDB
	}
	if c.LookbackWindow < 0 {
		return ErrNegativeLookback
	}
	if c.SlippageBPS < 0 {
		return ErrNegativeSlippageBPS
	}
	if c.Commission.Single != nil && len(c.Commission.PerGroup) > 0 {
		return ErrAmbiguousCommissions
	}
	return nil
}

// WithDefaults returns a copy with unset fields filled in.
func (c Config) WithDefaults() Config {
	if len(c.DBFields) == 0 {
		c.DBFields = append([]string(nil), domain.DefaultHistoryFields...)
	}
	return c
}

// Selection returns the instrument selection for the reference source.
func (c *Config) Selection() storage.SecuritySelection {
	return storage.SecuritySelection{
		Instruments:        c.Instruments,
		Universes:          c.Universes,
		ExcludeInstruments: c.ExcludeInstruments,
		ExcludeUniverses:   c.ExcludeUniverses,
	}
}
