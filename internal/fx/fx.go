// Package fx resolves the currency pairs and exchange rates needed to
// convert account capital into instrument-quantity space.
package fx

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// QuoteCurrency returns the currency an instrument is quoted against for
// conversion purposes. Foreign-exchange instruments trade in units of
// their symbol, not their settlement currency: 100 EUR.USD is 100 EUR.
func QuoteCurrency(sec *domain.SecurityMaster) string {
	if sec.SecType == domain.SecTypeCash {
		return sec.Symbol
	}
	return sec.Currency
}

type pair struct {
	base  string
	quote string
}

// Rates builds the per-(instrument, account) exchange-rate matrix as
// rate[instrumentID][account]. Each cell converts the account's base
// currency into the instrument's quote currency. A base equal to its quote
// is 1 regardless of any table entry; a pair absent from the rate source
// is NaN and propagates as a missing value.
func Rates(ctx context.Context, store storage.ExchangeRateStore, balances []*domain.AccountBalance, quoteByInstrument map[string]string) (map[string]map[string]float64, error) {
	bases := distinct(func(yield func(string)) {
		for _, b := range balances {
			yield(b.Currency)
		}
	})
	quotes := distinct(func(yield func(string)) {
		for _, q := range quoteByInstrument {
			yield(q)
		}
	})

	listed, err := store.GetRates(ctx, bases, quotes)
	if err != nil {
		return nil, fmt.Errorf("get exchange rates: %w", err)
	}

	table := make(map[pair]float64, len(listed))
	for _, r := range listed {
		table[pair{base: r.BaseCurrency, quote: r.QuoteCurrency}] = r.Rate
	}

	out := make(map[string]map[string]float64, len(quoteByInstrument))
	for instrumentID, quote := range quoteByInstrument {
		row := make(map[string]float64, len(balances))
		for _, balance := range balances {
			switch {
			case balance.Currency == quote:
				row[balance.Account] = 1
			default:
				rate, ok := table[pair{base: balance.Currency, quote: quote}]
				if !ok {
					rate = math.NaN()
				}
				row[balance.Account] = rate
			}
		}
		out[instrumentID] = row
	}

	return out, nil
}

// distinct collects unique values from a generator and sorts them.
func distinct(gen func(yield func(string))) []string {
	seen := make(map[string]struct{})
	gen(func(v string) { seen[v] = struct{}{} })
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
