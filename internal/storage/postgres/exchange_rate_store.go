package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// ExchangeRateStore implements storage.ExchangeRateStore using
// PostgreSQL. Rates are append-only snapshots; reads take the latest per
// currency pair.
type ExchangeRateStore struct {
	pool *Pool
}

// NewExchangeRateStore creates a new ExchangeRateStore.
func NewExchangeRateStore(pool *Pool) *ExchangeRateStore {
	return &ExchangeRateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExchangeRateStore = (*ExchangeRateStore)(nil)

// InsertRate records a rate snapshot at the given time.
func (s *ExchangeRateStore) InsertRate(ctx context.Context, r *domain.ExchangeRate, asOf time.Time) error {
	query := `
		INSERT INTO exchange_rates (base_currency, quote_currency, rate, as_of)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, r.BaseCurrency, r.QuoteCurrency, r.Rate, asOf)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert exchange rate: %w", err)
	}
	return nil
}

// GetRates returns the latest rate for every known (base, quote) pair
// among the requested currencies. Absent pairs are not returned.
func (s *ExchangeRateStore) GetRates(ctx context.Context, baseCurrencies, quoteCurrencies []string) ([]*domain.ExchangeRate, error) {
	query := `
		SELECT DISTINCT ON (base_currency, quote_currency)
		       base_currency, quote_currency, rate
		FROM exchange_rates
		WHERE base_currency = ANY($1) AND quote_currency = ANY($2)
		ORDER BY base_currency, quote_currency, as_of DESC
	`

	rows, err := s.pool.Query(ctx, query, emptyIfNil(baseCurrencies), emptyIfNil(quoteCurrencies))
	if err != nil {
		return nil, fmt.Errorf("get rates: %w", err)
	}
	defer rows.Close()

	var out []*domain.ExchangeRate
	for rows.Next() {
		var r domain.ExchangeRate
		if err := rows.Scan(&r.BaseCurrency, &r.QuoteCurrency, &r.Rate); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates: %w", err)
	}
	return out, nil
}
