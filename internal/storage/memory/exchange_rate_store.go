package memory

import (
	"context"
	"sync"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// ExchangeRateStore is an in-memory implementation of
// storage.ExchangeRateStore.
type ExchangeRateStore struct {
	mu    sync.RWMutex
	rates map[string]map[string]float64 // base -> quote -> rate
}

// NewExchangeRateStore creates a new in-memory exchange rate store.
func NewExchangeRateStore() *ExchangeRateStore {
	return &ExchangeRateStore{
		rates: make(map[string]map[string]float64),
	}
}

// SetRate records or replaces one base/quote rate.
func (s *ExchangeRateStore) SetRate(_ context.Context, base, quote string, rate float64) error {
	if base == "" || quote == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rates[base] == nil {
		s.rates[base] = make(map[string]float64)
	}
	s.rates[base][quote] = rate
	return nil
}

// GetRates returns every known rate among the requested base and quote
// currencies. Absent pairs are not returned.
func (s *ExchangeRateStore) GetRates(_ context.Context, baseCurrencies, quoteCurrencies []string) ([]*domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ExchangeRate
	for _, base := range baseCurrencies {
		quotes, exists := s.rates[base]
		if !exists {
			continue
		}
		for _, quote := range quoteCurrencies {
			rate, exists := quotes[quote]
			if !exists {
				continue
			}
			out = append(out, &domain.ExchangeRate{
				BaseCurrency:  base,
				QuoteCurrency: quote,
				Rate:          rate,
			})
		}
	}
	return out, nil
}

var _ storage.ExchangeRateStore = (*ExchangeRateStore)(nil)
