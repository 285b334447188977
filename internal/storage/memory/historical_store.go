// Package memory provides in-memory storage implementations, used for
// tests and for running without a database backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// HistoricalDataStore is an in-memory implementation of
// storage.HistoricalDataStore. Points are held per history database id.
type HistoricalDataStore struct {
	mu     sync.RWMutex
	points map[string][]*domain.PricePoint // keyed by db id
}

// NewHistoricalDataStore creates a new in-memory historical data store.
func NewHistoricalDataStore() *HistoricalDataStore {
	return &HistoricalDataStore{
		points: make(map[string][]*domain.PricePoint),
	}
}

// Insert adds observations to the given history database.
func (s *HistoricalDataStore) Insert(_ context.Context, db string, points ...*domain.PricePoint) error {
	if db == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.InstrumentID == "" || p.Field == "" {
			return storage.ErrInvalidInput
		}
		pointCopy := *p
		s.points[db] = append(s.points[db], &pointCopy)
	}
	return nil
}

// GetPrices returns all observations matching the query, ordered by date
// ASC, instrument ASC, field ASC.
func (s *HistoricalDataStore) GetPrices(_ context.Context, q storage.HistoricalQuery) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instruments := toSet(q.Instruments)
	fields := toSet(q.Fields)

	var out []*domain.PricePoint
	for _, p := range s.points[q.DB] {
		if len(instruments) > 0 {
			if _, ok := instruments[p.InstrumentID]; !ok {
				continue
			}
		}
		if len(fields) > 0 {
			if _, ok := fields[p.Field]; !ok {
				continue
			}
		}
		if !q.Start.IsZero() && p.Date.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && p.Date.After(q.End) {
			continue
		}
		pointCopy := *p
		out = append(out, &pointCopy)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.InstrumentID != b.InstrumentID {
			return a.InstrumentID < b.InstrumentID
		}
		return a.Field < b.Field
	})
	return out, nil
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

var _ storage.HistoricalDataStore = (*HistoricalDataStore)(nil)
