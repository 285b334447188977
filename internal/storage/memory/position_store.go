package memory

import (
	"context"
	"sync"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

type positionKey struct {
	orderRef     string
	account      string
	instrumentID string
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[positionKey]int64
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		positions: make(map[positionKey]int64),
	}
}

// SetPosition records or replaces a held quantity. A zero quantity
// removes the record.
func (s *PositionStore) SetPosition(_ context.Context, p *domain.HeldPosition) error {
	if p == nil || p.InstrumentID == "" || p.Account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey{orderRef: p.OrderRef, account: p.Account, instrumentID: p.InstrumentID}
	if p.Quantity == 0 {
		delete(s.positions, key)
		return nil
	}
	s.positions[key] = p.Quantity
	return nil
}

// GetPositions returns held quantities for the grouping label across the
// given accounts and instruments. Missing records are simply absent.
func (s *PositionStore) GetPositions(_ context.Context, orderRef string, accounts, instruments []string) ([]*domain.HeldPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.HeldPosition
	for _, instrumentID := range instruments {
		for _, account := range accounts {
			key := positionKey{orderRef: orderRef, account: account, instrumentID: instrumentID}
			quantity, exists := s.positions[key]
			if !exists {
				continue
			}
			out = append(out, &domain.HeldPosition{
				InstrumentID: instrumentID,
				Account:      account,
				OrderRef:     orderRef,
				Quantity:     quantity,
			})
		}
	}
	return out, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
