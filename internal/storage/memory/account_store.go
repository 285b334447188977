package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	balances map[string]*domain.AccountBalance // keyed by account id
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		balances: make(map[string]*domain.AccountBalance),
	}
}

// SetBalance records or replaces an account's balance.
func (s *AccountStore) SetBalance(_ context.Context, b *domain.AccountBalance) error {
	if b == nil || b.Account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balanceCopy := *b
	s.balances[b.Account] = &balanceCopy
	return nil
}

// GetBalances returns the balance per requested account. Returns
// ErrNotFound if any requested account is unknown.
func (s *AccountStore) GetBalances(_ context.Context, accounts []string) ([]*domain.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		b, exists := s.balances[account]
		if !exists {
			return nil, fmt.Errorf("%w: account %s", storage.ErrNotFound, account)
		}
		balanceCopy := *b
		out = append(out, &balanceCopy)
	}
	return out, nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
