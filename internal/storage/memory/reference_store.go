package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// ReferenceDataStore is an in-memory implementation of
// storage.ReferenceDataStore.
type ReferenceDataStore struct {
	mu         sync.RWMutex
	securities map[string]*domain.SecurityMaster // keyed by instrument id
	universes  map[string][]string               // universe name -> instrument ids
}

// NewReferenceDataStore creates a new in-memory reference data store.
func NewReferenceDataStore() *ReferenceDataStore {
	return &ReferenceDataStore{
		securities: make(map[string]*domain.SecurityMaster),
		universes:  make(map[string][]string),
	}
}

// Insert adds a security. Returns ErrDuplicateKey if the instrument id
// already exists.
func (s *ReferenceDataStore) Insert(_ context.Context, sec *domain.SecurityMaster) error {
	if sec == nil || sec.InstrumentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.securities[sec.InstrumentID]; exists {
		return storage.ErrDuplicateKey
	}
	secCopy := *sec
	s.securities[sec.InstrumentID] = &secCopy
	return nil
}

// AddToUniverse registers instrument ids under a universe name.
func (s *ReferenceDataStore) AddToUniverse(_ context.Context, universe string, instrumentIDs ...string) error {
	if universe == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.universes[universe] = append(s.universes[universe], instrumentIDs...)
	return nil
}

// GetSecurities returns one row per instrument matching the selection,
// ordered by instrument id ASC. Ids with no master record are skipped.
func (s *ReferenceDataStore) GetSecurities(_ context.Context, sel storage.SecuritySelection) ([]*domain.SecurityMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	included := make(map[string]struct{})
	for _, id := range sel.Instruments {
		included[id] = struct{}{}
	}
	for _, universe := range sel.Universes {
		for _, id := range s.universes[universe] {
			included[id] = struct{}{}
		}
	}
	for _, id := range sel.ExcludeInstruments {
		delete(included, id)
	}
	for _, universe := range sel.ExcludeUniverses {
		for _, id := range s.universes[universe] {
			delete(included, id)
		}
	}

	ids := make([]string, 0, len(included))
	for id := range included {
		if _, exists := s.securities[id]; exists {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*domain.SecurityMaster, 0, len(ids))
	for _, id := range ids {
		secCopy := *s.securities[id]
		out = append(out, &secCopy)
	}
	return out, nil
}

var _ storage.ReferenceDataStore = (*ReferenceDataStore)(nil)
