package credentials

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// InMemoryStore is a thread-safe, process-local Store.
type InMemoryStore struct {
	mu     sync.RWMutex
	record *Record
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory credential store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Save replaces the stored record
func (s *InMemoryStore) Save(pair Pair, identity *Identity) {
	if !pair.Complete() {
		log.Warn().Msg("credentials: refusing to save an incomplete credential pair")
		return
	}

	// Copy the identity to avoid external modifications
	record := &Record{Pair: pair, Identity: cloneIdentity(identity), SavedAt: NowTimeFunc()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = record
}

// Load returns a copy of the stored record
func (s *InMemoryStore) Load() (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.record == nil {
		return Record{}, false
	}
	return Record{Pair: s.record.Pair, Identity: cloneIdentity(s.record.Identity), SavedAt: s.record.SavedAt}, true
}

// Clear removes the stored record
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
}

// CompareAndSave replaces the record if it still holds the expected refresh credential
func (s *InMemoryStore) CompareAndSave(expected string, pair Pair, identity *Identity) bool {
	if expected == "" || !pair.Complete() {
		return false
	}
	record := &Record{Pair: pair, Identity: cloneIdentity(identity), SavedAt: NowTimeFunc()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if refreshOf(s.record) != expected {
		return false
	}
	s.record = record
	return true
}

// CompareAndClear removes the record if it still holds the expected refresh credential
func (s *InMemoryStore) CompareAndClear(expected string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refreshOf(s.record) != expected {
		return false
	}
	s.record = nil
	return true
}
