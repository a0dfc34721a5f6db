package store

import (
	"strings"
	"sync"

	"roomkey/internal/crypto"
	"roomkey/internal/domain"
)

// SessionStore is an in-memory bootstrap store scoped to one session/tab.
// One instance per session; never shared across unrelated rooms.
type SessionStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{data: make(map[string][]byte)}
}

// Get returns a copy of the value for key.
func (s *SessionStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Set stores a copy of value under key, replacing any previous value.
func (s *SessionStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.data[key]; ok {
		crypto.Wipe(old)
	}
	s.data[key] = append([]byte(nil), value...)
}

// Delete wipes and removes the value under key.
func (s *SessionStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.data[key]; ok {
		crypto.Wipe(old)
		delete(s.data, key)
	}
}

// Clear wipes and removes every key under prefix, including partial or
// half-initialized state. An empty prefix clears the whole store.
func (s *SessionStore) Clear(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			crypto.Wipe(v)
			delete(s.data, k)
		}
	}
}

// Len reports the number of stored keys. Handy for teardown checks.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Compile-time assertion that SessionStore implements domain.BootstrapStore.
var _ domain.BootstrapStore = (*SessionStore)(nil)
