package store

import (
	"errors"
	"sync"

	"github.com/fairgov/governor/pkg/domain"
)

// ErrNotFound is returned when a requested policy document is not in the
// current snapshot.
var ErrNotFound = errors.New("policy document not found")

// DocumentStore exposes read access to the controller's current policy set.
type DocumentStore interface {
	Get(identity domain.PolicyIdentity) (domain.PolicyDocument, error)
	List() []domain.PolicyDocument
	Replace(documents []domain.PolicyDocument)
}

// MemoryStore holds the most recently loaded document set. Replace swaps the
// whole snapshot atomically, so readers never observe a half-applied reload.
type MemoryStore struct {
	mu        sync.RWMutex
	documents []domain.PolicyDocument
	byID      map[domain.PolicyIdentity]int
}

// NewMemoryStore creates an empty document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[domain.PolicyIdentity]int)}
}

// Get retrieves a document by identity.
func (s *MemoryStore) Get(identity domain.PolicyIdentity) (domain.PolicyDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[identity]
	if !ok {
		return domain.PolicyDocument{}, ErrNotFound
	}
	return s.documents[i], nil
}

// List returns the current snapshot in load order. The returned slice is a
// copy; callers may not mutate the store through it.
func (s *MemoryStore) List() []domain.PolicyDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PolicyDocument(nil), s.documents...)
}

// Replace installs a freshly loaded document set. Later documents win when
// two share an identity, matching lexical file order.
func (s *MemoryStore) Replace(documents []domain.PolicyDocument) {
	byID := make(map[domain.PolicyIdentity]int, len(documents))
	for i, doc := range documents {
		byID[doc.Identity()] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append([]domain.PolicyDocument(nil), documents...)
	s.byID = byID
}

// Len reports the number of documents in the snapshot.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}
