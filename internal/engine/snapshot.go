package engine

import (
	"sync"

	"github.com/openwelfare/ubk/internal/domain"
)

// ReferenceStore holds the duplicate-detection reference snapshot. A
// snapshot is published whole and then read-only: Replace completes before
// any evaluation observes the new set, and evaluations iterate over the
// slice they captured even if a newer snapshot lands mid-batch. There is
// deliberately no append operation.
type ReferenceStore struct {
	mu   sync.RWMutex
	apps []*domain.Application
}

// NewReferenceStore creates an empty reference store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{}
}

// Replace publishes a new snapshot.
func (s *ReferenceStore) Replace(apps []*domain.Application) {
	snapshot := make([]*domain.Application, len(apps))
	copy(snapshot, apps)

	s.mu.Lock()
	s.apps = snapshot
	s.mu.Unlock()
}

// Snapshot returns the current reference set. Callers must treat the
// returned slice as read-only.
func (s *ReferenceStore) Snapshot() []*domain.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apps
}

// Len returns the size of the current snapshot.
func (s *ReferenceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apps)
}
