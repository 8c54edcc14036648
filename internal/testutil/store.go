package testutil

import (
	"context"
	"sync"

	"doclife/internal/doc"
)

// FaultyStore wraps a doc.Store and fails the next UpdateDocument.
type FaultyStore struct {
	doc.Store

	mu             sync.Mutex
	failNextUpdate error
}

// NewFaultyStore wraps s.
func NewFaultyStore(s doc.Store) *FaultyStore {
	return &FaultyStore{Store: s}
}

// FailNextUpdate makes the next UpdateDocument return err without writing.
func (s *FaultyStore) FailNextUpdate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextUpdate = err
}

func (s *FaultyStore) UpdateDocument(ctx context.Context, d *doc.Document, entries ...*doc.AuditEntry) error {
	s.mu.Lock()
	err := s.failNextUpdate
	s.failNextUpdate = nil
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.UpdateDocument(ctx, d, entries...)
}

var _ doc.Store = (*FaultyStore)(nil)
