package inmem

import (
	"context"
	"sync"

	"github.com/trezcool/masomopay/core/payment"
)

type namespaceTable map[payment.TransactionCode]payment.LedgerEntry

// Store keeps ledger entries in memory; they do not survive a restart.
type Store struct {
	mutex  sync.RWMutex
	tables map[string]namespaceTable
}

var _ payment.Store = (*Store)(nil) // interface compliance check

func NewStore() *Store {
	return &Store{tables: make(map[string]namespaceTable)}
}

func (s *Store) GetEntry(_ context.Context, namespace string, code payment.TransactionCode) (payment.LedgerEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if entry, ok := s.tables[namespace][code]; ok {
		return entry, nil
	}
	return payment.LedgerEntry{}, payment.ErrNotFound
}

func (s *Store) InsertEntry(_ context.Context, namespace string, entry payment.LedgerEntry) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	table, ok := s.tables[namespace]
	if !ok {
		table = make(namespaceTable)
		s.tables[namespace] = table
	}
	if _, exists := table[entry.TransactionCode]; exists {
		return false, nil
	}
	table[entry.TransactionCode] = entry
	return true, nil
}

func (s *Store) DeleteNamespace(_ context.Context, namespace string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.tables, namespace)
	return nil
}

// Len returns the number of entries of namespace.
func (s *Store) Len(namespace string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.tables[namespace])
}
