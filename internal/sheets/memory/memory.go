// Package memory holds an in-memory stand-in for the spreadsheet backup,
// used in tests and when no Google credentials are configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"presupuesto/internal/core"
	ports "presupuesto/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]core.Transaction // by transaction id
	next int
}

var (
	_ ports.TransactionWriter  = (*Store)(nil)
	_ ports.TransactionDeleter = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: make(map[string]core.Transaction)}
}

func (s *Store) Append(ctx context.Context, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t.ID] = t
	s.next++
	return fmt.Sprintf("memory!A%d", s.next), nil
}

func (s *Store) Delete(ctx context.Context, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, txID)
	return nil
}

// Get returns the backed-up transaction, for assertions in tests.
func (s *Store) Get(txID string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[txID]
	return t, ok
}

// Len reports how many rows are currently backed up.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
