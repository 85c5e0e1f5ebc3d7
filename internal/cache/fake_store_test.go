package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jask/pocketbook/internal/database/repository"
)

type fakeStore struct {
	mu           sync.Mutex
	categories   []repository.Category
	accounts     []repository.Account
	transactions []repository.Transaction
	catErr       error
	acctErr      error
	txErr        error
	warmErr      error
	// txGate, when set, holds TransactionsBetween until closed.
	txGate chan struct{}
	// gateIgnoresCancel keeps TransactionsBetween waiting on txGate even
	// after its context ends.
	gateIgnoresCancel bool

	categoryCalls atomic.Int32
	warmUps       atomic.Int32
	lastStart     time.Time
	lastEnd       time.Time
}

func (s *fakeStore) Categories(context.Context) ([]repository.Category, error) {
	s.categoryCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories, s.catErr
}

func (s *fakeStore) Accounts(context.Context) ([]repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts, s.acctErr
}

func (s *fakeStore) TransactionsBetween(ctx context.Context, start, end time.Time) ([]repository.Transaction, error) {
	s.mu.Lock()
	gate := s.txGate
	ignoreCancel := s.gateIgnoresCancel
	s.lastStart, s.lastEnd = start, end
	s.mu.Unlock()

	if gate != nil && ignoreCancel {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions, s.txErr
}

func (s *fakeStore) WarmUp(context.Context) error {
	s.warmUps.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warmErr
}

func (s *fakeStore) set(fn func(s *fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func sampleStore() *fakeStore {
	return &fakeStore{
		categories: []repository.Category{{ID: "c1", Name: "Food"}, {ID: "c2", Name: "Transport"}},
		accounts:   []repository.Account{{ID: "a1", Name: "Everyday", BalanceCents: 1000}},
		transactions: []repository.Transaction{
			{ID: "t1", AccountID: "a1", AmountCents: -450, RawDescription: "coffee"},
		},
	}
}
