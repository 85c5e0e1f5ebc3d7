package database

import (
	"context"
	"database/sql"
	"time"

	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database/repository"
)

// Store is the read side consumed by the preload cache.
type Store struct {
	db           *sql.DB
	accounts     *repository.AccountRepo
	categories   *repository.CategoryRepo
	transactions *repository.TransactionRepo
}

// NewStore wraps db. cipher may be nil when no fields are encrypted.
func NewStore(db *sql.DB, cipher repository.FieldCipher) *Store {
	return &Store{
		db:           db,
		accounts:     repository.NewAccountRepo(db, cipher),
		categories:   repository.NewCategoryRepo(db),
		transactions: repository.NewTransactionRepo(db, cipher),
	}
}

func (s *Store) Categories(ctx context.Context) ([]repository.Category, error) {
	return s.categories.List(ctx)
}

func (s *Store) Accounts(ctx context.Context) ([]repository.Account, error) {
	return s.accounts.List(ctx)
}

func (s *Store) TransactionsBetween(ctx context.Context, start, end time.Time) ([]repository.Transaction, error) {
	return s.transactions.Between(ctx, start, end)
}

// warmupQueries touch each table and index so sqlite pulls their pages into its cache.
var warmupQueries = []string{
	`SELECT COUNT(*) FROM categories`,
	`SELECT COUNT(*) FROM accounts`,
	`SELECT COUNT(*) FROM transactions`,
	`SELECT COUNT(*) FROM transactions INDEXED BY idx_transactions_date WHERE date >= '0'`,
}

// WarmUp runs a few cheap read-only queries.
func (s *Store) WarmUp(ctx context.Context) error {
	for _, q := range warmupQueries {
		var n int
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return zerr.With(zerr.Wrap(err, "warm-up query"), "query", q)
		}
	}
	return nil
}
