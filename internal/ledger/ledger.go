// Package ledger implements the write-side bookkeeping operations: balance
// adjustments, transfers between accounts, category lookup and monthly
// budgets. Every write to accounts, categories or transactions invalidates
// the preload cache.
package ledger

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/zerr"

	"github.com/jask/pocketbook/internal/database"
	"github.com/jask/pocketbook/internal/database/repository"
	"github.com/jask/pocketbook/internal/logger"
)

var (
	ErrInvalidAmount     = zerr.New("invalid amount")
	ErrNoChange          = zerr.New("balance unchanged")
	ErrAccountNotFound   = zerr.New("account not found")
	ErrSameAccount       = zerr.New("cannot transfer to the same account")
	ErrInsufficientFunds = zerr.New("insufficient funds")
	ErrCategoryNotFound  = zerr.New("category not found")
	ErrTxnNotFound       = zerr.New("transaction not found")
	ErrInvalidMonth      = zerr.New("invalid month")
	ErrBudgetNotFound    = zerr.New("budget not found")
)

// Invalidator is the part of the cache manager the ledger needs.
type Invalidator interface {
	InvalidateCache()
}

// Service performs ledger writes.
type Service struct {
	DB           *sql.DB
	Accounts     *repository.AccountRepo
	Categories   *repository.CategoryRepo
	Transactions *repository.TransactionRepo
	Budgets      *repository.BudgetRepo
	Cache        Invalidator
	Log          *slog.Logger
	Now          func() time.Time
}

// New wires a Service over db. cache may be nil.
func New(db *sql.DB, cipher repository.FieldCipher, cache Invalidator, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		DB:           db,
		Accounts:     repository.NewAccountRepo(db, cipher),
		Categories:   repository.NewCategoryRepo(db),
		Transactions: repository.NewTransactionRepo(db, cipher),
		Budgets:      repository.NewBudgetRepo(db),
		Cache:        cache,
		Log:          log.With("component", "ledger"),
		Now:          database.Now,
	}
}

// AdjustBalance sets an account's balance to target by recording an
// adjustment transaction for the difference.
func (s *Service) AdjustBalance(ctx context.Context, accountID string, target int64, note string) (repository.Transaction, error) {
	var out repository.Transaction
	err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		accounts := s.Accounts.WithTx(tx)
		acct, err := accounts.Get(ctx, accountID)
		if err != nil {
			return zerr.Wrap(err, "load account")
		}
		if acct == nil {
			return zerr.With(zerr.Wrap(ErrAccountNotFound, "adjust balance"), "account", accountID)
		}
		delta := target - acct.BalanceCents
		if delta == 0 {
			return zerr.With(zerr.Wrap(ErrNoChange, "adjust balance"), "account", acct.Name)
		}
		out = repository.Transaction{
			ID:             uuid.NewString(),
			AccountID:      acct.ID,
			Date:           s.Now(),
			AmountCents:    delta,
			RawDescription: "Balance adjustment",
			Kind:           repository.KindAdjustment,
			Note:           note,
		}
		if err := s.Transactions.WithTx(tx).Insert(ctx, out); err != nil {
			return zerr.Wrap(err, "insert adjustment")
		}
		return accounts.AddBalance(ctx, acct.ID, delta)
	})
	if err != nil {
		return repository.Transaction{}, err
	}
	s.Log.Info("balance adjusted", "account", accountID, "delta", FormatCents(out.AmountCents))
	s.invalidate()
	return out, nil
}

// Transfer moves amount cents between two accounts as a pair of linked
// transactions sharing a transfer ID. Only credit accounts may go negative.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount int64, note string) (string, error) {
	if amount <= 0 {
		return "", zerr.With(zerr.Wrap(ErrInvalidAmount, "transfer amount must be positive"), "amount", amount)
	}
	if fromID == toID {
		return "", zerr.With(zerr.Wrap(ErrSameAccount, "transfer"), "account", fromID)
	}

	transferID := uuid.NewString()
	err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		accounts := s.Accounts.WithTx(tx)
		from, err := s.mustAccount(ctx, accounts, fromID)
		if err != nil {
			return err
		}
		to, err := s.mustAccount(ctx, accounts, toID)
		if err != nil {
			return err
		}
		if from.AccountType != repository.AccountCredit && from.BalanceCents < amount {
			err := zerr.Wrap(ErrInsufficientFunds, "transfer")
			err = zerr.With(err, "account", from.Name)
			return zerr.With(err, "balance", FormatCents(from.BalanceCents))
		}

		now := s.Now()
		legs := []repository.Transaction{
			{AccountID: from.ID, AmountCents: -amount, RawDescription: "Transfer to " + to.Name},
			{AccountID: to.ID, AmountCents: amount, RawDescription: "Transfer from " + from.Name},
		}
		txns := s.Transactions.WithTx(tx)
		for _, leg := range legs {
			leg.ID = uuid.NewString()
			leg.Date = now
			leg.Kind = repository.KindTransfer
			leg.TransferID = &transferID
			leg.Note = note
			if err := txns.Insert(ctx, leg); err != nil {
				return zerr.Wrap(err, "insert transfer leg")
			}
			if err := accounts.AddBalance(ctx, leg.AccountID, leg.AmountCents); err != nil {
				return zerr.Wrap(err, "update balance")
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.Log.Info("transfer recorded", "from", fromID, "to", toID, "amount", FormatCents(amount), "transfer", transferID)
	s.invalidate()
	return transferID, nil
}

// FindAccount resolves an account by ID or, failing that, by name.
func (s *Service) FindAccount(ctx context.Context, ref string) (*repository.Account, error) {
	acct, err := s.Accounts.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		acct, err = s.Accounts.ByName(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	if acct == nil {
		return nil, zerr.With(zerr.Wrap(ErrAccountNotFound, "find account"), "account", ref)
	}
	return acct, nil
}

func (s *Service) mustAccount(ctx context.Context, repo *repository.AccountRepo, id string) (*repository.Account, error) {
	acct, err := repo.Get(ctx, id)
	if err != nil {
		return nil, zerr.Wrap(err, "load account")
	}
	if acct == nil {
		return nil, zerr.With(zerr.Wrap(ErrAccountNotFound, "transfer"), "account", id)
	}
	return acct, nil
}

func (s *Service) invalidate() {
	if s.Cache != nil {
		s.Cache.InvalidateCache()
	}
}
